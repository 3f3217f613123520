package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/usecase"
)

// MockLeadSubmitter - Mock para o caso de uso de envio de leads
type MockLeadSubmitter struct {
	mock.Mock
}

func (m *MockLeadSubmitter) Execute(ctx context.Context, input entity.Lead, rc entity.RequestContext) (*entity.LeadResult, error) {
	args := m.Called(ctx, input, rc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LeadResult), args.Error(1)
}

func postLead(h *LeadHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.CaptureLead(rec, req)
	return rec
}

func decodeAPIResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCaptureLead_Success(t *testing.T) {
	submitter := new(MockLeadSubmitter)
	submitter.On("Execute", mock.Anything,
		mock.MatchedBy(func(l entity.Lead) bool { return l.Name == "Ana" && l.Email == "ana@x.com" }),
		mock.MatchedBy(func(rc entity.RequestContext) bool {
			return rc.UserAgent == "Mozilla/5.0" &&
				rc.ForwardedFor == "203.0.113.7" &&
				rc.Timezone == "America/Sao_Paulo" &&
				!rc.ReceivedAt.IsZero()
		}),
	).Return(&entity.LeadResult{Success: true, SinkID: entity.SinkPropertyCRM, LeadID: "crm-1"}, nil)

	rec := postLead(NewLeadHandler(submitter, nil), `{"name":"Ana","email":"ana@x.com"}`, map[string]string{
		"User-Agent":      "Mozilla/5.0",
		"X-Forwarded-For": "203.0.113.7",
		"X-Timezone":      "America/Sao_Paulo",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decodeAPIResponse(t, rec)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "crm-1", data["leadId"])
	submitter.AssertExpectations(t)
}

func TestCaptureLead_QueuedIsStillOK(t *testing.T) {
	submitter := new(MockLeadSubmitter)
	submitter.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(&entity.LeadResult{Success: true, SinkID: entity.SinkPropertyCRM, Queued: true, Message: "lead received; delivery scheduled"}, nil)

	rec := postLead(NewLeadHandler(submitter, nil), `{"name":"Ana","phone":"11999998888"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeAPIResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, true, data["queued"])
}

func TestCaptureLead_RejectedBySink(t *testing.T) {
	submitter := new(MockLeadSubmitter)
	submitter.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(&entity.LeadResult{Success: false, SinkID: entity.SinkPropertyCRM, Errors: []string{"duplicate lead"}}, nil)

	rec := postLead(NewLeadHandler(submitter, nil), `{"name":"Ana","email":"ana@x.com"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAPIResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, []string{"duplicate lead"}, resp.Errors)
}

func TestCaptureLead_InvalidJSON(t *testing.T) {
	submitter := new(MockLeadSubmitter)

	rec := postLead(NewLeadHandler(submitter, nil), `{"name":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON", decodeAPIResponse(t, rec).Error)
	submitter.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestCaptureLead_BodyTooLarge(t *testing.T) {
	submitter := new(MockLeadSubmitter)
	big := `{"name":"` + strings.Repeat("a", maxLeadBodyBytes) + `"}`

	rec := postLead(NewLeadHandler(submitter, nil), big, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	submitter.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestCaptureLead_ValidationFailed(t *testing.T) {
	submitter := new(MockLeadSubmitter)
	submitter.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, usecase.ValidationErrors{
			{Field: "name", Message: "name is required"},
			{Field: "email", Message: "email or phone required"},
		})

	rec := postLead(NewLeadHandler(submitter, nil), `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeAPIResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, []string{"name is required", "email or phone required"}, resp.Errors)
}

func TestCaptureLead_InternalError(t *testing.T) {
	submitter := new(MockLeadSubmitter)
	submitter.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("boom"))

	rec := postLead(NewLeadHandler(submitter, nil), `{"name":"Ana","email":"ana@x.com"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeAPIResponse(t, rec)
	assert.Equal(t, "failed to process lead", resp.Error)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRequestContext_RemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/leads", bytes.NewReader(nil))
	req.RemoteAddr = "198.51.100.2:51234"

	rc := requestContext(req)

	assert.Equal(t, "198.51.100.2:51234", rc.RemoteAddr)
	assert.Empty(t, rc.ForwardedFor)
	assert.Equal(t, "UTC", rc.ReceivedAt.Location().String())
}
