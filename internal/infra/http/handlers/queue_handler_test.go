package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/queue"
)

// MockQueueAdmin - Mock para a fila de reenvio
type MockQueueAdmin struct {
	mock.Mock
}

func (m *MockQueueAdmin) Stats() queue.Stats {
	return m.Called().Get(0).(queue.Stats)
}

func (m *MockQueueAdmin) List(includeDetails bool) []entity.QueuedLead {
	return m.Called(includeDetails).Get(0).([]entity.QueuedLead)
}

func (m *MockQueueAdmin) DeadLetters(includeDetails bool) []entity.QueuedLead {
	return m.Called(includeDetails).Get(0).([]entity.QueuedLead)
}

func (m *MockQueueAdmin) Drain(ctx context.Context) queue.DrainReport {
	return m.Called(ctx).Get(0).(queue.DrainReport)
}

func (m *MockQueueAdmin) Remove(id string) bool {
	return m.Called(id).Bool(0)
}

func (m *MockQueueAdmin) ClearExhausted() int {
	return m.Called().Int(0)
}

func (m *MockQueueAdmin) ClearAll() {
	m.Called()
}

func queueAction(h *QueueHandler, body string) (*httptest.ResponseRecorder, QueueActionResponse) {
	req := httptest.NewRequest(http.MethodPost, "/admin/queue", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleAction(rec, req)

	var resp QueueActionResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	return rec, resp
}

func TestGetStatus(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	stats := queue.Stats{Total: 2, Pending: 1, Exhausted: 1}

	q := new(MockQueueAdmin)
	q.On("Stats").Return(stats)
	q.On("List", false).Return([]entity.QueuedLead{{
		ID:           "q-1",
		Lead:         entity.Lead{Name: "Ana", PropertyCode: "AP-1"},
		TargetSinkID: entity.SinkPropertyCRM,
		Attempts:     2,
		MaxAttempts:  5,
		CreatedAt:    created,
		Error:        "sink transport failure: 503",
	}})
	q.On("DeadLetters", false).Return([]entity.QueuedLead{{
		ID:           "q-2",
		Lead:         entity.Lead{Name: "Bia"},
		TargetSinkID: entity.SinkSalesCRM,
		Attempts:     5,
		MaxAttempts:  5,
		DeadReason:   entity.DeadReasonExhausted,
	}})
	h := NewQueueHandler(q, time.Second, nil)

	t.Run("summary only", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/admin/queue", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp QueueStatusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 2, resp.Stats.Total)
		assert.Nil(t, resp.Leads)
		assert.Nil(t, resp.Exhausted)
		q.AssertNotCalled(t, "List", mock.Anything)
	})

	t.Run("with details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/admin/queue?details=true", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "email")

		var resp QueueStatusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Leads, 1)
		assert.Equal(t, "Ana", resp.Leads[0].LeadName)
		assert.Equal(t, "AP-1", resp.Leads[0].PropertyCode)
		assert.Equal(t, 2, resp.Leads[0].Attempts)
		assert.Equal(t, created, resp.Leads[0].CreatedAt)
		require.Len(t, resp.Exhausted, 1)
		assert.Equal(t, entity.DeadReasonExhausted, resp.Exhausted[0].Reason)
	})
}

func TestGetStatus_ListKeysFollowDetailsFlag(t *testing.T) {
	q := new(MockQueueAdmin)
	q.On("Stats").Return(queue.Stats{})
	q.On("List", false).Return([]entity.QueuedLead(nil))
	q.On("DeadLetters", false).Return([]entity.QueuedLead(nil))
	h := NewQueueHandler(q, 0, nil)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/admin/queue?details=true", nil))
	assert.Contains(t, rec.Body.String(), `"leads":[]`)
	assert.Contains(t, rec.Body.String(), `"exhausted":[]`)

	rec = httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/admin/queue?details=false", nil))
	assert.NotContains(t, rec.Body.String(), "leads")
	assert.NotContains(t, rec.Body.String(), "exhausted")
}

func TestHandleAction_ProcessSurvivesClientDisconnect(t *testing.T) {
	q := new(MockQueueAdmin)
	q.On("Drain", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return ctx.Err() == nil && hasDeadline
	})).Return(queue.DrainReport{Attempted: 1, Delivered: 1})
	q.On("Stats").Return(queue.Stats{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/admin/queue", strings.NewReader(`{"action":"process"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()

	NewQueueHandler(q, time.Minute, nil).HandleAction(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	q.AssertExpectations(t)
}

func TestHandleAction_Process(t *testing.T) {
	q := new(MockQueueAdmin)
	q.On("Drain", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(queue.DrainReport{Attempted: 3, Delivered: 2, Exhausted: 1})
	q.On("Stats").Return(queue.Stats{Total: 1, Exhausted: 1})

	rec, resp := queueAction(NewQueueHandler(q, time.Minute, nil), `{"action":"process"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "queue processed: 3 attempted, 2 delivered, 1 exhausted, 0 rejected", resp.Message)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 2, resp.Report.Delivered)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 1, resp.Stats.Exhausted)
	q.AssertExpectations(t)
}

func TestHandleAction_Remove(t *testing.T) {
	q := new(MockQueueAdmin)
	q.On("Stats").Return(queue.Stats{})
	q.On("Remove", "q-1").Return(true)
	q.On("Remove", "missing").Return(false)
	h := NewQueueHandler(q, 0, nil)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"removido", `{"action":"remove","leadId":"q-1"}`, http.StatusOK, "lead removed from queue"},
		{"inexistente", `{"action":"remove","leadId":"missing"}`, http.StatusNotFound, "lead not found in queue"},
		{"sem id", `{"action":"remove"}`, http.StatusBadRequest, "leadId is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := queueAction(h, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.status == http.StatusOK, resp.Success)
		})
	}
}

func TestHandleAction_Clear(t *testing.T) {
	q := new(MockQueueAdmin)
	q.On("Stats").Return(queue.Stats{})
	q.On("ClearExhausted").Return(4)
	q.On("ClearAll").Return()
	h := NewQueueHandler(q, 0, nil)

	rec, resp := queueAction(h, `{"action":"clear_maxed"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4 exhausted leads cleared", resp.Message)

	rec, resp = queueAction(h, `{"action":"clear_all"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "queue cleared", resp.Message)

	q.AssertCalled(t, "ClearAll")
}

func TestHandleAction_BadRequests(t *testing.T) {
	q := new(MockQueueAdmin)
	h := NewQueueHandler(q, 0, nil)

	rec, resp := queueAction(h, `{"action":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, `unknown action "explode"`, resp.Message)

	rec, resp = queueAction(h, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON", resp.Message)

	q.AssertNotCalled(t, "Drain", mock.Anything)
}

// The handler works against the real queue too; entries never leak contact data.
func TestQueueHandler_WithRetryQueue(t *testing.T) {
	sinks := entity.NewSinkRegistry()
	sinks.Register(stubSink{id: entity.SinkPropertyCRM}, time.Second)

	q, err := queue.NewRetryQueue(sinks, queue.Config{MaxAttempts: 5, MaxSize: 10, DrainConcurrency: 2}, nil)
	require.NoError(t, err)
	defer q.Close()

	q.Enqueue(entity.Lead{Name: "Ana", Email: "ana@x.com", Phone: "11999998888"}, entity.SinkPropertyCRM, entity.ErrSinkTransport)
	h := NewQueueHandler(q, time.Second, nil)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/admin/queue?details=1", nil))
	assert.Contains(t, rec.Body.String(), `"leadName":"Ana"`)
	assert.NotContains(t, rec.Body.String(), "ana@x.com")
	assert.NotContains(t, rec.Body.String(), "11999998888")

	rec, resp := queueAction(h, `{"action":"process"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 1, resp.Report.Delivered)
	assert.Equal(t, 0, resp.Stats.Total)
}
