package integration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

func TestClassify(t *testing.T) {
	tests := map[int]Kind{
		200: Accepted,
		201: Accepted,
		204: Accepted,
		400: Rejected,
		401: Rejected,
		404: Rejected,
		409: Rejected,
		422: Rejected,
		408: Transport,
		429: Transport,
		500: Transport,
		502: Transport,
		503: Transport,
		301: Rejected,
	}
	for status, want := range tests {
		assert.Equal(t, want, Classify(status), "status %d", status)
	}
}

func TestErrorsWrapTransport(t *testing.T) {
	assert.True(t, errors.Is(TransportError("kommo", errors.New("dial tcp: refused")), entity.ErrSinkTransport))

	err := StatusError("kommo", 503, "maintenance")
	assert.ErrorIs(t, err, entity.ErrSinkTransport)
	assert.Contains(t, err.Error(), "status 503: maintenance")
}

func TestReadBodyIsBounded(t *testing.T) {
	body := ReadBody(strings.NewReader("  " + strings.Repeat("x", 5000)))
	assert.Len(t, body, maxErrorBody-2)
}

func TestCheckEndpoint(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, healthy.URL, nil)
	require.NoError(t, err)
	st := CheckEndpoint(http.DefaultClient, req)
	assert.True(t, st.Healthy)
	assert.Equal(t, "ok", st.Message)

	req, err = http.NewRequestWithContext(context.Background(), http.MethodGet, down.URL, nil)
	require.NoError(t, err)
	st = CheckEndpoint(http.DefaultClient, req)
	assert.False(t, st.Healthy)
	assert.Equal(t, "status 503", st.Message)

	req, err = http.NewRequestWithContext(context.Background(), http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)
	st = CheckEndpoint(http.DefaultClient, req)
	assert.False(t, st.Healthy)
	assert.NotEmpty(t, st.Message)
}

func TestTransportErrorKeepsCause(t *testing.T) {
	err := TransportError("property_crm", context.DeadlineExceeded)

	assert.ErrorIs(t, err, entity.ErrSinkTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
