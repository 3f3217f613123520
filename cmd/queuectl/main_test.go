package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/lead-dispatch/internal/infra/http/handlers"
	"github.com/xavierca1/lead-dispatch/internal/infra/queue"
)

// adminStub mimics the admin queue endpoints and records the actions it got.
type adminStub struct {
	mu      sync.Mutex
	auth    []string
	actions []handlers.QueueActionRequest
}

func (s *adminStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet {
		resp := handlers.QueueStatusResponse{Stats: queue.Stats{Total: 2, Pending: 1, Exhausted: 1, OldestPendingAge: 90}}
		if r.URL.Query().Get("details") == "true" {
			last := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
			resp.Leads = []handlers.QueuedLeadView{{ID: "q-1", LeadName: "Ana", TargetSinkID: "property_crm", Attempts: 2, MaxAttempts: 5, LastAttempt: last, Error: "503"}}
			resp.Exhausted = []handlers.QueuedLeadView{{ID: "q-2", LeadName: "Bia", TargetSinkID: "kommo", Attempts: 5, MaxAttempts: 5, LastAttempt: last, Reason: "exhausted"}}
		}
		json.NewEncoder(w).Encode(resp)
		return
	}

	var req handlers.QueueActionRequest
	json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	s.actions = append(s.actions, req)
	s.mu.Unlock()

	switch {
	case req.Action == handlers.ActionRemove && req.LeadID == "missing":
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(handlers.QueueActionResponse{Message: "lead not found in queue"})
	default:
		json.NewEncoder(w).Encode(handlers.QueueActionResponse{Success: true, Message: "done: " + req.Action})
	}
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--url", srv.URL, "--token", "s3cret"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestStats(t *testing.T) {
	stub := &adminStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	out, err := run(t, srv, "stats")

	require.NoError(t, err)
	assert.Equal(t, "total=2 pending=1 exhausted=1 in_flight=0 oldest_pending=1m30s\n", out)
	assert.Equal(t, []string{"Bearer s3cret"}, stub.auth)
}

func TestStats_JSON(t *testing.T) {
	srv := httptest.NewServer(&adminStub{})
	defer srv.Close()

	out, err := run(t, srv, "stats", "--json")

	require.NoError(t, err)
	var stats queue.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Total)
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(&adminStub{})
	defer srv.Close()

	out, err := run(t, srv, "list")

	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "LAST ATTEMPT")
	assert.Regexp(t, `q-1\s+pending\s+property_crm\s+Ana\s+2/5\s+2024-06-01T12:00:00Z\s+503`, out)
	assert.Regexp(t, `q-2\s+exhausted\s+kommo\s+Bia\s+5/5`, out)
}

func TestActions(t *testing.T) {
	stub := &adminStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	for _, args := range [][]string{{"process"}, {"remove", "q-1"}, {"clear-maxed"}, {"clear-all"}} {
		_, err := run(t, srv, args...)
		require.NoError(t, err, args)
	}

	assert.Equal(t, []handlers.QueueActionRequest{
		{Action: handlers.ActionProcess},
		{Action: handlers.ActionRemove, LeadID: "q-1"},
		{Action: handlers.ActionClearMaxed},
		{Action: handlers.ActionClearAll},
	}, stub.actions)
}

func TestRemove_NotFound(t *testing.T) {
	srv := httptest.NewServer(&adminStub{})
	defer srv.Close()

	_, err := run(t, srv, "remove", "missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found in queue")
	assert.Contains(t, err.Error(), "404")
}

func TestRemove_RequiresID(t *testing.T) {
	srv := httptest.NewServer(&adminStub{})
	defer srv.Close()

	_, err := run(t, srv, "remove")
	assert.Error(t, err)
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(&adminStub{})
	srv.Close()

	_, err := run(t, srv, "stats")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}
