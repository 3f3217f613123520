package breaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

type scriptedSink struct {
	calls  int
	result *entity.LeadResult
	err    error
}

func (s *scriptedSink) ID() string { return entity.SinkPropertyCRM }

func (s *scriptedSink) CreateLead(context.Context, entity.Lead) (*entity.LeadResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *scriptedSink) HealthCheck(context.Context) entity.HealthStatus {
	return entity.HealthStatus{Healthy: true, Message: "ok"}
}

func (s *scriptedSink) Stats() entity.SinkStats { return entity.SinkStats{RequestCount: int64(s.calls)} }

func testConfig() Config {
	return Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ConsecutiveFailures: 3}
}

func TestBreakerOpensAfterConsecutiveTransportFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	next := &scriptedSink{err: fmt.Errorf("%w: 503", entity.ErrSinkTransport)}
	s := Wrap(next, testConfig(), zap.New(core))

	for i := 0; i < 3; i++ {
		_, err := s.CreateLead(context.Background(), entity.Lead{})
		assert.ErrorIs(t, err, entity.ErrSinkTransport)
	}
	assert.Equal(t, gobreaker.StateOpen, s.State())

	// Open circuit: fails fast, still retryable, next is not called.
	_, err := s.CreateLead(context.Background(), entity.Lead{})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrSinkTransport)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)

	h := s.HealthCheck(context.Background())
	assert.False(t, h.Healthy)
	assert.Contains(t, h.Message, "circuit open")

	assert.Equal(t, 1, logs.FilterMessage("⚡ Circuit breaker do sink mudou de estado").Len())
}

func TestBreakerIgnoresRejections(t *testing.T) {
	next := &scriptedSink{result: &entity.LeadResult{Success: false, Message: "duplicate"}}
	s := Wrap(next, testConfig(), nil)

	for i := 0; i < 5; i++ {
		result, err := s.CreateLead(context.Background(), entity.Lead{})
		require.NoError(t, err)
		assert.False(t, result.Success)
	}
	assert.Equal(t, gobreaker.StateClosed, s.State())
	assert.Equal(t, 5, next.calls)
}

func TestBreakerPassesThrough(t *testing.T) {
	next := &scriptedSink{result: &entity.LeadResult{Success: true, LeadID: "1"}}
	s := Wrap(next, DefaultConfig(), nil)

	result, err := s.CreateLead(context.Background(), entity.Lead{})

	require.NoError(t, err)
	assert.Equal(t, "1", result.LeadID)
	assert.Equal(t, entity.SinkPropertyCRM, s.ID())
	assert.Equal(t, int64(1), s.Stats().RequestCount)
	assert.True(t, s.HealthCheck(context.Background()).Healthy)
}
