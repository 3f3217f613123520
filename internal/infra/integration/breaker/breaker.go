// Package breaker wraps a sink with a circuit breaker so a dead downstream
// fails fast instead of holding every request for its full timeout.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/integration"
	"github.com/xavierca1/lead-dispatch/internal/infra/metrics"
)

type Config struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultConfig() Config {
	return Config{
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             60 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Sink decorates another sink. Only transport errors trip the breaker; a
// business rejection is a healthy answer.
type Sink struct {
	next entity.Sink
	cb   *gobreaker.CircuitBreaker
}

func Wrap(next entity.Sink, cfg Config, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        next.ID(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitState(name, stateValue(to))
			logger.Warn("⚡ Circuit breaker do sink mudou de estado",
				zap.String("sink", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	cb := gobreaker.NewCircuitBreaker(settings)
	metrics.SetCircuitState(next.ID(), stateValue(cb.State()))
	return &Sink{next: next, cb: cb}
}

func (s *Sink) ID() string { return s.next.ID() }

func (s *Sink) CreateLead(ctx context.Context, lead entity.Lead) (*entity.LeadResult, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.CreateLead(ctx, lead)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, integration.TransportError(s.ID(), err)
	}
	if err != nil {
		return nil, err
	}
	return out.(*entity.LeadResult), nil
}

func (s *Sink) HealthCheck(ctx context.Context) entity.HealthStatus {
	h := s.next.HealthCheck(ctx)
	if s.cb.State() == gobreaker.StateOpen {
		h.Healthy = false
		h.Message = "circuit open: " + h.Message
	}
	return h
}

func (s *Sink) Stats() entity.SinkStats { return s.next.Stats() }

func (s *Sink) State() gobreaker.State { return s.cb.State() }

func stateValue(st gobreaker.State) float64 {
	switch st {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
