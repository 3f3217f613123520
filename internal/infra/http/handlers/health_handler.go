package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/queue"
)

const healthCheckTimeout = 5 * time.Second

type Pinger interface {
	PingContext(ctx context.Context) error
}

type ConnectionState interface {
	IsClosed() bool
}

type QueueStats interface {
	Stats() queue.Stats
}

type HealthHandler struct {
	Sinks     *entity.SinkRegistry
	Queue     QueueStats
	DB        Pinger
	RabbitMQ  ConnectionState
	StartTime time.Time
}

type HealthResponse struct {
	Status       string                         `json:"status"`
	Version      string                         `json:"version"`
	Uptime       string                         `json:"uptime"`
	Dependencies map[string]string              `json:"dependencies"`
	Sinks        map[string]entity.HealthStatus `json:"sinks"`
	Queue        *queue.Stats                   `json:"queue,omitempty"`
}

// NewHealthHandler builds the handler; db and rabbitMQ may be nil when not configured.
func NewHealthHandler(sinks *entity.SinkRegistry, q QueueStats, db Pinger, rabbitMQ ConnectionState) *HealthHandler {
	return &HealthHandler{
		Sinks:     sinks,
		Queue:     q,
		DB:        db,
		RabbitMQ:  rabbitMQ,
		StartTime: time.Now(),
	}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	deps := make(map[string]string)
	healthy := true

	// Check Database
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			deps["database"] = fmt.Sprintf("unhealthy: %v", err)
			healthy = false
		} else {
			deps["database"] = "healthy"
		}
	} else {
		deps["database"] = "not configured"
	}

	// Check RabbitMQ
	if h.RabbitMQ != nil {
		if h.RabbitMQ.IsClosed() {
			deps["rabbitmq"] = "unhealthy: connection closed"
			healthy = false
		} else {
			deps["rabbitmq"] = "healthy"
		}
	} else {
		deps["rabbitmq"] = "not configured"
	}

	sinks := h.checkSinks(ctx)
	for _, s := range sinks {
		if !s.Healthy {
			healthy = false
		}
	}

	response := HealthResponse{
		Status:       "healthy",
		Version:      "1.0.0",
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Dependencies: deps,
		Sinks:        sinks,
	}
	if h.Queue != nil {
		stats := h.Queue.Stats()
		response.Queue = &stats
	}

	status := http.StatusOK
	if !healthy {
		response.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (h *HealthHandler) checkSinks(ctx context.Context) map[string]entity.HealthStatus {
	out := make(map[string]entity.HealthStatus)
	if h.Sinks == nil {
		return out
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range h.Sinks.All() {
		sink := sink
		g.Go(func() error {
			st := sink.HealthCheck(gctx)
			mu.Lock()
			out[sink.ID()] = st
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}
