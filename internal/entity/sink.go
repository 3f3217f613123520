package entity

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Sink ids of the downstream systems.
const (
	SinkPropertyCRM = "property_crm"
	SinkSalesCRM    = "kommo"
	SinkMarketing   = "marketing"
)

// ErrSinkTransport marks failures that never reached a business decision on the
// sink side: timeouts, refused connections, 5xx, open circuit. Only these are retried.
var ErrSinkTransport = errors.New("sink transport failure")

// Sink is one downstream system that receives leads.
//
// CreateLead returns a non-nil error only for transport-class failures. A sink
// that answered but declined the lead returns a result with Success=false and
// a nil error.
type Sink interface {
	ID() string
	CreateLead(ctx context.Context, lead Lead) (*LeadResult, error)
	HealthCheck(ctx context.Context) HealthStatus
	Stats() SinkStats
}

type HealthStatus struct {
	Healthy   bool   `json:"healthy"`
	LatencyMs int64  `json:"latencyMs"`
	Message   string `json:"message,omitempty"`
}

type SinkStats struct {
	RequestCount    int64     `json:"requestCount"`
	LastRequestTime time.Time `json:"lastRequestTime,omitempty"`
}

// RequestTracker is embedded by sink adapters to implement Stats.
type RequestTracker struct {
	mu    sync.Mutex
	count int64
	last  time.Time
}

func (t *RequestTracker) Track() {
	t.mu.Lock()
	t.count++
	t.last = time.Now()
	t.mu.Unlock()
}

func (t *RequestTracker) Stats() SinkStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return SinkStats{RequestCount: t.count, LastRequestTime: t.last}
}

const DefaultSinkTimeout = 30 * time.Second

// SinkRegistry resolves sinks and their per-call timeout by id. It is built once
// at startup and read-only afterwards.
type SinkRegistry struct {
	sinks    map[string]Sink
	timeouts map[string]time.Duration
}

func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{
		sinks:    make(map[string]Sink),
		timeouts: make(map[string]time.Duration),
	}
}

// Register adds a sink; timeout <= 0 means DefaultSinkTimeout.
func (r *SinkRegistry) Register(s Sink, timeout time.Duration) {
	r.sinks[s.ID()] = s
	if timeout > 0 {
		r.timeouts[s.ID()] = timeout
	}
}

func (r *SinkRegistry) Get(id string) (Sink, bool) {
	s, ok := r.sinks[id]
	return s, ok
}

func (r *SinkRegistry) Timeout(id string) time.Duration {
	if t, ok := r.timeouts[id]; ok {
		return t
	}
	return DefaultSinkTimeout
}

// Missing returns the ids that have no registered sink, in the given order.
func (r *SinkRegistry) Missing(ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := r.sinks[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// All returns the registered sinks ordered by id.
func (r *SinkRegistry) All() []Sink {
	out := make([]Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
