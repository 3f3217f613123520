// Package integration holds helpers shared by the sink adapters.
package integration

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

const maxErrorBody = 2048

// Kind of answer a sink gave at HTTP level.
type Kind int

const (
	Accepted Kind = iota
	Rejected
	Transport
)

// Classify maps an HTTP status to the retry taxonomy: 2xx accepted, 408/429/5xx
// transport, every other status a business rejection.
func Classify(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return Accepted
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return Transport
	default:
		return Rejected
	}
}

// TransportError wraps err so the dispatcher treats it as retryable.
func TransportError(sink string, err error) error {
	return fmt.Errorf("%w: %s: %w", entity.ErrSinkTransport, sink, err)
}

func StatusError(sink string, status int, body string) error {
	return fmt.Errorf("%w: %s: status %d: %s", entity.ErrSinkTransport, sink, status, body)
}

// ReadBody reads at most maxErrorBody bytes for logs and error messages.
func ReadBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}

// CheckEndpoint issues req and reports health from its status and latency.
func CheckEndpoint(client *http.Client, req *http.Request) entity.HealthStatus {
	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return entity.HealthStatus{Healthy: false, LatencyMs: latency, Message: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return entity.HealthStatus{Healthy: true, LatencyMs: latency, Message: "ok"}
	}
	return entity.HealthStatus{Healthy: false, LatencyMs: latency, Message: fmt.Sprintf("status %d", resp.StatusCode)}
}
