package usecase

import (
	"github.com/xavierca1/lead-dispatch/internal/entity"
)

// RetryEnqueuer accepts leads whose delivery to a sink failed at transport level.
type RetryEnqueuer interface {
	Enqueue(lead entity.Lead, sinkID string, cause error) string
}

type Enricher interface {
	Enrich(lead entity.Lead, rc entity.RequestContext) entity.Lead
}
