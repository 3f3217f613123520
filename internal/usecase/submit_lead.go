package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/metrics"
)

type SubmitLeadUseCase struct {
	Sinks    *entity.SinkRegistry
	Flags    entity.FeatureFlagSource
	Queue    RetryEnqueuer
	Enricher Enricher
	Logger   *zap.Logger
}

func NewSubmitLeadUseCase(
	sinks *entity.SinkRegistry,
	flags entity.FeatureFlagSource,
	queue RetryEnqueuer,
	enricher Enricher,
	logger *zap.Logger,
) *SubmitLeadUseCase {
	if enricher == nil {
		enricher = NewDataEnricher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmitLeadUseCase{
		Sinks:    sinks,
		Flags:    flags,
		Queue:    queue,
		Enricher: enricher,
		Logger:   logger,
	}
}

// Execute validates, enriches and fans the lead out to the sinks selected by the
// current flags. Transport failures are queued for retry and never fail the
// call; the returned result is the primary sink's (or, when the primary is
// skipped, the first attempted sink's).
func (uc *SubmitLeadUseCase) Execute(ctx context.Context, input entity.Lead, rc entity.RequestContext) (*entity.LeadResult, error) {
	lead := normalizeLead(input)

	if verrs := ValidateLead(lead); len(verrs) > 0 {
		metrics.RecordSubmission("invalid")
		return &entity.LeadResult{
			Success: false,
			Message: "validation failed",
			Errors:  verrs.Messages(),
		}, verrs
	}

	lead = uc.Enricher.Enrich(lead, rc)

	// One snapshot for the whole call.
	flags := uc.Flags.Load()
	plan := routeLead(lead, flags)

	var callerResult *entity.LeadResult
	for _, sinkID := range plan {
		var result *entity.LeadResult
		if sink, ok := uc.Sinks.Get(sinkID); ok {
			result = uc.dispatch(ctx, sink, lead)
		} else {
			// Routed to a sink this process never built. Queue it so the lead
			// ends up in the dead-letter bucket instead of vanishing.
			err := fmt.Errorf("%w: sink %q não configurado", entity.ErrSinkTransport, sinkID)
			uc.Logger.Error("❌ Lead roteado para sink não configurado",
				zap.String("sink", sinkID),
				zap.String("lead_name", lead.Name),
			)
			result = uc.queueForRetry(sinkID, lead, err)
		}
		if callerResult == nil {
			callerResult = result
		}
	}

	if callerResult == nil {
		callerResult = &entity.LeadResult{Success: true, Message: "lead received"}
	}

	outcome := "delivered"
	switch {
	case callerResult.Queued:
		outcome = "queued"
	case !callerResult.Success:
		outcome = "rejected"
	}
	metrics.RecordSubmission(outcome)

	return callerResult, nil
}

// dispatch makes one attempt against one sink under the sink's own timeout.
// Other sinks are attempted regardless of what happens here.
func (uc *SubmitLeadUseCase) dispatch(ctx context.Context, sink entity.Sink, lead entity.Lead) *entity.LeadResult {
	callCtx, cancel := context.WithTimeout(ctx, uc.Sinks.Timeout(sink.ID()))
	defer cancel()

	result, err := sink.CreateLead(callCtx, lead)
	if err == nil && result == nil {
		err = errors.New("sink returned no result")
	}

	if err != nil {
		metrics.RecordDispatch(sink.ID(), metrics.OutcomeTransportError)
		uc.Logger.Warn("⚠️ Falha de transporte no sink, lead enfileirado para retry",
			zap.String("sink", sink.ID()),
			zap.String("lead_name", lead.Name),
			zap.Error(err),
		)
		return uc.queueForRetry(sink.ID(), lead, err)
	}

	result.SinkID = sink.ID()
	if !result.Success {
		metrics.RecordDispatch(sink.ID(), metrics.OutcomeRejected)
		uc.Logger.Info("🚫 Sink recusou o lead",
			zap.String("sink", sink.ID()),
			zap.String("lead_name", lead.Name),
			zap.Strings("errors", result.Errors),
		)
		return result
	}

	metrics.RecordDispatch(sink.ID(), metrics.OutcomeSuccess)
	return result
}

func (uc *SubmitLeadUseCase) queueForRetry(sinkID string, lead entity.Lead, cause error) *entity.LeadResult {
	uc.Queue.Enqueue(lead, sinkID, cause)
	return &entity.LeadResult{
		Success: true,
		SinkID:  sinkID,
		Queued:  true,
		Message: "lead received; delivery scheduled",
	}
}

// routeLead decides which sinks receive the lead. The skipPrimary path is an
// alternate route to marketing automation only; the sales CRM rides along the
// primary path and receives sell intents only when syncSellers is on.
func routeLead(lead entity.Lead, flags entity.FeatureFlags) []string {
	if lead.SkipPrimary() || flags.SkipLegacyCRM {
		if flags.MarketingEnabled {
			return []string{entity.SinkMarketing}
		}
		return nil
	}

	plan := []string{entity.SinkPropertyCRM}
	if flags.SalesCRMEnabled && (lead.Intent != entity.IntentSell || flags.SyncSellers) {
		plan = append(plan, entity.SinkSalesCRM)
	}
	return plan
}

func normalizeLead(in entity.Lead) entity.Lead {
	lead := in.Clone()
	lead.Name = strings.TrimSpace(lead.Name)
	lead.Email = strings.ToLower(strings.TrimSpace(lead.Email))
	lead.Phone = strings.TrimSpace(lead.Phone)
	if lead.Intent == "" {
		lead.Intent = entity.IntentInfo
	}
	if lead.Source == "" {
		lead.Source = entity.SourceSite
	}
	return lead
}
