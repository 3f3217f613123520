package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/usecase"
)

const maxLeadBodyBytes = 64 << 10

type LeadSubmitter interface {
	Execute(ctx context.Context, input entity.Lead, rc entity.RequestContext) (*entity.LeadResult, error)
}

type LeadHandler struct {
	Submitter LeadSubmitter
	Logger    *zap.Logger
}

func NewLeadHandler(submitter LeadSubmitter, logger *zap.Logger) *LeadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadHandler{Submitter: submitter, Logger: logger}
}

// CaptureLead handles POST /leads: 200 once dispatched (even when delivery was
// deferred to the retry queue), 400 on invalid input, 500 otherwise.
func (h *LeadHandler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	var lead entity.Lead
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLeadBodyBytes)).Decode(&lead); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := h.Submitter.Execute(r.Context(), lead, requestContext(r))
	if err != nil {
		var verrs usecase.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, APIResponse{
				Success: false,
				Error:   "validation failed",
				Errors:  verrs.Messages(),
			})
			return
		}

		h.Logger.Error("❌ Erro ao processar lead", zap.Error(err))
		writeErrorResponse(w, http.StatusInternalServerError, "failed to process lead")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: result.Success,
		Data:    result,
		Errors:  result.Errors,
	})
}

func requestContext(r *http.Request) entity.RequestContext {
	return entity.RequestContext{
		UserAgent:    r.UserAgent(),
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RemoteAddr:   r.RemoteAddr,
		Timezone:     r.Header.Get("X-Timezone"),
		ReceivedAt:   time.Now().UTC(),
	}
}
