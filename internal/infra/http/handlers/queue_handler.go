package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/queue"
)

const defaultAdminDrainBudget = 2 * time.Minute

// Admin queue actions.
const (
	ActionProcess    = "process"
	ActionRemove     = "remove"
	ActionClearMaxed = "clear_maxed"
	ActionClearAll   = "clear_all"
)

type QueueAdmin interface {
	Stats() queue.Stats
	List(includeDetails bool) []entity.QueuedLead
	DeadLetters(includeDetails bool) []entity.QueuedLead
	Drain(ctx context.Context) queue.DrainReport
	Remove(id string) bool
	ClearExhausted() int
	ClearAll()
}

type QueueHandler struct {
	Queue       QueueAdmin
	DrainBudget time.Duration
	Logger      *zap.Logger
}

func NewQueueHandler(q QueueAdmin, drainBudget time.Duration, logger *zap.Logger) *QueueHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueHandler{Queue: q, DrainBudget: drainBudget, Logger: logger}
}

// QueuedLeadView is the list-view shape of a queue entry. Contact data beyond
// the lead name is left out.
type QueuedLeadView struct {
	ID           string    `json:"id"`
	LeadName     string    `json:"leadName"`
	PropertyCode string    `json:"propertyCode,omitempty"`
	TargetSinkID string    `json:"targetSinkId"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"maxAttempts"`
	LastAttempt  time.Time `json:"lastAttempt"`
	CreatedAt    time.Time `json:"createdAt"`
	Error        string    `json:"error,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// QueueStatusResponse is the details=true body. Both lists are always present,
// empty or not.
type QueueStatusResponse struct {
	Stats     queue.Stats      `json:"stats"`
	Leads     []QueuedLeadView `json:"leads"`
	Exhausted []QueuedLeadView `json:"exhausted"`
}

// queueSummary is the body without details: counters only.
type queueSummary struct {
	Stats queue.Stats `json:"stats"`
}

type QueueActionRequest struct {
	Action string `json:"action"`
	LeadID string `json:"leadId,omitempty"`
}

type QueueActionResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Stats   *queue.Stats       `json:"stats,omitempty"`
	Report  *queue.DrainReport `json:"report,omitempty"`
}

// GetStatus handles GET /admin/queue?details=bool.
func (h *QueueHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	details, _ := strconv.ParseBool(r.URL.Query().Get("details"))
	if !details {
		writeJSON(w, http.StatusOK, queueSummary{Stats: h.Queue.Stats()})
		return
	}

	writeJSON(w, http.StatusOK, QueueStatusResponse{
		Stats:     h.Queue.Stats(),
		Leads:     toViews(h.Queue.List(false)),
		Exhausted: toViews(h.Queue.DeadLetters(false)),
	})
}

// HandleAction handles POST /admin/queue.
func (h *QueueHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req QueueActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, QueueActionResponse{Message: "invalid JSON"})
		return
	}

	switch req.Action {
	case ActionProcess:
		// A disconnecting operator must not cancel sends already in flight.
		budget := h.DrainBudget
		if budget <= 0 {
			budget = defaultAdminDrainBudget
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), budget)
		defer cancel()
		report := h.Queue.Drain(ctx)
		h.respondAction(w, http.StatusOK, fmt.Sprintf(
			"queue processed: %d attempted, %d delivered, %d exhausted, %d rejected",
			report.Attempted, report.Delivered, report.Exhausted, report.Rejected,
		), &report)

	case ActionRemove:
		if req.LeadID == "" {
			h.respondAction(w, http.StatusBadRequest, "leadId is required", nil)
			return
		}
		if !h.Queue.Remove(req.LeadID) {
			h.respondAction(w, http.StatusNotFound, "lead not found in queue", nil)
			return
		}
		h.respondAction(w, http.StatusOK, "lead removed from queue", nil)

	case ActionClearMaxed:
		n := h.Queue.ClearExhausted()
		h.respondAction(w, http.StatusOK, fmt.Sprintf("%d exhausted leads cleared", n), nil)

	case ActionClearAll:
		h.Logger.Warn("⚠️ Limpeza total da fila solicitada via admin", zap.String("remote_addr", r.RemoteAddr))
		h.Queue.ClearAll()
		h.respondAction(w, http.StatusOK, "queue cleared", nil)

	default:
		writeJSON(w, http.StatusBadRequest, QueueActionResponse{
			Message: fmt.Sprintf("unknown action %q", req.Action),
		})
	}
}

func (h *QueueHandler) respondAction(w http.ResponseWriter, status int, message string, report *queue.DrainReport) {
	stats := h.Queue.Stats()
	writeJSON(w, status, QueueActionResponse{
		Success: status == http.StatusOK,
		Message: message,
		Stats:   &stats,
		Report:  report,
	})
}

func toViews(entries []entity.QueuedLead) []QueuedLeadView {
	views := make([]QueuedLeadView, 0, len(entries))
	for _, e := range entries {
		views = append(views, QueuedLeadView{
			ID:           e.ID,
			LeadName:     e.Lead.Name,
			PropertyCode: e.Lead.PropertyCode,
			TargetSinkID: e.TargetSinkID,
			Attempts:     e.Attempts,
			MaxAttempts:  e.MaxAttempts,
			LastAttempt:  e.LastAttempt,
			CreatedAt:    e.CreatedAt,
			Error:        e.Error,
			Reason:       e.DeadReason,
		})
	}
	return views
}
