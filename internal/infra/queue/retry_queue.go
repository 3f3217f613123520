package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/metrics"
)

const (
	DefaultMaxAttempts      = 5
	DefaultMaxSize          = 1000
	DefaultDrainConcurrency = 4

	storeTimeout   = 5 * time.Second
	notifyTimeout  = 10 * time.Second
)

// Store is an optional durable backing for the queue. Writes arrive in the
// same order the queue applied them.
type Store interface {
	Save(ctx context.Context, entry entity.QueuedLead) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]entity.QueuedLead, error)
}

// DeadLetterNotifier is told about entries that left the active set without
// being delivered.
type DeadLetterNotifier interface {
	NotifyDeadLetter(ctx context.Context, entry entity.QueuedLead) error
}

type Config struct {
	MaxAttempts      int
	MaxSize          int
	DrainConcurrency int
}

type Stats struct {
	Total            int     `json:"total"`
	Pending          int     `json:"pending"`
	Exhausted        int     `json:"exhausted"`
	InFlight         int     `json:"inFlight"`
	OldestPendingAge float64 `json:"oldestPendingAgeSeconds"`
}

type DrainReport struct {
	Attempted    int `json:"attempted"`
	Delivered    int `json:"delivered"`
	Exhausted    int `json:"exhausted"`
	Rejected     int `json:"rejected"`
	StillPending int `json:"stillPending"`
}

type Option func(*RetryQueue)

func WithStore(s Store) Option {
	return func(q *RetryQueue) { q.store = s }
}

func WithNotifiers(n ...DeadLetterNotifier) Option {
	return func(q *RetryQueue) { q.notifiers = append(q.notifiers, n...) }
}

// RetryQueue holds leads whose delivery to a sink failed. A single mutex guards
// the entry maps and the in-flight set; sink calls happen outside it.
type RetryQueue struct {
	mu       sync.Mutex
	active   map[string]*entity.QueuedLead
	dead     map[string]*entity.QueuedLead
	inFlight map[string]struct{}

	sinks     *entity.SinkRegistry
	cfg       Config
	logger    *zap.Logger
	store     Store
	notifiers []DeadLetterNotifier

	// Store writes and dead-letter alerts run on one goroutine each.
	writes     *backlog[persistOp]
	writesDone chan struct{}
	alerts     *backlog[entity.QueuedLead]
	alertsDone chan struct{}
	closed     bool

	now   func() time.Time
	newID func() string
}

type persistOp struct {
	remove bool
	id     string
	entry  entity.QueuedLead
}

func (op persistOp) key() string {
	if op.remove {
		return op.id
	}
	return op.entry.ID
}

func NewRetryQueue(sinks *entity.SinkRegistry, cfg Config, logger *zap.Logger, opts ...Option) (*RetryQueue, error) {
	if sinks == nil {
		return nil, errors.New("retry queue: sink registry is required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.DrainConcurrency == 0 {
		cfg.DrainConcurrency = DefaultDrainConcurrency
	}
	if cfg.MaxAttempts < 1 || cfg.MaxSize < 1 || cfg.DrainConcurrency < 1 {
		return nil, fmt.Errorf("retry queue: invalid config %+v", cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &RetryQueue{
		active:   make(map[string]*entity.QueuedLead),
		dead:     make(map[string]*entity.QueuedLead),
		inFlight: make(map[string]struct{}),
		sinks:    sinks,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(q)
	}

	if q.store != nil {
		q.writes = newBacklog(persistOp.key)
		q.writesDone = make(chan struct{})
		go q.writes.run(q.writesDone, q.applyWrite)
	}
	if len(q.notifiers) > 0 {
		q.alerts = newBacklog(func(e entity.QueuedLead) string { return e.ID })
		q.alertsDone = make(chan struct{})
		go q.alerts.run(q.alertsDone, q.notifyDeadLetter)
	}
	return q, nil
}

// Enqueue records a failed delivery and returns the new entry id. It never
// fails; a full queue evicts older entries to make room.
func (q *RetryQueue) Enqueue(lead entity.Lead, sinkID string, cause error) string {
	now := q.now()
	entry := &entity.QueuedLead{
		ID:           q.newID(),
		Lead:         lead.Clone(),
		TargetSinkID: sinkID,
		Attempts:     1,
		MaxAttempts:  q.cfg.MaxAttempts,
		LastAttempt:  now,
		CreatedAt:    now,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	q.mu.Lock()
	for len(q.active)+len(q.dead) >= q.cfg.MaxSize {
		if !q.evictOldestLocked() {
			break
		}
	}
	if entry.Exhausted() {
		entry.DeadReason = entity.DeadReasonExhausted
		q.dead[entry.ID] = entry
	} else {
		q.active[entry.ID] = entry
	}
	snapshot := *entry
	q.persistLocked(persistOp{entry: snapshot})
	q.refreshGaugesLocked()
	q.mu.Unlock()

	q.logger.Info("📥 Lead enfileirado para retry",
		zap.String("id", snapshot.ID),
		zap.String("sink", sinkID),
		zap.String("lead_name", lead.Name),
		zap.String("error", snapshot.Error),
	)

	if snapshot.Dead() {
		metrics.RecordExhausted()
		q.alertDeadLetter(snapshot)
	}
	return snapshot.ID
}

// evictOldestLocked drops the oldest dead-letter entry, or the oldest pending
// one when the dead-letter bucket is empty.
func (q *RetryQueue) evictOldestLocked() bool {
	state := "exhausted"
	victim := oldest(q.dead)
	if victim == nil {
		state = "pending"
		victim = oldest(q.active)
	}
	if victim == nil {
		return false
	}

	delete(q.dead, victim.ID)
	delete(q.active, victim.ID)
	q.persistLocked(persistOp{remove: true, id: victim.ID})
	metrics.RecordEviction(state)

	q.logger.Error("❌ Fila de retry cheia: lead descartado",
		zap.String("evicted_id", victim.ID),
		zap.String("evicted_state", state),
		zap.String("sink", victim.TargetSinkID),
		zap.String("lead_name", victim.Lead.Name),
		zap.Int("attempts", victim.Attempts),
		zap.Int("max_size", q.cfg.MaxSize),
	)
	return true
}

func oldest(m map[string]*entity.QueuedLead) *entity.QueuedLead {
	var found *entity.QueuedLead
	for _, e := range m {
		if found == nil || e.CreatedAt.Before(found.CreatedAt) ||
			(e.CreatedAt.Equal(found.CreatedAt) && e.ID < found.ID) {
			found = e
		}
	}
	return found
}

// Drain retries every pending entry once, with bounded concurrency. An entry
// already being retried by another drain is skipped. Entries not reached
// before ctx ends are left untouched.
func (q *RetryQueue) Drain(ctx context.Context) DrainReport {
	q.mu.Lock()
	candidates := make([]*entity.QueuedLead, 0, len(q.active))
	for id, e := range q.active {
		if _, busy := q.inFlight[id]; !busy {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	ids := make([]string, len(candidates))
	for i, e := range candidates {
		ids[i] = e.ID
	}
	q.mu.Unlock()

	var (
		reportMu sync.Mutex
		report   DrainReport
	)

	var g errgroup.Group
	g.SetLimit(q.cfg.DrainConcurrency)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			outcome, sent := q.redeliver(ctx, id)
			if !sent {
				return nil
			}
			reportMu.Lock()
			report.Attempted++
			switch outcome {
			case outcomeDelivered:
				report.Delivered++
			case outcomeExhausted:
				report.Exhausted++
			case outcomeRejected:
				report.Rejected++
			}
			reportMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	q.mu.Lock()
	report.StillPending = len(q.active)
	q.mu.Unlock()

	metrics.RecordDrainDelivered(report.Delivered)
	if report.Attempted > 0 {
		q.logger.Info("🔄 Fila de retry drenada",
			zap.Int("attempted", report.Attempted),
			zap.Int("delivered", report.Delivered),
			zap.Int("exhausted", report.Exhausted),
			zap.Int("rejected", report.Rejected),
			zap.Int("still_pending", report.StillPending),
		)
	}
	return report
}

type drainOutcome int

const (
	outcomeGone drainOutcome = iota
	outcomeDelivered
	outcomeRetry
	outcomeExhausted
	outcomeRejected
)

// redeliver sends one entry. sent is false when nothing reached the sink.
func (q *RetryQueue) redeliver(ctx context.Context, id string) (drainOutcome, bool) {
	if ctx.Err() != nil {
		return outcomeGone, false
	}
	entry, ok := q.acquire(id)
	if !ok {
		return outcomeGone, false
	}
	if ctx.Err() != nil {
		q.release(id)
		return outcomeGone, false
	}

	var (
		result *entity.LeadResult
		err    error
	)
	sink, found := q.sinks.Get(entry.TargetSinkID)
	if !found {
		err = fmt.Errorf("%w: sink %q is not registered", entity.ErrSinkTransport, entry.TargetSinkID)
	} else {
		callCtx, cancel := context.WithTimeout(ctx, q.sinks.Timeout(entry.TargetSinkID))
		result, err = sink.CreateLead(callCtx, entry.Lead)
		cancel()
		if err == nil && result == nil {
			err = errors.New("sink returned no result")
		}
	}

	outcome, dead := q.commit(id, result, err)
	if dead != nil {
		q.alertDeadLetter(*dead)
	}
	return outcome, true
}

// acquire marks id in flight and returns a copy of the entry.
func (q *RetryQueue) acquire(id string) (entity.QueuedLead, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.active[id]
	if !ok {
		return entity.QueuedLead{}, false
	}
	if _, busy := q.inFlight[id]; busy {
		return entity.QueuedLead{}, false
	}
	q.inFlight[id] = struct{}{}

	snapshot := *e
	snapshot.Lead = e.Lead.Clone()
	return snapshot, true
}

func (q *RetryQueue) release(id string) {
	q.mu.Lock()
	delete(q.inFlight, id)
	q.mu.Unlock()
}

// commit applies the outcome of a send and clears the in-flight marker.
// The returned entry is non-nil when it just moved to the dead-letter bucket.
func (q *RetryQueue) commit(id string, result *entity.LeadResult, sendErr error) (drainOutcome, *entity.QueuedLead) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, id)

	e, ok := q.active[id]
	if !ok {
		// Removed or evicted while in flight.
		if sendErr == nil && result.Success {
			return outcomeDelivered, nil
		}
		return outcomeGone, nil
	}

	defer q.refreshGaugesLocked()

	if sendErr == nil && result.Success {
		delete(q.active, id)
		q.persistLocked(persistOp{remove: true, id: id})
		q.logger.Info("✅ Lead da fila entregue",
			zap.String("id", id),
			zap.String("sink", e.TargetSinkID),
			zap.Int("attempts", e.Attempts+1),
		)
		return outcomeDelivered, nil
	}

	e.Attempts++
	e.LastAttempt = q.now()

	outcome := outcomeRetry
	if sendErr == nil {
		e.Error = "rejected: " + rejectionMessage(result)
		e.DeadReason = entity.DeadReasonRejected
		outcome = outcomeRejected
	} else {
		e.Error = sendErr.Error()
		if e.Exhausted() {
			e.DeadReason = entity.DeadReasonExhausted
			outcome = outcomeExhausted
		}
	}

	snapshot := *e
	q.persistLocked(persistOp{entry: snapshot})
	if !snapshot.Dead() {
		return outcome, nil
	}

	delete(q.active, id)
	q.dead[id] = e
	metrics.RecordExhausted()
	q.logger.Error("💀 Lead movido para dead-letter",
		zap.String("id", id),
		zap.String("sink", e.TargetSinkID),
		zap.String("reason", e.DeadReason),
		zap.Int("attempts", e.Attempts),
		zap.String("error", e.Error),
	)
	return outcome, &snapshot
}

func rejectionMessage(r *entity.LeadResult) string {
	if r.Message != "" {
		return r.Message
	}
	if len(r.Errors) > 0 {
		return r.Errors[0]
	}
	return "sink declined the lead"
}

// Remove deletes an active or dead-letter entry. It reports whether one existed.
func (q *RetryQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, inActive := q.active[id]
	_, inDead := q.dead[id]
	if !inActive && !inDead {
		return false
	}
	delete(q.active, id)
	delete(q.dead, id)
	q.persistLocked(persistOp{remove: true, id: id})
	q.refreshGaugesLocked()

	q.logger.Info("🗑️ Lead removido da fila", zap.String("id", id))
	return true
}

// ClearExhausted purges dead-letter entries that reached MaxAttempts.
func (q *RetryQueue) ClearExhausted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for id, e := range q.dead {
		if !e.Exhausted() {
			continue
		}
		delete(q.dead, id)
		q.persistLocked(persistOp{remove: true, id: id})
		n++
	}
	q.refreshGaugesLocked()

	if n > 0 {
		q.logger.Info("🧹 Leads esgotados removidos da fila", zap.Int("count", n))
	}
	return n
}

// ClearAll discards every entry, retry history included.
func (q *RetryQueue) ClearAll() {
	q.mu.Lock()
	defer q.mu.Unlock()

	discarded := len(q.active) + len(q.dead)
	for id := range q.active {
		q.persistLocked(persistOp{remove: true, id: id})
	}
	for id := range q.dead {
		q.persistLocked(persistOp{remove: true, id: id})
	}
	q.active = make(map[string]*entity.QueuedLead)
	q.dead = make(map[string]*entity.QueuedLead)
	q.refreshGaugesLocked()

	q.logger.Warn("⚠️ Fila de retry esvaziada", zap.Int("discarded", discarded))
}

func (q *RetryQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Pending:   len(q.active),
		Exhausted: len(q.dead),
		InFlight:  len(q.inFlight),
	}
	s.Total = s.Pending + s.Exhausted
	if o := oldest(q.active); o != nil {
		s.OldestPendingAge = q.now().Sub(o.CreatedAt).Seconds()
	}
	return s
}

// List returns copies of the active entries, oldest first. Without details the
// lead is reduced to its name and property code.
func (q *RetryQueue) List(includeDetails bool) []entity.QueuedLead {
	q.mu.Lock()
	defer q.mu.Unlock()
	return snapshotSorted(q.active, includeDetails)
}

// DeadLetters returns copies of the dead-letter entries, oldest first.
func (q *RetryQueue) DeadLetters(includeDetails bool) []entity.QueuedLead {
	q.mu.Lock()
	defer q.mu.Unlock()
	return snapshotSorted(q.dead, includeDetails)
}

func snapshotSorted(m map[string]*entity.QueuedLead, includeDetails bool) []entity.QueuedLead {
	out := make([]entity.QueuedLead, 0, len(m))
	for _, e := range m {
		c := *e
		if includeDetails {
			c.Lead = e.Lead.Clone()
		} else {
			c.Lead = entity.Lead{Name: e.Lead.Name, PropertyCode: e.Lead.PropertyCode}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Restore loads persisted entries. Call once at startup, before traffic.
func (q *RetryQueue) Restore(ctx context.Context) (int, error) {
	if q.store == nil {
		return 0, nil
	}
	entries, err := q.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("erro ao restaurar fila de retry: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range entries {
		e := entries[i]
		if e.Dead() {
			q.dead[e.ID] = &e
		} else {
			q.active[e.ID] = &e
		}
	}
	q.refreshGaugesLocked()
	return len(entries), nil
}

// Close flushes pending store writes and dead-letter alerts, then stops the
// background goroutines. The queue keeps working in memory afterwards.
func (q *RetryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	if q.writes != nil {
		q.writes.close()
		<-q.writesDone
	}
	if q.alerts != nil {
		q.alerts.close()
		<-q.alertsDone
	}
}

// persistLocked hands op to the store goroutine. A later op for the same entry
// replaces one still waiting, so the store only ever sees each entry's latest
// state, in mutation order.
func (q *RetryQueue) persistLocked(op persistOp) {
	if q.writes == nil {
		return
	}
	q.writes.push(op)
}

func (q *RetryQueue) applyWrite(op persistOp) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var err error
	if op.remove {
		err = q.store.Delete(ctx, op.id)
	} else {
		err = q.store.Save(ctx, op.entry)
	}
	if err != nil {
		q.logger.Error("❌ Falha ao persistir fila de retry",
			zap.String("id", op.key()),
			zap.Bool("remove", op.remove),
			zap.Error(err),
		)
	}
}

func (q *RetryQueue) alertDeadLetter(entry entity.QueuedLead) {
	if q.alerts == nil {
		return
	}
	if !q.alerts.push(entry) {
		q.logger.Warn("⚠️ Fila encerrada, alerta de dead-letter não enviado", zap.String("id", entry.ID))
	}
}

func (q *RetryQueue) notifyDeadLetter(entry entity.QueuedLead) {
	for _, n := range q.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if err := n.NotifyDeadLetter(ctx, entry); err != nil {
			q.logger.Warn("⚠️ Falha ao notificar dead-letter",
				zap.String("id", entry.ID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (q *RetryQueue) refreshGaugesLocked() {
	metrics.SetQueueSize(len(q.active), len(q.dead))
}
