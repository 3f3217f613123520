package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xavierca1/lead-dispatch/internal/infra/queue"
)

type Drainer interface {
	Drain(ctx context.Context) queue.DrainReport
}

// DrainWorker triggers retry-queue drains on a schedule. After a cycle that
// attempted entries but delivered none, the wait grows exponentially up to
// maxInterval; any delivery, or an empty cycle, resets it.
type DrainWorker struct {
	queue       Drainer
	interval    time.Duration
	maxInterval time.Duration
	budget      time.Duration
	logger      *zap.Logger

	backoff *backoff.ExponentialBackOff
}

func NewDrainWorker(q Drainer, interval, maxInterval, budget time.Duration, logger *zap.Logger) *DrainWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxInterval < interval {
		maxInterval = interval
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = maxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return &DrainWorker{
		queue:       q,
		interval:    interval,
		maxInterval: maxInterval,
		budget:      budget,
		logger:      logger,
		backoff:     b,
	}
}

// Start blocks until ctx is done. A non-positive interval disables scheduling.
func (w *DrainWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("⏸️ Worker de drain desativado, fila só é drenada via admin")
		return
	}
	w.logger.Info("⏳ Worker de drain iniciado",
		zap.Duration("interval", w.interval),
		zap.Duration("max_interval", w.maxInterval),
		zap.Duration("budget", w.budget),
	)

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("🛑 Worker de drain parado")
			return
		case <-timer.C:
			report := w.RunOnce(ctx)
			timer.Reset(w.nextDelay(report))
		}
	}
}

// RunOnce drains once within the configured budget.
func (w *DrainWorker) RunOnce(ctx context.Context) queue.DrainReport {
	if w.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.budget)
		defer cancel()
	}
	return w.queue.Drain(ctx)
}

func (w *DrainWorker) nextDelay(r queue.DrainReport) time.Duration {
	if r.Attempted > 0 && r.Delivered == 0 {
		d := w.backoff.NextBackOff()
		w.logger.Warn("⚠️ Ciclo de drain sem entregas, aumentando intervalo",
			zap.Int("attempted", r.Attempted),
			zap.Duration("next_in", d),
		)
		return d
	}
	w.backoff.Reset()
	return w.interval
}
