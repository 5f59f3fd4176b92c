package tracker

import (
	"context"
	"time"

	"whalewatch/internal/workers"
	"whalewatch/pkg/errors"
)

// PollWorker drives the poll-reconcile cycle for one exchange. Each exchange
// gets its own worker so a slow venue never delays the others; the jitter
// spreads request bursts across the poll window.
type PollWorker struct {
	*workers.BaseWorker
	manager  *Manager
	exchange string
	jitter   time.Duration
}

// NewPollWorker creates a poll worker for a single exchange.
func NewPollWorker(m *Manager, exchange string, interval, jitter time.Duration) *PollWorker {
	return &PollWorker{
		BaseWorker: workers.NewBaseWorker("poll_"+exchange, interval, true),
		manager:    m,
		exchange:   exchange,
		jitter:     jitter,
	}
}

// Jitter returns the maximum random delay added to each poll interval.
func (w *PollWorker) Jitter() time.Duration {
	return w.jitter
}

// Run executes one poll-reconcile cycle. An open circuit breaker is an
// expected state between cooldowns, recorded in worker health but not
// propagated as a failure.
func (w *PollWorker) Run(ctx context.Context) error {
	err := w.manager.PollExchange(ctx, w.exchange)
	if err == nil {
		w.RecordRun()
		return nil
	}

	w.RecordError(err)
	if errors.Is(err, errors.ErrCircuitOpen) {
		return nil
	}
	return err
}

// FillWorker checks tracked orders against the live price.
type FillWorker struct {
	*workers.BaseWorker
	manager *Manager
}

// NewFillWorker creates the fill detection worker.
func NewFillWorker(m *Manager, interval time.Duration) *FillWorker {
	return &FillWorker{
		BaseWorker: workers.NewBaseWorker("fill_checker", interval, true),
		manager:    m,
	}
}

// Run executes one fill detection pass.
func (w *FillWorker) Run(ctx context.Context) error {
	if err := w.manager.CheckFills(ctx); err != nil {
		w.RecordError(err)
		return err
	}
	w.RecordRun()
	return nil
}

// ReapWorker purges orders past the retention window.
type ReapWorker struct {
	*workers.BaseWorker
	manager   *Manager
	retention time.Duration
}

// NewReapWorker creates the retention reaper.
func NewReapWorker(m *Manager, interval, retention time.Duration) *ReapWorker {
	return &ReapWorker{
		BaseWorker: workers.NewBaseWorker("reaper", interval, true),
		manager:    m,
		retention:  retention,
	}
}

// Run executes one retention pass.
func (w *ReapWorker) Run(ctx context.Context) error {
	if _, err := w.manager.Reap(ctx, w.retention); err != nil {
		w.RecordError(err)
		return err
	}
	w.RecordRun()
	return nil
}
