package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Garzer09/biz-data-guide-sub001/internal/metrics"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StaleJobStore fails processing jobs whose heartbeat is older than a cutoff.
type StaleJobStore interface {
	FailStale(ctx context.Context, before time.Time, reason string) ([]uuid.UUID, error)
}

// Watchdog moves import jobs stuck in processing to failed. A job is stuck
// when its invocation died (timeout, crash, redeploy) before the terminal write.
type Watchdog struct {
	store      StaleJobStore
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a watchdog. It does nothing until Start or Sweep is called.
func New(store StaleJobStore, staleAfter time.Duration, logger *zap.Logger) *Watchdog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watchdog{
		store:      store,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Sweep runs one reconciliation pass and returns the ids it failed.
func (w *Watchdog) Sweep(ctx context.Context) ([]uuid.UUID, error) {
	cutoff := w.now().Add(-w.staleAfter)
	reason := fmt.Sprintf("import did not finish: no progress for more than %s", w.staleAfter)

	ids, err := w.store.FailStale(ctx, cutoff, reason)
	if err != nil {
		return nil, fmt.Errorf("sweep stale import jobs: %w", err)
	}
	if len(ids) > 0 {
		metrics.ObserveStaleJobs(len(ids))
		for _, id := range ids {
			w.logger.Warn("failed stale import job", zap.String("job_id", id.String()), zap.Time("cutoff", cutoff))
		}
	}
	return ids, nil
}

// Start schedules Sweep on the cron spec (standard five-field or @every form).
func (w *Watchdog) Start(schedule string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return fmt.Errorf("watchdog already started")
	}

	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := w.Sweep(ctx); err != nil {
			w.logger.Error("watchdog sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule watchdog %q: %w", schedule, err)
	}
	c.Start()
	w.cron = c
	w.logger.Info("watchdog started", zap.String("schedule", schedule), zap.Duration("stale_after", w.staleAfter))
	return nil
}

// Stop halts scheduling and waits for a running sweep.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
