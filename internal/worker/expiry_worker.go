package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/logger"
)

// Expirer force-completes overdue attempts. *service.AttemptService implements it.
type Expirer interface {
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

// Locker grants a short-lived lock so one instance runs each sweep.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ExpiryWorker periodically scores attempts whose deadline has passed
// without a submission.
type ExpiryWorker struct {
	expirer   Expirer
	locker    Locker
	interval  time.Duration
	batchSize int
	log       zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(expirer Expirer, locker Locker, interval time.Duration, batchSize int, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		expirer:   expirer,
		locker:    locker,
		interval:  interval,
		batchSize: batchSize,
		log:       logger.Component(log, "expiry_worker"),
	}
}

// Start sweeps every interval until ctx is cancelled. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass if this instance wins the lock and returns how many
// attempts it completed. A full batch means more may be waiting; they are
// picked up on the next tick.
func (w *ExpiryWorker) Sweep(ctx context.Context) int {
	ok, err := w.locker.TryLock(ctx, config.WorkerKey.ExpiryLock, w.interval)
	if err != nil {
		w.log.Error().Err(err).Msg("Acquire sweep lock failed")
		return 0
	}
	if !ok {
		return 0
	}

	n, err := w.expirer.ExpireOverdue(ctx, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("Sweep failed")
		return n
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("Expired attempts completed")
	}
	return n
}
