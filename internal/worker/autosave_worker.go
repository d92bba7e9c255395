package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/repository"
)

const (
	AutosaveBatchTimeout = 2 * time.Second
	AutosavePollTimeout  = 1 * time.Second
	autosaveRetryDelay   = 5 * time.Second
	drainTimeout         = 10 * time.Second
)

// DraftStore persists autosaved answers. *repository.AttemptRepository implements it.
type DraftStore interface {
	UpsertDrafts(ctx context.Context, drafts []repository.AnswerDraft) (int64, error)
}

// AutosaveWorker consumes the persist-answers queue and upserts drafts to
// PostgreSQL in batches.
type AutosaveWorker struct {
	store     DraftStore
	queue     Queue
	batchSize int
	log       zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(store DraftStore, queue Queue, batchSize int, log zerolog.Logger) *AutosaveWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	return &AutosaveWorker{
		store:     store,
		queue:     queue,
		batchSize: batchSize,
		log:       logger.Component(log, "autosave_worker"),
	}
}

// Start runs until ctx is cancelled, then drains the queue. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]string, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= AutosaveBatchTimeout) {
			if err := w.flush(ctx, batch); err != nil {
				pause(ctx, autosaveRetryDelay)
			}
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			if err := w.flush(drainCtx, batch); err == nil {
				w.drain(drainCtx)
			}
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		default:
		}

		item, err := w.queue.BPop(ctx, config.WorkerKey.PersistAnswersQueue, AutosavePollTimeout)
		if err != nil {
			if !errors.Is(err, ErrEmpty) && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Queue read failed")
				pause(ctx, time.Second)
			}
			continue
		}
		batch = append(batch, item)
	}
}

// flush upserts a batch of raw queue items. Malformed items are dropped; on a
// store failure every item goes back on the queue and the error is returned.
func (w *AutosaveWorker) flush(ctx context.Context, raw []string) error {
	if len(raw) == 0 {
		return nil
	}

	drafts := make([]repository.AnswerDraft, 0, len(raw))
	kept := make([]string, 0, len(raw))
	for _, item := range raw {
		var d repository.AnswerDraft
		if err := json.Unmarshal([]byte(item), &d); err != nil {
			w.log.Error().Err(err).Str("payload", item).Msg("Dropping malformed draft")
			continue
		}
		drafts = append(drafts, d)
		kept = append(kept, item)
	}
	if len(drafts) == 0 {
		return nil
	}

	n, err := w.store.UpsertDrafts(ctx, drafts)
	if err != nil {
		w.log.Error().Err(err).Int("count", len(drafts)).Msg("Persist failed, requeueing")
		if pushErr := w.queue.Push(context.Background(), config.WorkerKey.PersistAnswersQueue, kept...); pushErr != nil {
			w.log.Error().Err(pushErr).Int("count", len(kept)).Msg("Requeue failed, drafts lost")
		}
		return err
	}

	// Rows for completed attempts or foreign questions are filtered out by the store.
	w.log.Debug().Int("received", len(drafts)).Int64("persisted", n).Msg("Drafts persisted")
	return nil
}

// drain flushes whatever is left on the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	batch := make([]string, 0, w.batchSize)
	for {
		item, err := w.queue.Pop(ctx, config.WorkerKey.PersistAnswersQueue)
		if err != nil {
			if !errors.Is(err, ErrEmpty) {
				w.log.Error().Err(err).Msg("Drain read failed")
			}
			break
		}
		batch = append(batch, item)
		if len(batch) < w.batchSize {
			continue
		}
		if err := w.flush(ctx, batch); err != nil {
			return
		}
		drained += len(batch)
		batch = batch[:0]
	}

	if err := w.flush(ctx, batch); err == nil {
		drained += len(batch)
	}
	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
