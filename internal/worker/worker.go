package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/core/summarize"
	"github.com/markdave123-py/Condensa/internal/models"
)

// Config tunes the consumer loop.
type Config struct {
	ClaimBlock  time.Duration // how long one Claim blocks waiting for work
	ReclaimIdle time.Duration // visibility window before stale items are taken over
}

// Worker is the queue consumer: it claims work items, drives extraction and
// summarization per file, records progress in the task store, and only
// acknowledges an item once a terminal status is durably written.
type Worker struct {
	queue      core.TaskQueue
	store      core.TaskStore
	objects    core.ObjectStore
	extractors map[models.ExtractionMode]core.DocumentExtractor
	engine     *summarize.Engine
	cfg        Config
	logger     zerolog.Logger
}

func New(
	queue core.TaskQueue,
	store core.TaskStore,
	objects core.ObjectStore,
	extractors map[models.ExtractionMode]core.DocumentExtractor,
	engine *summarize.Engine,
	cfg Config,
	logger zerolog.Logger,
) *Worker {
	if cfg.ClaimBlock <= 0 {
		cfg.ClaimBlock = 5 * time.Second
	}
	if cfg.ReclaimIdle <= 0 {
		cfg.ReclaimIdle = time.Minute
	}
	return &Worker{
		queue:      queue,
		store:      store,
		objects:    objects,
		extractors: extractors,
		engine:     engine,
		cfg:        cfg,
		logger:     logger.With().Str("component", "worker").Logger(),
	}
}

// Run executes the consumer loop until ctx is cancelled. Infrastructure
// errors are logged and backed off; they never kill the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker started, waiting for tasks")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker shutting down")
			return ctx.Err()
		default:
		}

		// Recover items a crashed consumer left unacknowledged.
		reclaimed, err := w.queue.ReclaimStale(ctx, w.cfg.ReclaimIdle)
		if err != nil {
			w.logger.Error().Err(err).Msg("reclaim failed")
			w.pause(ctx)
			continue
		}
		for i := range reclaimed {
			w.logger.Info().Str("entry_id", reclaimed[i].EntryID).Msg("processing reclaimed item")
			w.handle(ctx, &reclaimed[i])
		}

		claimed, err := w.queue.Claim(ctx, w.cfg.ClaimBlock)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Error().Err(err).Msg("claim failed")
			w.pause(ctx)
			continue
		}
		if claimed == nil {
			continue
		}
		w.handle(ctx, claimed)
	}
}

// handle runs one item through the state machine and acknowledges it on
// success. A processing error leaves the item unacknowledged so the queue
// redelivers it after the visibility window.
func (w *Worker) handle(ctx context.Context, claimed *models.ClaimedItem) {
	log := w.logger.With().
		Str("task_id", claimed.Item.TaskID).
		Str("entry_id", claimed.EntryID).
		Logger()

	if err := w.processItem(ctx, &claimed.Item, log); err != nil {
		log.Error().Err(err).Msg("processing aborted, leaving item for redelivery")
		return
	}
	if err := w.queue.Acknowledge(ctx, claimed.EntryID); err != nil {
		// The terminal status is already persisted; a replay will see it and
		// just re-acknowledge.
		log.Error().Err(err).Msg("acknowledge failed")
		return
	}
	log.Info().Msg("work item acknowledged")
}

// processItem drives one work item to a terminal task status. Per-file
// failures are recorded and skipped over; only store failures return an error.
func (w *Worker) processItem(ctx context.Context, item *models.WorkItem, log zerolog.Logger) error {
	task, err := w.store.GetTask(ctx, item.TaskID)
	if err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			// Task record expired while the item sat in the queue. Nothing
			// left to report to; drop the item.
			log.Warn().Msg("task record gone, discarding work item")
			return nil
		}
		return err
	}
	if task.Status.Terminal() {
		// Finished previously but the acknowledge was lost. Re-ack only.
		log.Info().Str("status", string(task.Status)).Msg("task already terminal, re-acknowledging")
		return nil
	}

	if err := w.store.SetStatus(ctx, item.TaskID, models.StatusProcessing, "Initializing..."); err != nil {
		return fmt.Errorf("set processing: %w", err)
	}

	total := len(item.Files)
	completed := 0
	var failures []string

	for idx, ref := range item.Files {
		flog := log.With().Str("file", ref.Name).Logger()

		// Idempotent replay: a file finished before a crash is never redone.
		prior, err := w.store.GetFileResult(ctx, item.TaskID, ref.Name)
		if err != nil {
			return fmt.Errorf("check prior result: %w", err)
		}
		if prior != nil && prior.Status == models.FileComplete {
			flog.Info().Msg("file already complete, skipping")
			completed++
			continue
		}

		progress := fmt.Sprintf("Processing file %d of %d", idx+1, total)
		if err := w.store.SetProgress(ctx, item.TaskID, completed, progress); err != nil {
			return fmt.Errorf("set progress: %w", err)
		}

		result, ferr := w.processFile(ctx, item, ref, flog)
		if ferr != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ref.Name, ferr))
			result = &models.FileResult{
				Filename:      ref.Name,
				Status:        models.FileFailed,
				FailureReason: ferr.Error(),
			}
			flog.Error().Err(ferr).Msg("file failed")
		} else {
			completed++
		}

		if err := w.store.PutFileResult(ctx, item.TaskID, result); err != nil {
			return fmt.Errorf("put file result: %w", err)
		}
		if err := w.store.SetProgress(ctx, item.TaskID, completed, progress); err != nil {
			return fmt.Errorf("set progress: %w", err)
		}
	}

	// Partial success still counts as SUCCESS: per-file failures stay visible
	// on their results. Only a fully failed batch is a task FAILURE.
	if len(failures) == total && total > 0 {
		reason := "all files failed: " + strings.Join(failures, "; ")
		if err := w.store.SetStatus(ctx, item.TaskID, models.StatusFailure, reason); err != nil {
			return fmt.Errorf("set failure: %w", err)
		}
		log.Warn().Int("failed", len(failures)).Msg("task failed")
		return nil
	}

	if err := w.store.SetStatus(ctx, item.TaskID, models.StatusSuccess, "Processing complete"); err != nil {
		return fmt.Errorf("set success: %w", err)
	}
	log.Info().Int("completed", completed).Int("failed", len(failures)).Msg("task complete")
	return nil
}

// processFile extracts and summarizes one file. Errors are per-file and
// non-fatal to the batch.
func (w *Worker) processFile(ctx context.Context, item *models.WorkItem, ref models.FileRef, log zerolog.Logger) (*models.FileResult, error) {
	extractor, ok := w.extractors[item.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for mode %q", core.ErrExtractionFailed, item.Mode)
	}

	data, err := w.objects.Get(ctx, ref.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch bytes: %v", core.ErrExtractionFailed, err)
	}

	log.Info().Int("bytes", len(data)).Msg("extracting")
	markdown, err := extractor.Extract(ctx, data, ref.Name)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("summarizing")
	summary, err := w.engine.SummarizeDocument(ctx, markdown, ref.Name)
	if err != nil {
		return nil, err
	}

	return &models.FileResult{
		Filename: ref.Name,
		Status:   models.FileComplete,
		Markdown: markdown,
		Summary:  summary,
	}, nil
}

func (w *Worker) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}
