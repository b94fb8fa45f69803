package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/models"
)

// UploadedFile is one file received by the gateway, in submission order.
type UploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// SubmitService owns task creation. Write ordering is deliberate: uploaded
// bytes first (so every ref a worker sees resolves), then the queue entry,
// then the PENDING task record. If the enqueue fails no task record exists,
// so a poller can never find a "queued" task with no durable work behind it.
type SubmitService struct {
	queue   core.TaskQueue
	store   core.TaskStore
	objects core.ObjectStore
	taskTTL time.Duration
	logger  zerolog.Logger
}

func NewSubmitService(queue core.TaskQueue, store core.TaskStore, objects core.ObjectStore, taskTTL time.Duration, logger zerolog.Logger) *SubmitService {
	if taskTTL <= 0 {
		taskTTL = time.Hour
	}
	return &SubmitService{
		queue:   queue,
		store:   store,
		objects: objects,
		taskTTL: taskTTL,
		logger:  logger.With().Str("component", "submit").Logger(),
	}
}

// Submit stores the uploaded bytes, enqueues one work item for the batch, and
// creates the PENDING task record. Returns the new task.
func (s *SubmitService) Submit(ctx context.Context, files []UploadedFile, mode models.ExtractionMode) (*models.Task, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files provided")
	}

	taskID := uuid.NewString()
	log := s.logger.With().Str("task_id", taskID).Logger()

	// Names key the per-file results and sanitized names key the stored
	// bytes; a collision in either would silently overwrite a sibling.
	// Checked up front so a rejected batch stores nothing.
	seenNames := make(map[string]bool, len(files))
	seenKeys := make(map[string]bool, len(files))
	for _, f := range files {
		key := objectKey(taskID, f.Name)
		if seenNames[f.Name] || seenKeys[key] {
			return nil, fmt.Errorf("duplicate file name in batch: %s", f.Name)
		}
		seenNames[f.Name] = true
		seenKeys[key] = true
	}

	refs := make([]models.FileRef, 0, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		key := objectKey(taskID, f.Name)
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.objects.Put(ctx, key, f.Data, contentType); err != nil {
			return nil, fmt.Errorf("store upload %s: %w", f.Name, err)
		}
		refs = append(refs, models.FileRef{Name: f.Name, StorageKey: key})
		names = append(names, f.Name)
	}

	entryID, err := s.queue.Enqueue(ctx, models.WorkItem{
		TaskID: taskID,
		Mode:   mode,
		Files:  refs,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("entry_id", entryID).Int("files", len(files)).Msg("work item enqueued")

	now := time.Now()
	task := &models.Task{
		ID:        taskID,
		Mode:      mode,
		Files:     names,
		Status:    models.StatusPending,
		Message:   "Task queued for processing",
		Completed: 0,
		Total:     len(files),
		CreatedAt: now,
		ExpiresAt: now.Add(s.taskTTL),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		// The queue entry exists but the record does not; the worker will
		// discover the missing task and discard the item.
		return nil, fmt.Errorf("create task record: %w", err)
	}

	return task, nil
}

// objectKey builds a consistent storage key layout for uploaded bytes.
func objectKey(taskID, filename string) string {
	filename = strings.TrimSpace(path.Base(filename))
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("tasks", taskID, filename)
}
