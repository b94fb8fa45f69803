package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/models"
)

func newTask(id string, files ...string) *models.Task {
	now := time.Now()
	return &models.Task{
		ID:        id,
		Mode:      models.ModeFastText,
		Files:     files,
		Status:    models.StatusPending,
		Message:   "Task queued for processing",
		Total:     len(files),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestMemoryStore_StatusMovesForwardOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, newTask("t1", "a.pdf")))

	// Jumping straight from queued to terminal is rejected.
	err := s.SetStatus(ctx, "t1", models.StatusSuccess, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStaleTransition))
	err = s.SetStatus(ctx, "t1", models.StatusFailure, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStaleTransition))

	require.NoError(t, s.SetStatus(ctx, "t1", models.StatusProcessing, "Initializing..."))

	// Reverse transition rejected.
	err = s.SetStatus(ctx, "t1", models.StatusPending, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStaleTransition))

	// Re-asserting PROCESSING is fine (replay after crash).
	require.NoError(t, s.SetStatus(ctx, "t1", models.StatusProcessing, "Initializing..."))

	require.NoError(t, s.SetStatus(ctx, "t1", models.StatusSuccess, "Processing complete"))

	// Terminal states never change, not even to another terminal state.
	err = s.SetStatus(ctx, "t1", models.StatusFailure, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStaleTransition))

	task, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, task.Status)
}

func TestMemoryStore_ProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, newTask("t1", "a.pdf", "b.pdf")))

	require.NoError(t, s.SetProgress(ctx, "t1", 2, "Processing file 2 of 2"))
	require.NoError(t, s.SetProgress(ctx, "t1", 1, "Processing file 1 of 2"))

	task, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, task.Completed)
}

func TestMemoryStore_FileResultsInTaskOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, newTask("t1", "a.pdf", "b.pdf", "c.pdf")))

	// Written out of order.
	require.NoError(t, s.PutFileResult(ctx, "t1", &models.FileResult{Filename: "c.pdf", Status: models.FileComplete, Summary: "sc"}))
	require.NoError(t, s.PutFileResult(ctx, "t1", &models.FileResult{Filename: "a.pdf", Status: models.FileFailed, FailureReason: "broken"}))

	results, err := s.GetFileResults(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.pdf", results[0].Filename)
	assert.Equal(t, "c.pdf", results[1].Filename)
}

func TestMemoryStore_MissingResultIsNil(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, newTask("t1", "a.pdf")))

	r, err := s.GetFileResult(ctx, "t1", "a.pdf")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestMemoryStore_ExpiredTaskNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, newTask("t1", "a.pdf")))

	// Jump the clock past the expiration window.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := s.GetTask(ctx, "t1")
	assert.True(t, errors.Is(err, core.ErrTaskNotFound))

	err = s.SetStatus(ctx, "t1", models.StatusProcessing, "late")
	assert.True(t, errors.Is(err, core.ErrTaskNotFound))
}

func TestMemoryStore_UnknownTaskNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetTask(context.Background(), "ghost")
	assert.True(t, errors.Is(err, core.ErrTaskNotFound))
}
