package core

import (
	"context"
	"time"

	"github.com/markdave123-py/Condensa/internal/models"
)

// TaskStore is the authoritative, externally readable record of task and
// per-file state. It abstracts Redis so higher layers never depend on a
// specific backend. All keys share one expiration fixed at task creation;
// later writes never extend the window.
type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
	// SetStatus moves the task forward through its lifecycle. Reverse
	// transitions (including any write to a terminal task) fail with
	// ErrStaleTransition.
	SetStatus(ctx context.Context, taskID string, status models.TaskStatus, message string) error
	SetProgress(ctx context.Context, taskID string, completed int, message string) error
	PutFileResult(ctx context.Context, taskID string, result *models.FileResult) error
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	GetFileResult(ctx context.Context, taskID, filename string) (*models.FileResult, error)
	GetFileResults(ctx context.Context, taskID string) ([]models.FileResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// TaskQueue is a durable, ordered, at-least-once log of pending work with
// competing-consumer semantics: an item is delivered to one consumer at a
// time but becomes claimable again if that consumer fails to acknowledge
// within the visibility window.
type TaskQueue interface {
	// Enqueue appends the item to the durable log. It never blocks on
	// consumers; infrastructure failures wrap ErrQueueUnavailable.
	Enqueue(ctx context.Context, item models.WorkItem) (entryID string, err error)
	// Claim blocks up to block waiting for a new item, reserving it to this
	// consumer. A nil item with nil error means the wait timed out.
	Claim(ctx context.Context, block time.Duration) (*models.ClaimedItem, error)
	// ReclaimStale takes over items another consumer claimed but left
	// unacknowledged for at least minIdle (crash recovery).
	ReclaimStale(ctx context.Context, minIdle time.Duration) ([]models.ClaimedItem, error)
	// Acknowledge permanently removes the entry from the pending set. Callers
	// must persist terminal task state first; acknowledge-before-persist loses
	// results on a crash.
	Acknowledge(ctx context.Context, entryID string) error
	Close() error
}

// ObjectStore holds the raw uploaded bytes a WorkItem references. The gateway
// writes before enqueueing so every reference a worker sees is resolvable.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}
