package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Condensa/internal/models"
)

func testItem(taskID string) models.WorkItem {
	return models.WorkItem{
		TaskID: taskID,
		Mode:   models.ModeFastText,
		Files:  []models.FileRef{{Name: "a.pdf", StorageKey: "tasks/" + taskID + "/a.pdf"}},
	}
}

func TestMemoryQueue_ClaimDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	_, err := q.Enqueue(ctx, testItem("t1"))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, testItem("t2"))
	require.NoError(t, err)

	first, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "t1", first.Item.TaskID)

	second, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "t2", second.Item.TaskID)
}

func TestMemoryQueue_ClaimTimesOutEmpty(t *testing.T) {
	q := NewMemoryQueue()
	item, err := q.Claim(context.Background(), 30*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestMemoryQueue_ClaimedStaysPendingUntilAcked(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_, err := q.Enqueue(ctx, testItem("t1"))
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 1, q.PendingCount())

	// Not redelivered to a fresh claim while reserved.
	again, err := q.Claim(ctx, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, q.Acknowledge(ctx, claimed.EntryID))
	assert.Equal(t, 0, q.PendingCount())
}

func TestMemoryQueue_ReclaimAfterVisibilityWindow(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_, err := q.Enqueue(ctx, testItem("t1"))
	require.NoError(t, err)

	// First consumer claims, then "crashes" without acknowledging.
	crashed, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, crashed)

	// Inside the window nothing is reclaimable.
	items, err := q.ReclaimStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, items)

	time.Sleep(20 * time.Millisecond)
	items, err = q.ReclaimStale(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, crashed.EntryID, items[0].EntryID)
	assert.Equal(t, "t1", items[0].Item.TaskID)

	require.NoError(t, q.Acknowledge(ctx, items[0].EntryID))
	assert.Equal(t, 0, q.PendingCount())
}

func TestMemoryQueue_AcknowledgeUnknownEntry(t *testing.T) {
	q := NewMemoryQueue()
	assert.Error(t, q.Acknowledge(context.Background(), "99-0"))
}
