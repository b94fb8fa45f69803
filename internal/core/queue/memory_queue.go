package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/models"
)

var _ core.TaskQueue = (*MemoryQueue)(nil)

// MemoryQueue implements core.TaskQueue in process memory for development and
// tests. It keeps the same contract as the Redis stream: entries stay in the
// pending set after a claim and are only removed by Acknowledge; claimed but
// unacknowledged entries become claimable again via ReclaimStale.
type MemoryQueue struct {
	mu      sync.Mutex
	nextID  int
	entries []*memEntry
}

type memEntry struct {
	id        string
	item      models.WorkItem
	delivered bool
	claimedAt time.Time
	acked     bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, item models.WorkItem) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	e := &memEntry{id: fmt.Sprintf("%d-0", q.nextID), item: item}
	q.entries = append(q.entries, e)
	return e.id, nil
}

// Claim polls for an undelivered entry, waiting up to block.
func (q *MemoryQueue) Claim(ctx context.Context, block time.Duration) (*models.ClaimedItem, error) {
	deadline := time.Now().Add(block)
	for {
		if item := q.takeNew(); item != nil {
			return item, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (q *MemoryQueue) takeNew() *models.ClaimedItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.acked || e.delivered {
			continue
		}
		e.delivered = true
		e.claimedAt = time.Now()
		return &models.ClaimedItem{EntryID: e.id, Item: e.item}
	}
	return nil
}

func (q *MemoryQueue) ReclaimStale(ctx context.Context, minIdle time.Duration) ([]models.ClaimedItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.ClaimedItem
	now := time.Now()
	for _, e := range q.entries {
		if e.acked || !e.delivered {
			continue
		}
		if now.Sub(e.claimedAt) < minIdle {
			continue
		}
		e.claimedAt = now
		out = append(out, models.ClaimedItem{EntryID: e.id, Item: e.item})
	}
	return out, nil
}

func (q *MemoryQueue) Acknowledge(ctx context.Context, entryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.id == entryID {
			e.acked = true
			return nil
		}
	}
	return fmt.Errorf("unknown entry %s", entryID)
}

func (q *MemoryQueue) Close() error { return nil }

// PendingCount reports entries not yet acknowledged. Test helper.
func (q *MemoryQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if !e.acked {
			n++
		}
	}
	return n
}
