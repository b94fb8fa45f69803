package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/models"
)

var _ core.TaskQueue = (*RedisQueue)(nil)

// RedisQueue implements core.TaskQueue on a Redis Stream with one consumer
// group. Every worker process in the group competes for entries; entries
// claimed but never acknowledged become reclaimable after they go idle.
type RedisQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
}

// NewRedisQueue connects to Redis and ensures the stream and consumer group
// exist. An already-existing group (BUSYGROUP) is not an error.
func NewRedisQueue(ctx context.Context, redisURL, stream, group, consumer string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	q := &RedisQueue{client: client, stream: stream, group: group, consumer: consumer}
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %q: %w", q.group, err)
	}
	return nil
}

// Enqueue appends the work item to the stream. The files field carries the
// ordered refs as JSON so one entry describes the whole batch.
func (q *RedisQueue) Enqueue(ctx context.Context, item models.WorkItem) (string, error) {
	files, err := json.Marshal(item.Files)
	if err != nil {
		return "", fmt.Errorf("marshal work item files: %w", err)
	}

	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"task_id": item.TaskID,
			"mode":    string(item.Mode),
			"files":   string(files),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("%w: xadd: %v", core.ErrQueueUnavailable, err)
	}
	return id, nil
}

// Claim blocks up to block for a new entry. Returns (nil, nil) when the wait
// times out with nothing to do.
func (q *RedisQueue) Claim(ctx context.Context, block time.Duration) (*models.ClaimedItem, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: xreadgroup: %v", core.ErrQueueUnavailable, err)
	}

	for _, s := range streams {
		for _, msg := range s.Messages {
			return decodeMessage(msg)
		}
	}
	return nil, nil
}

// ReclaimStale takes over entries left pending by a crashed consumer for at
// least minIdle.
func (q *RedisQueue) ReclaimStale(ctx context.Context, minIdle time.Duration) ([]models.ClaimedItem, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: xautoclaim: %v", core.ErrQueueUnavailable, err)
	}

	items := make([]models.ClaimedItem, 0, len(msgs))
	for _, msg := range msgs {
		item, err := decodeMessage(msg)
		if err != nil {
			// Malformed entry: drop it so it cannot wedge the group.
			_ = q.client.XAck(ctx, q.stream, q.group, msg.ID).Err()
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

func (q *RedisQueue) Acknowledge(ctx context.Context, entryID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, entryID).Err(); err != nil {
		return fmt.Errorf("%w: xack %s: %v", core.ErrQueueUnavailable, entryID, err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func decodeMessage(msg redis.XMessage) (*models.ClaimedItem, error) {
	taskID, _ := msg.Values["task_id"].(string)
	mode, _ := msg.Values["mode"].(string)
	filesRaw, _ := msg.Values["files"].(string)
	if taskID == "" || filesRaw == "" {
		return nil, fmt.Errorf("stream entry %s missing task fields", msg.ID)
	}

	var files []models.FileRef
	if err := json.Unmarshal([]byte(filesRaw), &files); err != nil {
		return nil, fmt.Errorf("decode files for entry %s: %w", msg.ID, err)
	}

	return &models.ClaimedItem{
		EntryID: msg.ID,
		Item: models.WorkItem{
			TaskID: taskID,
			Mode:   models.ExtractionMode(mode),
			Files:  files,
		},
	}, nil
}
