package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/models"
)

var _ core.TaskStore = (*RedisStore)(nil)

// RedisStore implements core.TaskStore on plain Redis keys. The task record
// lives at task:{id}:status and each file result at task:{id}:file:{name};
// all keys expire at the task's ExpiresAt, fixed when the task is created.
// Later writes deliberately keep the original TTL so the window never slides.
//
// Only one worker writes a given task at a time (the queue hands each work
// item to a single consumer), so read-modify-write on the task record needs
// no cross-process locking.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
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
	return &RedisStore{client: client}, nil
}

func taskKey(taskID string) string {
	return fmt.Sprintf("task:%s:status", taskID)
}

func fileKey(taskID, filename string) string {
	return fmt.Sprintf("task:%s:file:%s", taskID, filename)
}

func (s *RedisStore) CreateTask(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	ttl := time.Until(task.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("task %s expires in the past", task.ID)
	}
	if err := s.client.Set(ctx, taskKey(task.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("create task %s: %w", task.ID, err)
	}
	return nil
}

func (s *RedisStore) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	data, err := s.client.Get(ctx, taskKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	var task models.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return &task, nil
}

func (s *RedisStore) SetStatus(ctx context.Context, taskID string, status models.TaskStatus, message string) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", core.ErrStaleTransition, task.Status, status)
	}
	task.Status = status
	task.Message = message
	return s.writeTask(ctx, task)
}

func (s *RedisStore) SetProgress(ctx context.Context, taskID string, completed int, message string) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	// Progress only moves forward; a replayed file never winds the counter back.
	if completed > task.Completed {
		task.Completed = completed
	}
	task.Message = message
	return s.writeTask(ctx, task)
}

func (s *RedisStore) writeTask(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	err = s.client.SetArgs(ctx, taskKey(task.ID), data, redis.SetArgs{KeepTTL: true}).Err()
	if err != nil {
		return fmt.Errorf("write task %s: %w", task.ID, err)
	}
	return nil
}

func (s *RedisStore) PutFileResult(ctx context.Context, taskID string, result *models.FileResult) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result %s/%s: %w", taskID, result.Filename, err)
	}
	key := fileKey(taskID, result.Filename)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("put result %s/%s: %w", taskID, result.Filename, err)
	}
	// File results expire together with their task.
	if err := s.client.ExpireAt(ctx, key, task.ExpiresAt).Err(); err != nil {
		return fmt.Errorf("expire result %s/%s: %w", taskID, result.Filename, err)
	}
	return nil
}

func (s *RedisStore) GetFileResult(ctx context.Context, taskID, filename string) (*models.FileResult, error) {
	data, err := s.client.Get(ctx, fileKey(taskID, filename)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s/%s: %w", taskID, filename, err)
	}
	var result models.FileResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result %s/%s: %w", taskID, filename, err)
	}
	return &result, nil
}

// GetFileResults returns the results recorded so far, in the task's file order.
func (s *RedisStore) GetFileResults(ctx context.Context, taskID string) ([]models.FileResult, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	results := make([]models.FileResult, 0, len(task.Files))
	for _, name := range task.Files {
		r, err := s.GetFileResult(ctx, taskID, name)
		if err != nil {
			return nil, err
		}
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
