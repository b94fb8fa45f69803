package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/models"
)

var _ core.TaskStore = (*MemoryStore)(nil)

// MemoryStore implements core.TaskStore in process memory for development and
// tests. Expiry is checked on read, mirroring how the Redis keys simply stop
// resolving once their TTL lapses.
type MemoryStore struct {
	mu      sync.Mutex
	tasks   map[string]*models.Task
	results map[string]map[string]*models.FileResult // taskID -> filename -> result
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:   make(map[string]*models.Task),
		results: make(map[string]map[string]*models.FileResult),
		now:     time.Now,
	}
}

func (s *MemoryStore) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *task
	s.tasks[task.ID] = &t
	s.results[task.ID] = make(map[string]*models.FileResult)
	return nil
}

// live returns the task if present and unexpired. Caller holds the lock.
func (s *MemoryStore) live(taskID string) (*models.Task, error) {
	task, ok := s.tasks[taskID]
	if !ok || s.now().After(task.ExpiresAt) {
		return nil, core.ErrTaskNotFound
	}
	return task, nil
}

func (s *MemoryStore) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.live(taskID)
	if err != nil {
		return nil, err
	}
	t := *task
	return &t, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, taskID string, status models.TaskStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.live(taskID)
	if err != nil {
		return err
	}
	if !task.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", core.ErrStaleTransition, task.Status, status)
	}
	task.Status = status
	task.Message = message
	return nil
}

func (s *MemoryStore) SetProgress(ctx context.Context, taskID string, completed int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.live(taskID)
	if err != nil {
		return err
	}
	if completed > task.Completed {
		task.Completed = completed
	}
	task.Message = message
	return nil
}

func (s *MemoryStore) PutFileResult(ctx context.Context, taskID string, result *models.FileResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.live(taskID); err != nil {
		return err
	}
	r := *result
	s.results[taskID][result.Filename] = &r
	return nil
}

func (s *MemoryStore) GetFileResult(ctx context.Context, taskID, filename string) (*models.FileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.live(taskID); err != nil {
		return nil, err
	}
	result, ok := s.results[taskID][filename]
	if !ok {
		return nil, nil
	}
	r := *result
	return &r, nil
}

func (s *MemoryStore) GetFileResults(ctx context.Context, taskID string) ([]models.FileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.live(taskID)
	if err != nil {
		return nil, err
	}
	results := make([]models.FileResult, 0, len(task.Files))
	for _, name := range task.Files {
		if r, ok := s.results[taskID][name]; ok {
			results = append(results, *r)
		}
	}
	return results, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
