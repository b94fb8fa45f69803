package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/core/objects"
	"github.com/markdave123-py/Condensa/internal/core/queue"
	"github.com/markdave123-py/Condensa/internal/core/store"
	"github.com/markdave123-py/Condensa/internal/core/summarize"
	"github.com/markdave123-py/Condensa/internal/models"
)

// stubExtractor counts extractions per file and fails on request.
type stubExtractor struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newStubExtractor() *stubExtractor {
	return &stubExtractor{calls: map[string]int{}, fail: map[string]bool{}}
}

func (e *stubExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	e.mu.Lock()
	e.calls[filename]++
	e.mu.Unlock()
	if e.fail[filename] {
		return "", fmt.Errorf("%w: unreadable %s", core.ErrExtractionFailed, filename)
	}
	return fmt.Sprintf("# %s\n\nextracted text of %s\n", filename, filename), nil
}

func (e *stubExtractor) callsFor(filename string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[filename]
}

// stubSummarizer returns a deterministic summary per input.
type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, text, instruction string) (string, error) {
	return "summary", nil
}

type harness struct {
	worker    *Worker
	queue     *queue.MemoryQueue
	store     *store.MemoryStore
	objects   *objects.MemoryStore
	extractor *stubExtractor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	q := queue.NewMemoryQueue()
	s := store.NewMemoryStore()
	o := objects.NewMemoryStore()
	ex := newStubExtractor()
	eng := summarize.NewEngine(stubSummarizer{}, 5000, 5, 1, zerolog.Nop())
	w := New(q, s, o,
		map[models.ExtractionMode]core.DocumentExtractor{models.ModeFastText: ex},
		eng,
		Config{ClaimBlock: 100 * time.Millisecond, ReclaimIdle: time.Minute},
		zerolog.Nop(),
	)
	return &harness{worker: w, queue: q, store: s, objects: o, extractor: ex}
}

// submit mimics the gateway: bytes stored, item enqueued, PENDING task created.
func (h *harness) submit(t *testing.T, taskID string, filenames ...string) *models.ClaimedItem {
	t.Helper()
	ctx := context.Background()

	refs := make([]models.FileRef, len(filenames))
	for i, name := range filenames {
		key := "tasks/" + taskID + "/" + name
		require.NoError(t, h.objects.Put(ctx, key, []byte("%PDF-1.4 "+name), "application/pdf"))
		refs[i] = models.FileRef{Name: name, StorageKey: key}
	}

	_, err := h.queue.Enqueue(ctx, models.WorkItem{TaskID: taskID, Mode: models.ModeFastText, Files: refs})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, h.store.CreateTask(ctx, &models.Task{
		ID:        taskID,
		Mode:      models.ModeFastText,
		Files:     filenames,
		Status:    models.StatusPending,
		Message:   "Task queued for processing",
		Total:     len(filenames),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}))

	claimed, err := h.queue.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	return claimed
}

func TestWorker_ProcessesBatchToSuccess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	claimed := h.submit(t, "t1", "a.pdf", "b.pdf")

	h.worker.handle(ctx, claimed)

	task, err := h.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, task.Status)
	assert.Equal(t, "Processing complete", task.Message)
	assert.Equal(t, 2, task.Completed)

	results, err := h.store.GetFileResults(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.FileComplete, r.Status)
		assert.Equal(t, "summary", r.Summary)
		assert.NotEmpty(t, r.Markdown)
	}

	assert.Equal(t, 0, h.queue.PendingCount(), "item must be acknowledged")
}

func TestWorker_PartialFailureIsStillSuccess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.extractor.fail["bad.pdf"] = true
	claimed := h.submit(t, "t1", "bad.pdf", "good.pdf")

	h.worker.handle(ctx, claimed)

	task, err := h.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, task.Status)
	assert.Equal(t, 1, task.Completed)

	bad, err := h.store.GetFileResult(ctx, "t1", "bad.pdf")
	require.NoError(t, err)
	require.NotNil(t, bad)
	assert.Equal(t, models.FileFailed, bad.Status)
	assert.Contains(t, bad.FailureReason, "unreadable")

	good, err := h.store.GetFileResult(ctx, "t1", "good.pdf")
	require.NoError(t, err)
	require.NotNil(t, good)
	assert.Equal(t, models.FileComplete, good.Status)

	assert.Equal(t, 0, h.queue.PendingCount())
}

func TestWorker_AllFilesFailedIsFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.extractor.fail["x.pdf"] = true
	h.extractor.fail["y.pdf"] = true
	claimed := h.submit(t, "t1", "x.pdf", "y.pdf")

	h.worker.handle(ctx, claimed)

	task, err := h.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailure, task.Status)
	assert.Contains(t, task.Message, "all files failed")

	assert.Equal(t, 0, h.queue.PendingCount(), "failed batches are acknowledged too")
}

func TestWorker_IdempotentReplaySkipsCompleteFiles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	claimed := h.submit(t, "t1", "a.pdf", "b.pdf")

	// a.pdf already finished in a previous attempt that crashed before ack.
	require.NoError(t, h.store.SetStatus(ctx, "t1", models.StatusProcessing, "Initializing..."))
	require.NoError(t, h.store.PutFileResult(ctx, "t1", &models.FileResult{
		Filename: "a.pdf",
		Status:   models.FileComplete,
		Markdown: "# a.pdf\n\nold text\n",
		Summary:  "old summary",
	}))

	h.worker.handle(ctx, claimed)

	assert.Equal(t, 0, h.extractor.callsFor("a.pdf"), "complete file must not be re-extracted")
	assert.Equal(t, 1, h.extractor.callsFor("b.pdf"))

	// Prior result untouched, not overwritten.
	a, err := h.store.GetFileResult(ctx, "t1", "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "old summary", a.Summary)

	task, err := h.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, task.Status)
	assert.Equal(t, 2, task.Completed)
}

func TestWorker_CrashBeforeAckRedeliversExactlyOnceObservably(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.submit(t, "t1", "a.pdf") // first consumer claims, then crashes

	time.Sleep(20 * time.Millisecond)
	reclaimed, err := h.queue.ReclaimStale(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)

	h.worker.handle(ctx, &reclaimed[0])

	task, err := h.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, task.Status)

	results, err := h.store.GetFileResults(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, h.extractor.callsFor("a.pdf"))
	assert.Equal(t, 0, h.queue.PendingCount())
}

func TestWorker_TerminalTaskIsOnlyReacknowledged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	claimed := h.submit(t, "t1", "a.pdf")

	// Task finished previously; only the ack was lost.
	require.NoError(t, h.store.SetStatus(ctx, "t1", models.StatusProcessing, "Initializing..."))
	require.NoError(t, h.store.SetStatus(ctx, "t1", models.StatusSuccess, "Processing complete"))

	h.worker.handle(ctx, claimed)

	assert.Equal(t, 0, h.extractor.callsFor("a.pdf"))
	assert.Equal(t, 0, h.queue.PendingCount())

	task, err := h.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, task.Status)
}

func TestWorker_ExpiredTaskRecordDiscardsItem(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	claimed := h.submit(t, "t1", "a.pdf")

	// The task record expired while the item waited in the queue.
	h.forceExpire(t, "t1")

	h.worker.handle(ctx, claimed)

	assert.Equal(t, 0, h.extractor.callsFor("a.pdf"))
	assert.Equal(t, 0, h.queue.PendingCount(), "orphaned item is acknowledged away")
}

// forceExpire recreates the task with an expiry in the past.
func (h *harness) forceExpire(t *testing.T, taskID string) {
	t.Helper()
	ctx := context.Background()
	task, err := h.store.GetTask(ctx, taskID)
	require.NoError(t, err)
	task.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, h.store.CreateTask(ctx, task))
}

func TestWorker_RunDrainsQueueAndStops(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	refs := []models.FileRef{{Name: "a.pdf", StorageKey: "tasks/t1/a.pdf"}}
	require.NoError(t, h.objects.Put(ctx, refs[0].StorageKey, []byte("%PDF"), "application/pdf"))
	_, err := h.queue.Enqueue(ctx, models.WorkItem{TaskID: "t1", Mode: models.ModeFastText, Files: refs})
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, h.store.CreateTask(ctx, &models.Task{
		ID: "t1", Mode: models.ModeFastText, Files: []string{"a.pdf"},
		Status: models.StatusPending, Total: 1,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	done := make(chan struct{})
	go func() {
		_ = h.worker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		task, err := h.store.GetTask(context.Background(), "t1")
		return err == nil && task.Status == models.StatusSuccess
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
