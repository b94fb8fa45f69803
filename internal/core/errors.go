package core

import "errors"

// Error taxonomy for the processing pipeline. Per-file errors (extraction,
// summarization) are recorded on the file result and never abort a batch;
// infrastructure errors (queue, store) abort the work item unacknowledged so
// it is redelivered.
var (
	// ErrQueueUnavailable means the queue infrastructure is unreachable.
	// Submissions must fail rather than create a task with no durable entry.
	ErrQueueUnavailable = errors.New("task queue unavailable")

	// ErrExtractionFailed marks a per-file extraction failure.
	ErrExtractionFailed = errors.New("document extraction failed")

	// ErrSummarizationFailed marks a per-file summarization failure after retries.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrSummarizationDepthExceeded guards the recursive reduction against a
	// summarizer whose output fails to shrink. Treated as a summarization failure.
	ErrSummarizationDepthExceeded = errors.New("summarization reduction depth exceeded")

	// ErrTaskNotFound means the task record does not exist or has expired.
	ErrTaskNotFound = errors.New("task not found or expired")

	// ErrStaleTransition rejects a backwards task status transition.
	ErrStaleTransition = errors.New("stale task status transition")
)
