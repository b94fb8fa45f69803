package models

import (
	"fmt"
	"time"
)

// TaskStatus is the overall lifecycle state of a submitted task.
//
// PENDING and PROCESSING are transient; SUCCESS and FAILURE are terminal.
// Transitions only ever move forward: PENDING -> PROCESSING -> SUCCESS|FAILURE.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusSuccess    TaskStatus = "SUCCESS"
	StatusFailure    TaskStatus = "FAILURE"
)

// rank orders statuses along the lifecycle so reverse transitions can be rejected.
func (s TaskStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusSuccess, StatusFailure:
		return 2
	}
	return -1
}

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// CanTransition reports whether moving from s to next is a legal forward step.
// Re-asserting the current transient status is allowed (idempotent replay after
// a worker crash re-enters PROCESSING), but a terminal status never changes and
// PENDING never jumps straight to a terminal state: every task passes through
// PROCESSING first.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s.Terminal() {
		return false
	}
	step := next.rank() - s.rank()
	return step == 0 || step == 1
}

// ExtractionMode selects how document bytes are turned into text.
type ExtractionMode string

const (
	// ModeFastText extracts embedded text directly from the document.
	ModeFastText ExtractionMode = "fast-text"
	// ModeVisionAssisted sends the document to a vision model for OCR-grade extraction.
	ModeVisionAssisted ExtractionMode = "vision-assisted"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(s string) (ExtractionMode, error) {
	switch ExtractionMode(s) {
	case ModeFastText, ModeVisionAssisted:
		return ExtractionMode(s), nil
	}
	return "", fmt.Errorf("unknown extraction mode %q (want %q or %q)", s, ModeFastText, ModeVisionAssisted)
}

// Task is the externally visible record of one submitted batch of documents.
// Created by the gateway, mutated only by the worker that claimed it, read by
// the gateway to answer polls.
type Task struct {
	ID        string         `json:"task_id"`
	Mode      ExtractionMode `json:"mode"`
	Files     []string       `json:"files"` // submission order, significant
	Status    TaskStatus     `json:"status"`
	Message   string         `json:"message"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// FileRef points the worker at the durably stored bytes for one input file.
type FileRef struct {
	Name       string `json:"name"`
	StorageKey string `json:"storage_key"`
}

// WorkItem is the queue-durable unit of work: one per task, created at
// submission, removed only once a worker has acknowledged completion.
type WorkItem struct {
	TaskID string         `json:"task_id"`
	Mode   ExtractionMode `json:"mode"`
	Files  []FileRef      `json:"files"` // same order as Task.Files
}

// ClaimedItem is a WorkItem reserved to one consumer, carrying the queue entry
// ID needed to acknowledge it.
type ClaimedItem struct {
	EntryID string
	Item    WorkItem
}

// FileResultStatus is the per-file outcome within a task.
type FileResultStatus string

const (
	FileComplete FileResultStatus = "complete"
	FileFailed   FileResultStatus = "failed"
)

// FileResult holds the extracted text and summary for one input file, or the
// reason it failed. Written once per file as the worker progresses.
type FileResult struct {
	Filename      string           `json:"filename"`
	Status        FileResultStatus `json:"status"`
	Markdown      string           `json:"markdown,omitempty"`
	Summary       string           `json:"summary,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
}
