package model

import (
	"time"
)

// TaskState represents the lifecycle state of a translation task as seen by the client.
//
// The typical lifecycle is:
//
//	idle -> submitting -> streaming -> completed|cancelled|failed -> (reset) idle
type TaskState string

const (
	TaskStateIdle       TaskState = "idle"
	TaskStateSubmitting TaskState = "submitting"
	TaskStateStreaming  TaskState = "streaming"
	TaskStateCompleted  TaskState = "completed"
	TaskStateCancelled  TaskState = "cancelled"
	TaskStateFailed     TaskState = "failed"
)

// IsTerminal returns true when the state can only be left with an explicit reset.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCancelled, TaskStateFailed:
		return true
	default:
		return false
	}
}

// IsActive returns true while the task is running on the server.
func (s TaskState) IsActive() bool {
	return s == TaskStateSubmitting || s == TaskStateStreaming
}

// TranslationMode selects the server endpoint used to translate a document.
type TranslationMode string

const (
	// TranslationModeDocument translates a PDF keeping its layout (`/translate`).
	TranslationModeDocument TranslationMode = "document"
	// TranslationModeText extracts the PDF text and returns a TXT file (`/translate_text`).
	TranslationModeText TranslationMode = "text"
)

// TaskRecord is the local history entry of a submitted translation task.
type TaskRecord struct {
	ID            string
	FileName      string
	Mode          TranslationMode
	APIType       string
	SourceLang    string
	TargetLang    string
	Concurrency   int
	State         TaskState
	OutputFile    string
	InputTokens   int64
	OutputTokens  int64
	EstimatedCost float64
	Error         string
	CreatedAt     time.Time
	FinishedAt    *time.Time
}

// Analysis is the result of the server side analysis of a document.
type Analysis struct {
	TotalPages           int
	CharCount            int
	LangCode             string
	LangName             string
	EstimatedTime        string
	EstimatedTimeMinutes float64
}
