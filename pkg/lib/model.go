package lib

import (
	"errors"
	"time"

	"github.com/slok/doctrans/internal/model"
)

// Sentinel errors that can be checked with errors.Is.
var (
	// ErrNotFound is returned when a task or a translated file doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a task already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when the input is not valid.
	ErrNotValid = errors.New("not valid")
)

// TaskState represents the lifecycle state of a translation task.
//
// The typical lifecycle is:
//
//	submitting -> streaming -> completed
//
// A task can end cancelled or failed at any point.
type TaskState string

const (
	TaskStateSubmitting TaskState = "submitting"
	TaskStateStreaming  TaskState = "streaming"
	TaskStateCompleted  TaskState = "completed"
	TaskStateCancelled  TaskState = "cancelled"
	TaskStateFailed     TaskState = "failed"
)

// TranslationMode is the kind of output a translation produces.
type TranslationMode string

const (
	// TranslationModeDocument translates the document keeping its layout, the output is a PDF.
	TranslationModeDocument TranslationMode = "document"
	// TranslationModeText translates only the text, the output is a plain text file.
	TranslationModeText TranslationMode = "text"
)

// Analysis is the server side analysis of a document.
type Analysis struct {
	TotalPages int
	CharCount  int
	// LangCode and LangName are the detected document language.
	LangCode             string
	LangName             string
	EstimatedTime        string
	EstimatedTimeMinutes float64
}

// Task is a translation task recorded in the local history.
type Task struct {
	ID          string
	FileName    string
	Mode        TranslationMode
	APIType     string
	SourceLang  string
	TargetLang  string
	Concurrency int
	State       TaskState
	// OutputFile is the server side name of the translated file, set when completed.
	OutputFile    string
	InputTokens   int64
	OutputTokens  int64
	EstimatedCost float64
	Error         string
	CreatedAt     time.Time
	// FinishedAt is nil while the task has not ended.
	FinishedAt *time.Time
}

// Progress is the progress of a running task.
type Progress struct {
	TaskID        string
	State         TaskState
	Percentage    float64
	StatusMessage string
	// Current and Total are the translated and total text blocks.
	Current int
	Total   int
	Elapsed time.Duration
	// Remaining is nil while it can't be estimated.
	Remaining     *time.Duration
	InputTokens   int64
	OutputTokens  int64
	EstimatedCost float64
	// Detached is true when the server closed the stream without telling the task outcome.
	Detached bool
}

func fromInternalAnalysis(a model.Analysis) Analysis {
	return Analysis{
		TotalPages:           a.TotalPages,
		CharCount:            a.CharCount,
		LangCode:             a.LangCode,
		LangName:             a.LangName,
		EstimatedTime:        a.EstimatedTime,
		EstimatedTimeMinutes: a.EstimatedTimeMinutes,
	}
}

func fromInternalTask(t model.TaskRecord) Task {
	return Task{
		ID:            t.ID,
		FileName:      t.FileName,
		Mode:          TranslationMode(t.Mode),
		APIType:       t.APIType,
		SourceLang:    t.SourceLang,
		TargetLang:    t.TargetLang,
		Concurrency:   t.Concurrency,
		State:         TaskState(t.State),
		OutputFile:    t.OutputFile,
		InputTokens:   t.InputTokens,
		OutputTokens:  t.OutputTokens,
		EstimatedCost: t.EstimatedCost,
		Error:         t.Error,
		CreatedAt:     t.CreatedAt,
		FinishedAt:    t.FinishedAt,
	}
}

func fromInternalTaskList(ts []model.TaskRecord) []Task {
	result := make([]Task, len(ts))
	for i, t := range ts {
		result[i] = fromInternalTask(t)
	}
	return result
}

func fromInternalView(v model.TaskView) Progress {
	p := Progress{
		TaskID:        v.TaskID,
		State:         TaskState(v.State),
		Percentage:    v.Progress.Percentage,
		StatusMessage: v.Progress.StatusMessage,
		Current:       v.Progress.Current,
		Total:         v.Progress.Total,
		Elapsed:       seconds(v.Progress.ElapsedSeconds),
		InputTokens:   v.Progress.InputTokens,
		OutputTokens:  v.Progress.OutputTokens,
		EstimatedCost: v.Progress.EstimatedCost,
		Detached:      v.Detached,
	}
	if v.Progress.EstimatedRemainingSeconds != nil {
		r := seconds(*v.Progress.EstimatedRemainingSeconds)
		p.Remaining = &r
	}
	return p
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
