package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/doctrans/internal/model"
)

// JSONPrinter prints translation information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

var _ Printer = &JSONPrinter{}

type analysisOutput struct {
	TotalPages           int     `json:"total_pages"`
	CharCount            int     `json:"char_count"`
	LangCode             string  `json:"lang_code"`
	LangName             string  `json:"lang_name"`
	EstimatedTime        string  `json:"estimated_time"`
	EstimatedTimeMinutes float64 `json:"estimated_time_minutes"`
}

// historyItem is a task in the history output (subset of fields).
type historyItem struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

type taskOutput struct {
	ID            string     `json:"id"`
	FileName      string     `json:"file_name"`
	Mode          string     `json:"mode"`
	APIType       string     `json:"api_type"`
	SourceLang    string     `json:"source_lang"`
	TargetLang    string     `json:"target_lang"`
	Concurrency   int        `json:"concurrency"`
	State         string     `json:"state"`
	OutputFile    string     `json:"output_file,omitempty"`
	InputTokens   int64      `json:"input_tokens"`
	OutputTokens  int64      `json:"output_tokens"`
	EstimatedCost float64    `json:"estimated_cost"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintAnalysis prints a document analysis in JSON format.
func (j *JSONPrinter) PrintAnalysis(a model.Analysis) error {
	return j.encode(analysisOutput{
		TotalPages:           a.TotalPages,
		CharCount:            a.CharCount,
		LangCode:             a.LangCode,
		LangName:             a.LangName,
		EstimatedTime:        a.EstimatedTime,
		EstimatedTimeMinutes: a.EstimatedTimeMinutes,
	})
}

// PrintHistory prints the task history in JSON format with a subset of fields.
func (j *JSONPrinter) PrintHistory(tasks []model.TaskRecord) error {
	items := make([]historyItem, len(tasks))
	for i, t := range tasks {
		items[i] = historyItem{
			ID:        t.ID,
			FileName:  t.FileName,
			State:     string(t.State),
			CreatedAt: t.CreatedAt.UTC(),
		}
	}
	return j.encode(items)
}

// PrintTask prints a task record in JSON format.
func (j *JSONPrinter) PrintTask(t model.TaskRecord) error {
	output := taskOutput{
		ID:            t.ID,
		FileName:      t.FileName,
		Mode:          string(t.Mode),
		APIType:       t.APIType,
		SourceLang:    t.SourceLang,
		TargetLang:    t.TargetLang,
		Concurrency:   t.Concurrency,
		State:         string(t.State),
		OutputFile:    t.OutputFile,
		InputTokens:   t.InputTokens,
		OutputTokens:  t.OutputTokens,
		EstimatedCost: t.EstimatedCost,
		Error:         t.Error,
		CreatedAt:     t.CreatedAt.UTC(),
	}
	if t.FinishedAt != nil {
		utcTime := t.FinishedAt.UTC()
		output.FinishedAt = &utcTime
	}
	return j.encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
