package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/printer"
)

func taskFixture() model.TaskRecord {
	createdAt := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	finishedAt := createdAt.Add(5 * time.Minute)
	return model.TaskRecord{
		ID:            "task_01JABCDEFGHJKMNPQRSTVWXYZ0",
		FileName:      "paper.pdf",
		Mode:          model.TranslationModeDocument,
		APIType:       "deepseek",
		SourceLang:    "en",
		TargetLang:    "zh",
		Concurrency:   4,
		State:         model.TaskStateCompleted,
		OutputFile:    "translated_paper.pdf",
		InputTokens:   12345,
		OutputTokens:  9876,
		EstimatedCost: 0.0421,
		CreatedAt:     createdAt,
		FinishedAt:    &finishedAt,
	}
}

func TestTablePrinterPrintTask(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintTask(taskFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "State:      completed")
	assert.Contains(t, out, "Output:     translated_paper.pdf")
	assert.Contains(t, out, "Tokens:     12,345 in / 9,876 out")
	assert.Contains(t, out, "Cost:       $0.0421")
	assert.Contains(t, out, "Finished:   2026-10-01 10:05:00 UTC")
	assert.NotContains(t, out, "Error:")
}

func TestTablePrinterPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintHistory(nil))
	assert.Empty(t, buf.String())

	require.NoError(t, p.PrintHistory([]model.TaskRecord{taskFixture()}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "paper.pdf")
	assert.Contains(t, lines[1], "completed")
}

func TestTablePrinterPrintAnalysis(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintAnalysis(model.Analysis{TotalPages: 12, CharCount: 34567, LangCode: "en", LangName: "English", EstimatedTime: "6 min"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Pages:      12")
	assert.Contains(t, out, "Characters: 34,567")
	assert.Contains(t, out, "Language:   English (en)")
	assert.Contains(t, out, "Estimated:  6 min")
}

func TestJSONPrinterPrintTask(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintTask(taskFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"state": "completed"`)
	assert.Contains(t, out, `"output_file": "translated_paper.pdf"`)
	assert.Contains(t, out, `"finished_at": "2026-10-01T10:05:00Z"`)
	assert.NotContains(t, out, `"error"`)
}

func TestJSONPrinterPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintHistory([]model.TaskRecord{}))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestPrintMessage(t *testing.T) {
	var table, js bytes.Buffer

	require.NoError(t, printer.NewTablePrinter(&table).PrintMessage("ok"))
	require.NoError(t, printer.NewJSONPrinter(&js).PrintMessage("ok"))

	assert.Equal(t, "ok", strings.TrimSpace(table.String()))
	assert.Contains(t, js.String(), `"message": "ok"`)
}
