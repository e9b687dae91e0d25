package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/doctrans/internal/model"
)

// TablePrinter prints translation information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

var _ Printer = &TablePrinter{}

// PrintAnalysis prints a document analysis.
func (t *TablePrinter) PrintAnalysis(a model.Analysis) error {
	lang := a.LangName
	if a.LangCode != "" {
		lang = fmt.Sprintf("%s (%s)", a.LangName, a.LangCode)
	}

	fmt.Fprintf(t.writer, "Pages:      %d\n", a.TotalPages)
	fmt.Fprintf(t.writer, "Characters: %s\n", FormatCount(int64(a.CharCount)))
	fmt.Fprintf(t.writer, "Language:   %s\n", lang)
	fmt.Fprintf(t.writer, "Estimated:  %s\n", a.EstimatedTime)
	return nil
}

// PrintHistory prints the task history in a table format.
func (t *TablePrinter) PrintHistory(tasks []model.TaskRecord) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tFILE\tMODE\tSTATE\tCOST\tCREATED")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			task.FileName,
			task.Mode,
			task.State,
			FormatCost(task.EstimatedCost),
			TimeAgo(task.CreatedAt),
		)
	}

	return nil
}

// PrintTask prints a detailed task record.
func (t *TablePrinter) PrintTask(task model.TaskRecord) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", task.ID)
	fmt.Fprintf(t.writer, "File:       %s\n", task.FileName)
	fmt.Fprintf(t.writer, "Mode:       %s\n", task.Mode)
	fmt.Fprintf(t.writer, "API:        %s\n", task.APIType)
	fmt.Fprintf(t.writer, "Languages:  %s -> %s\n", task.SourceLang, task.TargetLang)
	fmt.Fprintf(t.writer, "State:      %s\n", task.State)
	if task.OutputFile != "" {
		fmt.Fprintf(t.writer, "Output:     %s\n", task.OutputFile)
	}
	fmt.Fprintf(t.writer, "Tokens:     %s in / %s out\n", FormatCount(task.InputTokens), FormatCount(task.OutputTokens))
	fmt.Fprintf(t.writer, "Cost:       %s\n", FormatCost(task.EstimatedCost))
	if task.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", task.Error)
	}
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(task.CreatedAt))
	if task.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(*task.FinishedAt))
	}

	return nil
}

// PrintMessage prints a simple message.
func (t *TablePrinter) PrintMessage(msg string) error {
	_, err := fmt.Fprintln(t.writer, msg)
	return err
}
