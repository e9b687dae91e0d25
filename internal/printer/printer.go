package printer

import "github.com/slok/doctrans/internal/model"

// Printer knows how to print translation information in different formats.
type Printer interface {
	PrintAnalysis(a model.Analysis) error
	PrintHistory(tasks []model.TaskRecord) error
	PrintTask(task model.TaskRecord) error
	PrintMessage(msg string) error
}
