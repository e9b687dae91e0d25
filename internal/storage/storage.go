package storage

import (
	"context"

	"github.com/slok/doctrans/internal/model"
)

// ListTasksOpts filters the listed task records.
type ListTasksOpts struct {
	// State filters by task state, empty means any.
	State model.TaskState
	// Limit is the max number of records returned, zero means no limit.
	Limit int
}

// Repository is the interface for task history persistence.
type Repository interface {
	CreateTask(ctx context.Context, t model.TaskRecord) error
	GetTask(ctx context.Context, id string) (*model.TaskRecord, error)
	// ListTasks returns the task records, newest first.
	ListTasks(ctx context.Context, opts ListTasksOpts) ([]model.TaskRecord, error)
	UpdateTask(ctx context.Context, t model.TaskRecord) error
	DeleteTask(ctx context.Context, id string) error
}
