// Package storagemock has testify mocks of the storage package interfaces.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/storage"
)

// MockRepository is a mock of storage.Repository.
type MockRepository struct {
	mock.Mock
}

var _ storage.Repository = &MockRepository{}

func (m *MockRepository) CreateTask(ctx context.Context, t model.TaskRecord) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) GetTask(ctx context.Context, id string) (*model.TaskRecord, error) {
	args := m.Called(ctx, id)
	if t := args.Get(0); t != nil {
		return t.(*model.TaskRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListTasks(ctx context.Context, opts storage.ListTasksOpts) ([]model.TaskRecord, error) {
	args := m.Called(ctx, opts)
	if ts := args.Get(0); ts != nil {
		return ts.([]model.TaskRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) UpdateTask(ctx context.Context, t model.TaskRecord) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) DeleteTask(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
