// Package sessionmock has testify mocks of the session package interfaces.
package sessionmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/session"
)

// MockController is a mock of session.Controller.
type MockController struct {
	mock.Mock
}

var _ session.Controller = &MockController{}

func (m *MockController) Submit(ctx context.Context, job model.TranslationJob) (string, error) {
	args := m.Called(ctx, job)
	return args.String(0), args.Error(1)
}

func (m *MockController) Cancel(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockController) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockController) View(ctx context.Context) (model.TaskView, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.TaskView), args.Error(1)
}

func (m *MockController) Wait(ctx context.Context) (model.TaskView, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.TaskView), args.Error(1)
}

func (m *MockController) Close() error {
	args := m.Called()
	return args.Error(0)
}
