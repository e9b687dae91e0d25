// Package jobapimock has testify mocks of the jobapi package interfaces.
package jobapimock

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/slok/doctrans/internal/jobapi"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/sse"
)

// MockAPI is a mock of jobapi.API.
type MockAPI struct {
	mock.Mock
}

var _ jobapi.API = &MockAPI{}

func (m *MockAPI) Analyze(ctx context.Context, filePath string) (*model.Analysis, error) {
	args := m.Called(ctx, filePath)
	if a := args.Get(0); a != nil {
		return a.(*model.Analysis), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAPI) Submit(ctx context.Context, taskID string, job model.TranslationJob) error {
	args := m.Called(ctx, taskID, job)
	return args.Error(0)
}

func (m *MockAPI) Cancel(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

// Download writes the string returned as first value to w.
func (m *MockAPI) Download(ctx context.Context, fileName string, w io.Writer) (int64, error) {
	args := m.Called(ctx, fileName, w)
	n, err := io.WriteString(w, args.String(0))
	if err != nil {
		return int64(n), err
	}
	return int64(n), args.Error(1)
}

func (m *MockAPI) OpenStream(ctx context.Context, taskID string, h sse.Handler) io.Closer {
	args := m.Called(ctx, taskID, h)
	return args.Get(0).(io.Closer)
}
