package history

import (
	"context"
	"fmt"

	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists the local translation task history.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	// State filters by task state, empty means any state.
	State model.TaskState
	// Limit is the max number of tasks returned, zero means all.
	Limit int
}

var knownStates = map[model.TaskState]bool{
	model.TaskStateSubmitting: true,
	model.TaskStateStreaming:  true,
	model.TaskStateCompleted:  true,
	model.TaskStateCancelled:  true,
	model.TaskStateFailed:     true,
}

// Run returns the recorded tasks, newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.TaskRecord, error) {
	if req.State != "" && !knownStates[req.State] {
		return nil, fmt.Errorf("unknown task state %q: %w", req.State, model.ErrNotValid)
	}
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit must be positive: %w", model.ErrNotValid)
	}

	tasks, err := s.repo.ListTasks(ctx, storage.ListTasksOpts{State: req.State, Limit: req.Limit})
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	s.logger.Debugf("listed %d tasks", len(tasks))

	return tasks, nil
}
