package cancel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/doctrans/internal/jobapi"
	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/storage"
)

// ServiceConfig is the configuration for the cancel service.
type ServiceConfig struct {
	API        jobapi.API
	Repository storage.Repository
	TimeNow    func() time.Time
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("api is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service cancels a running translation task.
type Service struct {
	api     jobapi.API
	repo    storage.Repository
	timeNow func() time.Time
	logger  log.Logger
}

// NewService creates a new cancel service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		api:     cfg.API,
		repo:    cfg.Repository,
		timeNow: cfg.TimeNow,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the cancel request parameters.
type Request struct {
	// TaskID is the id of the task to cancel.
	TaskID string
}

// Run asks the server to cancel the task and marks its history record as cancelled.
// Tasks submitted from other clients have no history record, that's not an error.
func (s *Service) Run(ctx context.Context, req Request) error {
	if req.TaskID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	if err := s.api.Cancel(ctx, req.TaskID); err != nil {
		return fmt.Errorf("could not cancel task %s: %w", req.TaskID, err)
	}
	s.logger.Infof("task %s cancelled", req.TaskID)

	rec, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Debugf("task %s is not in the history", req.TaskID)
			return nil
		}
		return fmt.Errorf("could not get task record: %w", err)
	}

	if rec.State.IsTerminal() {
		return nil
	}

	now := s.timeNow().UTC()
	rec.State = model.TaskStateCancelled
	rec.FinishedAt = &now
	if err := s.repo.UpdateTask(ctx, *rec); err != nil {
		return fmt.Errorf("could not update task record: %w", err)
	}

	return nil
}
