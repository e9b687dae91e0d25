package status

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/storage"
)

const taskIDPrefix = "task_"

// ServiceConfig is the configuration for the status service.
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

// Service retrieves the recorded status of a translation task.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	// TaskID is the task id, the bare ULID part of the id is accepted too.
	TaskID string
}

// Run retrieves the history record of a task.
func (s *Service) Run(ctx context.Context, req Request) (*model.TaskRecord, error) {
	id := strings.TrimSpace(req.TaskID)
	if id == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	// Users copy the ULID from the history table, ids made by this client always have the prefix.
	if looksLikeULID(id) {
		id = taskIDPrefix + id
	}

	s.logger.Debugf("getting status for task: %s", id)

	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("task not found: %s: %w", req.TaskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get task status: %w", err)
	}

	return task, nil
}

// looksLikeULID checks if a string looks like a ULID (26 characters, alphanumeric uppercase).
func looksLikeULID(s string) bool {
	if len(s) != 26 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
