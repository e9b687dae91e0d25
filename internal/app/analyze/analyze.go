package analyze

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/doctrans/internal/jobapi"
	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
)

// ServiceConfig is the configuration for the analyze service.
type ServiceConfig struct {
	API    jobapi.API
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("api is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service analyzes a document before translating it.
type Service struct {
	api    jobapi.API
	logger log.Logger
}

// NewService creates a new analyze service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		api:    cfg.API,
		logger: cfg.Logger,
	}, nil
}

// Request represents the analyze request parameters.
type Request struct {
	// FilePath is the local PDF document to analyze.
	FilePath string
}

// Run uploads the document to the server and returns its analysis.
func (s *Service) Run(ctx context.Context, req Request) (*model.Analysis, error) {
	if req.FilePath == "" {
		return nil, fmt.Errorf("file path is required: %w", model.ErrNotValid)
	}
	if !strings.EqualFold(filepath.Ext(req.FilePath), ".pdf") {
		return nil, fmt.Errorf("only PDF documents are supported: %w", model.ErrNotValid)
	}

	fi, err := os.Stat(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("could not access document: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", req.FilePath, model.ErrNotValid)
	}

	s.logger.Debugf("analyzing document %s (%d bytes)", req.FilePath, fi.Size())

	a, err := s.api.Analyze(ctx, req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("could not analyze document: %w", err)
	}

	return a, nil
}
