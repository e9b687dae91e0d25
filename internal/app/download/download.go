package download

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

// ServiceConfig is the configuration for the download service.
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

// Service downloads translated files from the server.
type Service struct {
	api    jobapi.API
	logger log.Logger
}

// NewService creates a new download service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		api:    cfg.API,
		logger: cfg.Logger,
	}, nil
}

// Request represents the download request parameters.
type Request struct {
	// FileName is the server side name of the translated file.
	FileName string
	// OutputDir is the local directory the file is written to, created if missing.
	OutputDir string
}

// Result is the downloaded file.
type Result struct {
	Path string
	Size int64
}

// Run downloads a translated file. The file only appears in the output directory
// once it has been completely downloaded.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.FileName == "" || req.FileName != filepath.Base(req.FileName) || strings.HasPrefix(req.FileName, ".") {
		return nil, fmt.Errorf("invalid file name %q: %w", req.FileName, model.ErrNotValid)
	}
	if req.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required: %w", model.ErrNotValid)
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(req.OutputDir, ".download-*")
	if err != nil {
		return nil, fmt.Errorf("could not create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-op once renamed.
		_ = os.Remove(tmpPath)
	}()

	n, err := s.api.Download(ctx, req.FileName, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("could not write file: %w", cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("could not download %s: %w", req.FileName, err)
	}

	dst := filepath.Join(req.OutputDir, req.FileName)
	if err := os.Rename(tmpPath, dst); err != nil {
		return nil, fmt.Errorf("could not move downloaded file: %w", err)
	}

	s.logger.Infof("downloaded %s (%d bytes)", dst, n)

	return &Result{Path: dst, Size: n}, nil
}
