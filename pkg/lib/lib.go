package lib

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/doctrans/internal/conventions"
	"github.com/slok/doctrans/internal/jobapi"
	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/storage"
	"github.com/slok/doctrans/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} uses the local default server
// and ~/.doctrans/history.db for the task history.
type Config struct {
	// ServerURL is the translation server URL.
	// Default: http://127.0.0.1:5000.
	ServerURL string

	// DataDir is the base directory of the doctrans local data.
	// Default: ~/.doctrans.
	DataDir string

	// DBPath is the task history SQLite database path.
	// Default: <DataDir>/history.db.
	DBPath string

	// OutputDir is the directory translated files are downloaded to.
	// Default: <DataDir>/downloads.
	OutputDir string

	// RequestTimeout bounds every server request except the progress streams.
	// Default: 60s.
	RequestTimeout time.Duration

	// ReconnectDelay is the delay before reopening a dropped progress stream.
	// Default: 3s.
	ReconnectDelay time.Duration

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.ServerURL == "" {
		c.ServerURL = conventions.DefaultServerURL
	}

	if c.DataDir == "" {
		c.DataDir = conventions.DataDir()
	}

	if c.DBPath == "" {
		c.DBPath = conventions.HistoryDBPath(c.DataDir)
	}

	if c.OutputDir == "" {
		c.OutputDir = conventions.DownloadsPath(c.DataDir)
	}

	if c.ReconnectDelay < 0 {
		return fmt.Errorf("reconnect delay can't be negative")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use, every [Client.Translate] call follows
// its own task.
type Client struct {
	api            *jobapi.Client
	repo           storage.Repository
	outputDir      string
	reconnectDelay time.Duration
	logger         log.Logger
	closeFn        func() error
}

// New creates a new SDK client backed by a SQLite task history.
//
// The caller must call [Client.Close] when done to release the database
// connection.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	api, err := jobapi.NewClient(jobapi.ClientConfig{
		ServerURL:      cfg.ServerURL,
		RequestTimeout: cfg.RequestTimeout,
		RetryCount:     2,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create API client: %w", err)
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return &Client{
		api:            api,
		repo:           repo,
		outputDir:      cfg.OutputDir,
		reconnectDelay: cfg.ReconnectDelay,
		logger:         cfg.Logger,
		closeFn:        repo.Close,
	}, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}
