package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/doctrans/internal/conventions"
	"github.com/slok/doctrans/internal/jobapi"
	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/printer"
	storageio "github.com/slok/doctrans/internal/storage/io"
	"github.com/slok/doctrans/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug          bool
	NoLog          bool
	NoColor        bool
	LoggerType     string
	ServerURL      string
	ConfigPath     string
	DataDir        string
	DBPath         string
	RequestTimeout time.Duration

	// Global instances.
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  log.Logger
	Profile model.ClientProfile
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger and UI colors.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	dataDir := conventions.DataDir()
	app.Flag("server", "Translation server URL (default "+conventions.DefaultServerURL+").").StringVar(&c.ServerURL)
	app.Flag("data-dir", "Directory of the doctrans local data.").Default(dataDir).StringVar(&c.DataDir)
	app.Flag("config", "Path to the client profile YAML file (default <data-dir>/config.yaml).").StringVar(&c.ConfigPath)
	app.Flag("db-path", "Path to the task history SQLite database file (default <data-dir>/history.db).").StringVar(&c.DBPath)
	app.Flag("request-timeout", "Timeout of the server requests, progress streams are not bounded.").DurationVar(&c.RequestTimeout)

	return c
}

// LoadProfile loads the client profile and resolves the global settings,
// flags win over the profile and the profile wins over the defaults.
func (c *RootCommand) LoadProfile(ctx context.Context) error {
	if c.ConfigPath == "" {
		c.ConfigPath = conventions.ProfilePath(c.DataDir)
	}
	if c.DBPath == "" {
		c.DBPath = conventions.HistoryDBPath(c.DataDir)
	}

	configPath, err := filepath.Abs(c.ConfigPath)
	if err != nil {
		return fmt.Errorf("invalid profile path: %w", err)
	}
	repo := storageio.NewProfileYAMLRepository(os.DirFS(filepath.Dir(configPath)))
	profile, err := repo.GetProfile(ctx, filepath.Base(configPath))
	if err != nil {
		return fmt.Errorf("could not load profile %s: %w", c.ConfigPath, err)
	}
	c.Profile = profile

	c.ServerURL = firstString(c.ServerURL, profile.ServerURL, conventions.DefaultServerURL)
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = profile.RequestTimeout
	}

	return nil
}

// NewAPIClient returns the translation server client.
func (c *RootCommand) NewAPIClient() (*jobapi.Client, error) {
	client, err := jobapi.NewClient(jobapi.ClientConfig{
		ServerURL:      c.ServerURL,
		RequestTimeout: c.RequestTimeout,
		RetryCount:     2,
		Logger:         c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create API client: %w", err)
	}
	return client, nil
}

// NewRepository returns the task history repository.
func (c *RootCommand) NewRepository(ctx context.Context) (*sqlite.Repository, error) {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.DBPath,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

// NewPrinter returns the printer of an output format.
func (c *RootCommand) NewPrinter(format string) printer.Printer {
	if format == "json" {
		return printer.NewJSONPrinter(c.Stdout)
	}
	return printer.NewTablePrinter(c.Stdout)
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
