package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/storage"
	"github.com/slok/doctrans/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.Repository = &Repository{}

// NewRepository creates a new SQLite repository, migrating its schema if required.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const taskColumns = `
	id, file_name, mode, api_type,
	source_lang, target_lang, concurrency,
	state, output_file,
	input_tokens, output_tokens, estimated_cost,
	error, created_at, finished_at`

// CreateTask stores a new task record.
func (r *Repository) CreateTask(ctx context.Context, t model.TaskRecord) error {
	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.FileName,
		t.Mode,
		t.APIType,
		t.SourceLang,
		t.TargetLang,
		t.Concurrency,
		t.State,
		t.OutputFile,
		t.InputTokens,
		t.OutputTokens,
		t.EstimatedCost,
		t.Error,
		t.CreatedAt.Unix(),
		unixOrNil(t.FinishedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.") {
			return fmt.Errorf("task %s: %w", t.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

// GetTask retrieves a task record by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	t, err := scanRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &t, nil
}

// ListTasks returns the task records, newest first.
func (r *Repository) ListTasks(ctx context.Context, opts storage.ListTasksOpts) ([]model.TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}
	if opts.State != "" {
		query += ` WHERE state = ?`
		args = append(args, opts.State)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.TaskRecord{}
	for rows.Next() {
		t, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// UpdateTask replaces an existing task record.
func (r *Repository) UpdateTask(ctx context.Context, t model.TaskRecord) error {
	query := `
		UPDATE tasks
		SET
			file_name = ?,
			mode = ?,
			api_type = ?,
			source_lang = ?,
			target_lang = ?,
			concurrency = ?,
			state = ?,
			output_file = ?,
			input_tokens = ?,
			output_tokens = ?,
			estimated_cost = ?,
			error = ?,
			created_at = ?,
			finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		t.FileName,
		t.Mode,
		t.APIType,
		t.SourceLang,
		t.TargetLang,
		t.Concurrency,
		t.State,
		t.OutputFile,
		t.InputTokens,
		t.OutputTokens,
		t.EstimatedCost,
		t.Error,
		t.CreatedAt.Unix(),
		unixOrNil(t.FinishedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated task in repository: %s", t.ID)
	return nil
}

// DeleteTask deletes a task record.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted task from repository: %s", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (model.TaskRecord, error) {
	var (
		t                     model.TaskRecord
		createdAt, finishedAt sql.NullInt64
	)

	err := s.Scan(
		&t.ID,
		&t.FileName,
		&t.Mode,
		&t.APIType,
		&t.SourceLang,
		&t.TargetLang,
		&t.Concurrency,
		&t.State,
		&t.OutputFile,
		&t.InputTokens,
		&t.OutputTokens,
		&t.EstimatedCost,
		&t.Error,
		&createdAt,
		&finishedAt,
	)
	if err != nil {
		return model.TaskRecord{}, err
	}

	if !createdAt.Valid {
		return model.TaskRecord{}, fmt.Errorf("created_at is required")
	}
	t.CreatedAt = timeFromUnix(createdAt.Int64)

	if finishedAt.Valid {
		f := timeFromUnix(finishedAt.Int64)
		t.FinishedAt = &f
	}

	return t, nil
}

func unixOrNil(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	u := t.Unix()
	return &u
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
