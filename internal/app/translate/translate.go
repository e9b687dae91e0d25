package translate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/slok/doctrans/internal/app/download"
	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/session"
	"github.com/slok/doctrans/internal/storage"
)

// SessionFactory returns a new task session notifying the observer.
type SessionFactory func(obs session.Observer) (session.Controller, error)

// Downloader downloads translated files.
type Downloader interface {
	Run(ctx context.Context, req download.Request) (*download.Result, error)
}

// ServiceConfig is the configuration for the translate service.
type ServiceConfig struct {
	NewSession SessionFactory
	Downloader Downloader
	Repository storage.Repository
	// CancelTimeout bounds the cleanup done after the context is cancelled.
	CancelTimeout time.Duration
	TimeNow       func() time.Time
	Logger        log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.NewSession == nil {
		return fmt.Errorf("session factory is required")
	}

	if c.Downloader == nil {
		return fmt.Errorf("downloader is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.CancelTimeout <= 0 {
		c.CancelTimeout = 30 * time.Second
	}

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service translates a document following its task until it ends.
type Service struct {
	newSession    SessionFactory
	downloader    Downloader
	repo          storage.Repository
	cancelTimeout time.Duration
	timeNow       func() time.Time
	logger        log.Logger
}

// NewService creates a new translate service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		newSession:    cfg.NewSession,
		downloader:    cfg.Downloader,
		repo:          cfg.Repository,
		cancelTimeout: cfg.CancelTimeout,
		timeNow:       cfg.TimeNow,
		logger:        cfg.Logger,
	}, nil
}

// Request represents the translate request parameters.
type Request struct {
	Job model.TranslationJob
	// Download downloads the translated file into OutputDir when the task completes.
	Download  bool
	OutputDir string
	// Observer receives every change of the task view, optional.
	Observer session.Observer
}

// Result is the outcome of a translation.
type Result struct {
	Task model.TaskRecord
	View model.TaskView
	// OutputPath is the local path of the downloaded file, if any.
	OutputPath string
}

// Run submits the job and waits for its task to end. The task is recorded in
// the history and the record updated with its outcome.
//
// Cancelling the context cancels the task. A failed, cancelled or detached
// task is not an error, the outcome is in the result.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Job.Validate(); err != nil {
		return nil, err
	}
	if req.Download && req.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required to download: %w", model.ErrNotValid)
	}

	ctrl, err := s.newSession(req.Observer)
	if err != nil {
		return nil, fmt.Errorf("could not create session: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			s.logger.Warningf("could not close session: %s", err)
		}
	}()

	taskID, err := ctrl.Submit(ctx, req.Job)
	if err != nil {
		return nil, fmt.Errorf("could not submit translation: %w", err)
	}
	logger := s.logger.WithValues(log.Kv{"task-id": taskID})

	rec := model.TaskRecord{
		ID:          taskID,
		FileName:    filepath.Base(req.Job.FilePath),
		Mode:        req.Job.Mode,
		APIType:     req.Job.APIType,
		SourceLang:  req.Job.SourceLang,
		TargetLang:  req.Job.TargetLang,
		Concurrency: req.Job.Concurrency,
		State:       model.TaskStateSubmitting,
		CreatedAt:   s.timeNow().UTC(),
	}
	// History is best effort, a translation is never stopped by it.
	if err := s.saveRecord(ctx, rec, s.repo.CreateTask); err != nil {
		logger.Warningf("could not record task: %s", err)
	}

	view, err := ctrl.Wait(ctx)
	switch {
	case err == nil, errors.Is(err, session.ErrStreamEnded):
	case ctx.Err() != nil:
		view, err = s.cancel(ctx, ctrl, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("could not follow task %s: %w", taskID, err)
	}

	if view.Detached {
		logger.Warningf("progress stream ended without the task outcome")
	}

	rec = s.finalize(rec, view)
	err = s.saveRecord(ctx, rec, s.repo.UpdateTask)
	if errors.Is(err, model.ErrNotFound) {
		err = s.saveRecord(ctx, rec, s.repo.CreateTask)
	}
	if err != nil {
		logger.Warningf("could not update task record: %s", err)
	}

	res := &Result{Task: rec, View: view}
	if rec.State != model.TaskStateCompleted || !req.Download || view.OutputFile == "" {
		return res, nil
	}

	dl, err := s.downloader.Run(ctx, download.Request{FileName: view.OutputFile, OutputDir: req.OutputDir})
	if err != nil {
		return res, fmt.Errorf("could not download translated file: %w", err)
	}
	res.OutputPath = dl.Path

	return res, nil
}

// cancel cancels the task after the caller gave up on it.
func (s *Service) cancel(ctx context.Context, ctrl session.Controller, logger log.Logger) (model.TaskView, error) {
	logger.Infof("cancelling task")

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cancelTimeout)
	defer cancel()

	if err := ctrl.Cancel(cctx); err != nil && !errors.Is(err, session.ErrInvalidState) {
		return model.TaskView{}, fmt.Errorf("could not cancel task: %w", err)
	}

	view, err := ctrl.View(cctx)
	if err != nil {
		return model.TaskView{}, fmt.Errorf("could not get task view: %w", err)
	}

	return view, nil
}

// saveRecord writes a history record, also when the context has been cancelled.
func (s *Service) saveRecord(ctx context.Context, rec model.TaskRecord, save func(context.Context, model.TaskRecord) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cancelTimeout)
	defer cancel()
	return save(ctx, rec)
}

func (s *Service) finalize(rec model.TaskRecord, v model.TaskView) model.TaskRecord {
	rec.State = v.State
	rec.OutputFile = v.OutputFile
	rec.InputTokens = v.Progress.InputTokens
	rec.OutputTokens = v.Progress.OutputTokens
	rec.EstimatedCost = v.Progress.EstimatedCost
	rec.Error = v.Error
	if v.State.IsTerminal() {
		now := s.timeNow().UTC()
		rec.FinishedAt = &now
	}
	return rec
}
