package lib

import (
	"context"
	"fmt"

	"github.com/slok/doctrans/internal/app/analyze"
	"github.com/slok/doctrans/internal/app/cancel"
	"github.com/slok/doctrans/internal/app/download"
	"github.com/slok/doctrans/internal/app/history"
	"github.com/slok/doctrans/internal/app/status"
	"github.com/slok/doctrans/internal/app/translate"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/reconnect"
	"github.com/slok/doctrans/internal/session"
)

// TranslateOpts configures a translation.
type TranslateOpts struct {
	// File is the local PDF document. Required.
	File string
	// Mode is the translation output. Default: [TranslationModeDocument].
	Mode TranslationMode
	// APIType is the translation provider. Default: google.
	APIType string
	// APIKey is required by the paid providers.
	APIKey string
	// SourceLang is the document language. Default: auto.
	SourceLang string
	// TargetLang is the translation language. Default: zh.
	TargetLang string
	// Concurrency is the number of blocks translated concurrently by the server. Default: 4.
	Concurrency int
	// OutputDir overrides the client output directory.
	OutputDir string
	// NoDownload doesn't download the translated file.
	NoDownload bool
	// OnProgress is called with every progress change, it must not block.
	OnProgress func(Progress)
}

func (o TranslateOpts) job() model.TranslationJob {
	job := model.TranslationJob{
		Mode:        model.TranslationMode(o.Mode),
		FilePath:    o.File,
		APIType:     o.APIType,
		APIKey:      o.APIKey,
		SourceLang:  o.SourceLang,
		TargetLang:  o.TargetLang,
		Concurrency: o.Concurrency,
	}
	if job.Mode == "" {
		job.Mode = model.TranslationModeDocument
	}
	if job.APIType == "" {
		job.APIType = "google"
	}
	if job.SourceLang == "" {
		job.SourceLang = "auto"
	}
	if job.TargetLang == "" {
		job.TargetLang = "zh"
	}
	if job.Concurrency == 0 {
		job.Concurrency = 4
	}
	return job
}

// TranslateResult is the outcome of a translation.
type TranslateResult struct {
	// Task is the history record of the task with its final state.
	Task Task
	// Progress is the last progress of the task.
	Progress Progress
	// OutputPath is the local path of the downloaded translated file, if any.
	OutputPath string
	// Detached is true when the server closed the progress stream without
	// telling the task outcome.
	Detached bool
}

// Translate submits a translation and follows it until it ends.
//
// A failed or cancelled task is not an error, check [TranslateResult].Task.State.
// Cancelling the context cancels the task on the server.
func (c *Client) Translate(ctx context.Context, opts TranslateOpts) (*TranslateResult, error) {
	policy, err := reconnect.NewPolicy(reconnect.PolicyConfig{Delay: c.reconnectDelay})
	if err != nil {
		return nil, fmt.Errorf("could not create reconnection policy: %w", err)
	}

	downloader, err := download.NewService(download.ServiceConfig{
		API:    c.api,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create download service: %w", err)
	}

	svc, err := translate.NewService(translate.ServiceConfig{
		NewSession: func(obs session.Observer) (session.Controller, error) {
			return session.New(session.Config{
				Backend:  c.api,
				Observer: obs,
				Policy:   policy,
				Logger:   c.logger,
			})
		},
		Downloader: downloader,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	var obs session.Observer
	if opts.OnProgress != nil {
		obs = session.ObserverFunc(func(v model.TaskView) { opts.OnProgress(fromInternalView(v)) })
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = c.outputDir
	}

	res, err := svc.Run(ctx, translate.Request{
		Job:       opts.job(),
		Download:  !opts.NoDownload,
		OutputDir: outputDir,
		Observer:  obs,
	})
	if res == nil {
		return nil, mapError(err)
	}

	return &TranslateResult{
		Task:       fromInternalTask(res.Task),
		Progress:   fromInternalView(res.View),
		OutputPath: res.OutputPath,
		Detached:   res.View.Detached,
	}, mapError(err)
}

// Analyze returns the server side analysis of a PDF document.
func (c *Client) Analyze(ctx context.Context, file string) (*Analysis, error) {
	svc, err := analyze.NewService(analyze.ServiceConfig{
		API:    c.api,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	a, err := svc.Run(ctx, analyze.Request{FilePath: file})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalAnalysis(*a)
	return &result, nil
}

// CancelTask cancels a running task by its id.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	svc, err := cancel.NewService(cancel.ServiceConfig{
		API:        c.api,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	return mapError(svc.Run(ctx, cancel.Request{TaskID: taskID}))
}

// GetTask returns the history record of a task. The bare ULID of the id is accepted too.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	svc, err := status.NewService(status.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	t, err := svc.Run(ctx, status.Request{TaskID: taskID})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*t)
	return &result, nil
}

// ListTasksOpts filters the task history. A nil value lists everything.
type ListTasksOpts struct {
	// State only lists tasks in this state.
	State TaskState
	// Limit is the max number of tasks, zero means all.
	Limit int
}

// ListTasks returns the task history, newest first.
func (c *Client) ListTasks(ctx context.Context, opts *ListTasksOpts) ([]Task, error) {
	svc, err := history.NewService(history.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	req := history.Request{}
	if opts != nil {
		req.State = model.TaskState(opts.State)
		req.Limit = opts.Limit
	}

	tasks, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalTaskList(tasks), nil
}

// Download downloads a translated file into the output directory, an empty
// outputDir uses the client one. It returns the local path of the file.
func (c *Client) Download(ctx context.Context, fileName, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = c.outputDir
	}

	svc, err := download.NewService(download.ServiceConfig{
		API:    c.api,
		Logger: c.logger,
	})
	if err != nil {
		return "", fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, download.Request{FileName: fileName, OutputDir: outputDir})
	if err != nil {
		return "", mapError(err)
	}

	return res.Path, nil
}
