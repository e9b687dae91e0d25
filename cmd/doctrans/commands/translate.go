package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/mattn/go-isatty"

	"github.com/slok/doctrans/internal/app/download"
	"github.com/slok/doctrans/internal/app/translate"
	"github.com/slok/doctrans/internal/conventions"
	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/reconnect"
	"github.com/slok/doctrans/internal/session"
	"github.com/slok/doctrans/internal/ui/live"
)

const (
	uiAuto  = "auto"
	uiLive  = "live"
	uiPlain = "plain"
)

// ErrTaskNotCompleted is returned when the translation task ended without completing.
var ErrTaskNotCompleted = errors.New("translation task did not complete")

type TranslateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	filePath       string
	text           bool
	apiType        string
	apiKey         string
	sourceLang     string
	targetLang     string
	concurrency    int
	outputDir      string
	noDownload     bool
	ui             string
	reconnectDelay time.Duration
}

// NewTranslateCommand returns the translate command.
func NewTranslateCommand(rootCmd *RootCommand, app *kingpin.Application) *TranslateCommand {
	c := &TranslateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("translate", "Translate a PDF document following its progress until it ends.")
	c.Cmd.Arg("file", "PDF document.").Required().ExistingFileVar(&c.filePath)
	c.Cmd.Flag("text", "Translate only the text into a plain text file instead of the whole document.").BoolVar(&c.text)
	c.Cmd.Flag("api", "Translation provider (default google).").StringVar(&c.apiType)
	c.Cmd.Flag("api-key", "API key of paid translation providers.").Envar("DOCTRANS_API_KEY").StringVar(&c.apiKey)
	c.Cmd.Flag("source", "Source language (default auto).").StringVar(&c.sourceLang)
	c.Cmd.Flag("target", "Target language (default zh).").StringVar(&c.targetLang)
	c.Cmd.Flag("concurrency", "Number of blocks translated concurrently by the server (default 4).").IntVar(&c.concurrency)
	c.Cmd.Flag("output-dir", "Directory the translated file is downloaded to.").Short('o').StringVar(&c.outputDir)
	c.Cmd.Flag("no-download", "Don't download the translated file.").BoolVar(&c.noDownload)
	c.Cmd.Flag("ui", "Progress UI (auto, live, plain).").Default(uiAuto).EnumVar(&c.ui, uiAuto, uiLive, uiPlain)
	c.Cmd.Flag("reconnect-delay", "Delay before reopening a dropped progress stream.").DurationVar(&c.reconnectDelay)

	return c
}

func (c TranslateCommand) Name() string { return c.Cmd.FullCommand() }

func (c TranslateCommand) Run(ctx context.Context) error {
	profile := c.rootCmd.Profile
	mode := model.TranslationModeDocument
	if c.text {
		mode = model.TranslationModeText
	}
	job := model.TranslationJob{
		Mode:        mode,
		FilePath:    c.filePath,
		APIType:     firstString(c.apiType, profile.APIType, "google"),
		APIKey:      firstString(c.apiKey, profile.APIKey),
		SourceLang:  firstString(c.sourceLang, profile.SourceLang, "auto"),
		TargetLang:  firstString(c.targetLang, profile.TargetLang, "zh"),
		Concurrency: firstInt(c.concurrency, profile.Concurrency, 4),
	}
	if err := job.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The live UI owns the terminal, logs would break it.
	logger := c.rootCmd.Logger
	var observer session.Observer
	var ui *live.Controller
	if c.useLiveUI() {
		if !c.rootCmd.Debug {
			logger = log.Noop
		}
		ui = live.Start(c.rootCmd.Stdout, live.Options{
			NoColor:     c.rootCmd.NoColor,
			OnInterrupt: cancel,
		})
		observer = ui
	} else {
		observer = live.NewPlain(c.rootCmd.Stdout)
	}

	res, err := c.translate(ctx, job, observer, logger)
	if ui != nil {
		ui.Close()
		if uerr := ui.Wait(); uerr != nil {
			c.rootCmd.Logger.Warningf("live UI failed: %s", uerr)
		}
	}
	if res == nil {
		return err
	}

	p := c.rootCmd.NewPrinter("table")
	if perr := p.PrintTask(res.Task); perr != nil {
		return fmt.Errorf("could not print task: %w", perr)
	}
	if err != nil {
		return err
	}
	if res.OutputPath != "" {
		if perr := p.PrintMessage("translated file saved at " + res.OutputPath); perr != nil {
			return fmt.Errorf("could not print message: %w", perr)
		}
	}

	switch {
	case res.View.Detached:
		return fmt.Errorf("%w: the server closed the progress stream, check it later with: doctrans status %s", ErrTaskNotCompleted, res.Task.ID)
	case res.Task.State != model.TaskStateCompleted:
		return fmt.Errorf("%w: task %s is %s", ErrTaskNotCompleted, res.Task.ID, res.Task.State)
	}

	return nil
}

func (c TranslateCommand) translate(ctx context.Context, job model.TranslationJob, obs session.Observer, logger log.Logger) (*translate.Result, error) {
	rootCmd := *c.rootCmd
	rootCmd.Logger = logger

	client, err := rootCmd.NewAPIClient()
	if err != nil {
		return nil, err
	}

	repo, err := rootCmd.NewRepository(ctx)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	policy, err := reconnect.NewPolicy(reconnect.PolicyConfig{
		Delay: firstDuration(c.reconnectDelay, c.rootCmd.Profile.ReconnectDelay),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create reconnection policy: %w", err)
	}

	downloader, err := download.NewService(download.ServiceConfig{
		API:    client,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create download service: %w", err)
	}

	svc, err := translate.NewService(translate.ServiceConfig{
		NewSession: func(obs session.Observer) (session.Controller, error) {
			return session.New(session.Config{
				Backend:  client,
				Observer: obs,
				Policy:   policy,
				Logger:   logger,
			})
		},
		Downloader: downloader,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	return svc.Run(ctx, translate.Request{
		Job:       job,
		Download:  !c.noDownload,
		OutputDir: firstString(c.outputDir, c.rootCmd.Profile.OutputDir, conventions.DownloadsPath(c.rootCmd.DataDir)),
		Observer:  obs,
	})
}

func (c TranslateCommand) useLiveUI() bool {
	switch c.ui {
	case uiLive:
		return true
	case uiPlain:
		return false
	}

	f, ok := c.rootCmd.Stdout.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func firstDuration(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
