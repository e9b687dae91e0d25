package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/slok/doctrans/cmd/doctrans/commands"
	"github.com/slok/doctrans/internal/log"
	loglogrus "github.com/slok/doctrans/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("doctrans", "Translate PDF documents with a doctrans translation server, following the progress live.")
	app.Version(Version)
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	analyzeCmd := commands.NewAnalyzeCommand(rootCmd, app)
	translateCmd := commands.NewTranslateCommand(rootCmd, app)
	cancelCmd := commands.NewCancelCommand(rootCmd, app)
	statusCmd := commands.NewStatusCommand(rootCmd, app)
	historyCmd := commands.NewHistoryCommand(rootCmd, app)
	downloadCmd := commands.NewDownloadCommand(rootCmd, app)
	fakeServerCmd := commands.NewFakeServerCommand(rootCmd, app)

	cmds := map[string]commands.Command{
		analyzeCmd.Name():    analyzeCmd,
		translateCmd.Name():  translateCmd,
		cancelCmd.Name():     cancelCmd,
		statusCmd.Name():     statusCmd,
		historyCmd.Name():    historyCmd,
		downloadCmd.Name():   downloadCmd,
		fakeServerCmd.Name(): fakeServerCmd,
	}

	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Printed output (table/JSON) is not mixed with logs unless debugging.
	printerCommands := map[string]bool{
		"analyze": true,
		"status":  true,
		"history": true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	rootCmd.Logger = getLogger(ctx, *rootCmd)

	if err := rootCmd.LoadProfile(ctx); err != nil {
		return err
	}

	// OS signals cancel the command, the command error is the run result.
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer signalCancel()

	var g run.Group

	// OS signals.
	{
		stopC := make(chan struct{})
		g.Add(
			func() error {
				select {
				case <-signalCtx.Done():
					rootCmd.Logger.Debugf("Termination signal received")
				case <-stopC:
					return nil
				}
				<-stopC
				return nil
			},
			func(_ error) {
				close(stopC)
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(signalCtx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(_ context.Context, config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled")

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
