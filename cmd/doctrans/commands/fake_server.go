package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/doctrans/internal/jobapi/fake"
)

type FakeServerCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddr      string
	segments        int
	stepDelay       time.Duration
	dropStreamAfter int
	taskError       string
}

// NewFakeServerCommand returns the fake-server command.
func NewFakeServerCommand(rootCmd *RootCommand, app *kingpin.Application) *FakeServerCommand {
	c := &FakeServerCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("fake-server", "Run a local translation server that simulates tasks, for demos and development.")
	c.Cmd.Flag("listen", "Listen address.").Default("127.0.0.1:5000").StringVar(&c.listenAddr)
	c.Cmd.Flag("segments", "Number of blocks every task translates.").Default("20").IntVar(&c.segments)
	c.Cmd.Flag("step-delay", "Simulated translation time of a block.").Default("500ms").DurationVar(&c.stepDelay)
	c.Cmd.Flag("drop-stream-after", "Cut every task stream once after this number of frames, 0 disables it.").IntVar(&c.dropStreamAfter)
	c.Cmd.Flag("task-error", "Make every task fail with this message.").StringVar(&c.taskError)

	return c
}

func (c FakeServerCommand) Name() string { return c.Cmd.FullCommand() }

func (c FakeServerCommand) Run(ctx context.Context) error {
	fs, err := fake.NewServer(fake.ServerConfig{
		Segments:        c.segments,
		StepDelay:       c.stepDelay,
		DropStreamAfter: c.dropStreamAfter,
		TaskError:       c.taskError,
		Logger:          c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create fake server: %w", err)
	}
	defer fs.Close()

	srv := &http.Server{
		Addr:              c.listenAddr,
		Handler:           fs.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		c.rootCmd.Logger.Infof("fake translation server listening on %s", c.listenAddr)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("fake server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Streams stay open until their task ends, closing the fake server ends them.
	fs.Close()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("could not shut down fake server: %w", err)
	}

	return nil
}
