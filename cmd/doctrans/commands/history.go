package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/doctrans/internal/app/history"
	"github.com/slok/doctrans/internal/model"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	state  string
	limit  int
	format string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the translation tasks submitted from this machine.")
	c.Cmd.Flag("state", "Only list tasks in this state.").EnumVar(&c.state,
		string(model.TaskStateSubmitting),
		string(model.TaskStateStreaming),
		string(model.TaskStateCompleted),
		string(model.TaskStateCancelled),
		string(model.TaskStateFailed),
	)
	c.Cmd.Flag("limit", "Max number of tasks listed, 0 lists all.").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.NewRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	tasks, err := svc.Run(ctx, history.Request{State: model.TaskState(c.state), Limit: c.limit})
	if err != nil {
		return err
	}

	if err := c.rootCmd.NewPrinter(c.format).PrintHistory(tasks); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}
