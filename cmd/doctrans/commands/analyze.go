package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/doctrans/internal/app/analyze"
)

type AnalyzeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	filePath string
	format   string
}

// NewAnalyzeCommand returns the analyze command.
func NewAnalyzeCommand(rootCmd *RootCommand, app *kingpin.Application) *AnalyzeCommand {
	c := &AnalyzeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("analyze", "Analyze a PDF document: pages, characters, language and estimated translation time.")
	c.Cmd.Arg("file", "PDF document.").Required().ExistingFileVar(&c.filePath)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c AnalyzeCommand) Name() string { return c.Cmd.FullCommand() }

func (c AnalyzeCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.NewAPIClient()
	if err != nil {
		return err
	}

	svc, err := analyze.NewService(analyze.ServiceConfig{
		API:    client,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	a, err := svc.Run(ctx, analyze.Request{FilePath: c.filePath})
	if err != nil {
		return err
	}

	if err := c.rootCmd.NewPrinter(c.format).PrintAnalysis(*a); err != nil {
		return fmt.Errorf("could not print analysis: %w", err)
	}

	return nil
}
