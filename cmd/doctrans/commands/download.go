package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/doctrans/internal/app/download"
	"github.com/slok/doctrans/internal/conventions"
	"github.com/slok/doctrans/internal/printer"
)

type DownloadCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	fileName  string
	outputDir string
}

// NewDownloadCommand returns the download command.
func NewDownloadCommand(rootCmd *RootCommand, app *kingpin.Application) *DownloadCommand {
	c := &DownloadCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("download", "Download a translated file.")
	c.Cmd.Arg("file-name", "Server side name of the translated file (see status).").Required().StringVar(&c.fileName)
	c.Cmd.Flag("output-dir", "Directory the file is written to.").Short('o').StringVar(&c.outputDir)

	return c
}

func (c DownloadCommand) Name() string { return c.Cmd.FullCommand() }

func (c DownloadCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.NewAPIClient()
	if err != nil {
		return err
	}

	svc, err := download.NewService(download.ServiceConfig{
		API:    client,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	outputDir := firstString(c.outputDir, c.rootCmd.Profile.OutputDir, conventions.DownloadsPath(c.rootCmd.DataDir))
	res, err := svc.Run(ctx, download.Request{FileName: c.fileName, OutputDir: outputDir})
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("downloaded %s (%s)", res.Path, printer.FormatBytes(res.Size))
	return c.rootCmd.NewPrinter("table").PrintMessage(msg)
}
