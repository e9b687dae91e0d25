package live

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/printer"
)

var (
	colorTitle   = lipgloss.Color("33")
	colorMuted   = lipgloss.Color("242")
	colorSource  = lipgloss.Color("252")
	colorTarget  = lipgloss.Color("114")
	colorInfo    = lipgloss.Color("244")
	colorSuccess = lipgloss.Color("42")
	colorError   = lipgloss.Color("196")
)

type renderOptions struct {
	width       int
	logLines    int
	noColor     bool
	bar         string
	interrupted bool
}

// render renders a task view, it's a pure function of its inputs.
func render(v model.TaskView, opts renderOptions) string {
	lines := []string{
		renderHeader(v, opts),
		opts.bar,
	}

	if v.Progress.StatusMessage != "" {
		lines = append(lines, stylize(v.Progress.StatusMessage, opts.noColor, colorMuted))
	}
	lines = append(lines, stylize(renderStats(v.Progress), opts.noColor, colorMuted))

	if v.ActivePair != nil {
		lines = append(lines, renderPair(*v.ActivePair, opts)...)
	}

	if logs := renderLog(v.Log, opts); len(logs) > 0 {
		lines = append(lines, "")
		lines = append(lines, logs...)
	}

	if v.Notice != nil {
		lines = append(lines, "", stylize(v.Notice.Text, opts.noColor, severityColor(v.Notice.Severity)))
	}

	if opts.interrupted && v.State.IsActive() {
		lines = append(lines, stylize("cancelling... press ctrl+c again to quit", opts.noColor, colorMuted))
	}

	clamp := lipgloss.NewStyle().MaxWidth(opts.width)
	for i, l := range lines {
		lines[i] = clamp.Render(l)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func renderHeader(v model.TaskView, opts renderOptions) string {
	line := "doctrans"
	if v.TaskID != "" {
		line += " | " + v.TaskID
	}
	state := string(v.State)
	if v.Detached {
		state += " (stream ended)"
	}
	line += " | " + state
	return stylize(line, opts.noColor, colorTitle)
}

func renderStats(p model.Snapshot) string {
	parts := []string{}
	if p.Total > 0 {
		parts = append(parts, fmt.Sprintf("Blocks %d/%d", p.Current, p.Total))
	}
	parts = append(parts,
		"Elapsed "+printer.FormatSeconds(p.ElapsedSeconds),
		"Remaining "+printer.FormatRemaining(p.EstimatedRemainingSeconds),
		fmt.Sprintf("Tokens %s in / %s out", printer.FormatCount(p.InputTokens), printer.FormatCount(p.OutputTokens)),
		"Cost "+printer.FormatCost(p.EstimatedCost),
	)
	return strings.Join(parts, " | ")
}

func renderPair(p model.TranslationPair, opts renderOptions) []string {
	source := fmt.Sprintf("Source [%d/%d] %s", p.Ordinal, p.Total, oneLine(p.Source))
	target := "Target        translating..."
	if p.Resolved {
		target = fmt.Sprintf("Target (%s) %s", printer.FormatSeconds(p.TimingSeconds), oneLine(p.Target))
	}
	return []string{
		"",
		stylize(source, opts.noColor, colorSource),
		stylize(target, opts.noColor, colorTarget),
	}
}

func renderLog(entries []model.LogEntry, opts renderOptions) []string {
	if len(entries) > opts.logLines {
		entries = entries[len(entries)-opts.logLines:]
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, stylize(oneLine(e.Text), opts.noColor, severityColor(e.Severity)))
	}
	return lines
}

func severityColor(s model.Severity) lipgloss.Color {
	switch s {
	case model.SeveritySuccess:
		return colorSuccess
	case model.SeverityError:
		return colorError
	default:
		return colorInfo
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
