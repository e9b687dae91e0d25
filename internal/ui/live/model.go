// Package live renders the progress of a translation task in the terminal.
package live

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/slok/doctrans/internal/model"
)

const (
	defaultWidth = 80
	tickInterval = time.Second
)

// Options configures the live UI.
type Options struct {
	NoColor bool
	// LogLines is the number of log lines shown, the newest ones.
	LogLines int
	// OnInterrupt is called when the user presses ctrl+c the first time, a
	// second ctrl+c quits the UI.
	OnInterrupt func()
}

func (o *Options) defaults() {
	if o.LogLines <= 0 {
		o.LogLines = 8
	}
	if o.OnInterrupt == nil {
		o.OnInterrupt = func() {}
	}
}

// Model is the Bubble Tea model of a task view.
type Model struct {
	view        model.TaskView
	bar         progress.Model
	views       <-chan model.TaskView
	width       int
	opts        Options
	interrupted bool

	// The server only reports the elapsed time with the progress messages,
	// in between it's advanced locally from the streaming start.
	timeNow        func() time.Time
	streamingSince time.Time
	now            time.Time
}

// NewModel returns a model rendering the views received on views.
func NewModel(views <-chan model.TaskView, opts Options) Model {
	opts.defaults()

	barOpts := []progress.Option{progress.WithWidth(defaultWidth - 10)}
	if opts.NoColor {
		barOpts = append(barOpts, progress.WithSolidFill(""), progress.WithFillCharacters('#', '-'))
	} else {
		barOpts = append(barOpts, progress.WithDefaultGradient())
	}

	return Model{
		view:    model.TaskView{State: model.TaskStateIdle},
		bar:     progress.New(barOpts...),
		views:   views,
		width:   defaultWidth,
		opts:    opts,
		timeNow: time.Now,
	}
}

// Init waits for the first view and starts the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForView(m.views), tick())
}

// Update consumes task views, key presses and terminal resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(typed.Width, 20)
		m.bar.Width = max(m.width-10, 10)
		return m, nil
	case tea.KeyMsg:
		if typed.String() != "ctrl+c" {
			return m, nil
		}
		if m.interrupted {
			return m, tea.Quit
		}
		m.interrupted = true
		m.opts.OnInterrupt()
		return m, nil
	case tickMsg:
		m.now = time.Time(typed)
		return m, tick()
	case viewMsg:
		v := model.TaskView(typed)
		if v.TaskID != m.view.TaskID || v.State != model.TaskStateStreaming {
			m.streamingSince = time.Time{}
		}
		if v.State == model.TaskStateStreaming && m.streamingSince.IsZero() {
			m.streamingSince = m.timeNow()
			m.now = m.streamingSince
		}
		m.view = v
		return m, waitForView(m.views)
	}
	return m, nil
}

// View renders the task view.
func (m Model) View() string {
	v := m.view
	if v.State == model.TaskStateStreaming && !v.Detached && !m.streamingSince.IsZero() {
		local := m.now.Sub(m.streamingSince).Seconds()
		v.Progress.ElapsedSeconds = max(v.Progress.ElapsedSeconds, local)
	}

	return render(v, renderOptions{
		width:       m.width,
		logLines:    m.opts.LogLines,
		noColor:     m.opts.NoColor,
		bar:         m.bar.ViewAs(v.Progress.Percentage / 100),
		interrupted: m.interrupted,
	})
}

type viewMsg model.TaskView

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitForView blocks until a view is available, quits once the views end.
func waitForView(views <-chan model.TaskView) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-views
		if !ok {
			return tea.Quit()
		}
		return viewMsg(v)
	}
}
