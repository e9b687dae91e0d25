package live

import (
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/session"
)

// Controller runs the live UI and implements session.Observer.
type Controller struct {
	mu      sync.Mutex
	closed  bool
	views   chan model.TaskView
	program *tea.Program
	done    chan struct{}
	err     error
}

var _ session.Observer = &Controller{}

// Start launches a live UI controller that writes to stdout.
func Start(stdout io.Writer, opts Options) *Controller {
	if stdout == nil {
		stdout = os.Stdout
	}

	// Only the latest view matters, older ones are replaced.
	views := make(chan model.TaskView, 1)
	program := tea.NewProgram(NewModel(views, opts), tea.WithOutput(stdout))
	c := &Controller{
		views:   views,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, c.err = program.Run()
		close(c.done)
	}()

	return c
}

// OnView forwards the view to the UI without blocking the caller.
func (c *Controller) OnView(v model.TaskView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.views <- v:
		return
	default:
	}

	// Replace the pending view.
	select {
	case <-c.views:
	default:
	}
	select {
	case c.views <- v:
	default:
	}
}

// Close signals the UI to render the last view and stop.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.views)
}

// Wait blocks until the UI has exited.
func (c *Controller) Wait() error {
	<-c.done
	return c.err
}
