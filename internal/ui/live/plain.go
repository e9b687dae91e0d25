package live

import (
	"fmt"
	"io"
	"sync"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/printer"
	"github.com/slok/doctrans/internal/session"
)

// Plain is a line oriented observer for non interactive outputs. Every log
// line, notice and state is printed once.
type Plain struct {
	mu          sync.Mutex
	out         io.Writer
	taskID      string
	lastSeq     int64
	lastState   model.TaskState
	lastNotice  model.Notice
	lastPercent int
}

var _ session.Observer = &Plain{}

// NewPlain returns a new plain observer writing to out.
func NewPlain(out io.Writer) *Plain {
	return &Plain{out: out, lastPercent: -1}
}

func (p *Plain) OnView(v model.TaskView) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.TaskID != p.taskID {
		p.taskID = v.TaskID
		p.lastSeq = 0
		p.lastState = ""
		p.lastNotice = model.Notice{}
		p.lastPercent = -1
	}

	if v.State != p.lastState {
		p.lastState = v.State
		if v.TaskID != "" {
			fmt.Fprintf(p.out, "task %s: %s\n", v.TaskID, v.State)
		}
	}

	for _, e := range v.Log {
		if e.Sequence <= p.lastSeq {
			continue
		}
		p.lastSeq = e.Sequence
		fmt.Fprintf(p.out, "[%s] %s\n", e.Severity, e.Text)
	}

	// Progress is printed every 10%.
	if pct := int(v.Progress.Percentage) / 10 * 10; pct > p.lastPercent && v.State == model.TaskStateStreaming {
		p.lastPercent = pct
		fmt.Fprintf(p.out, "progress %d%% | elapsed %s | remaining %s | cost %s\n",
			int(v.Progress.Percentage),
			printer.FormatSeconds(v.Progress.ElapsedSeconds),
			printer.FormatRemaining(v.Progress.EstimatedRemainingSeconds),
			printer.FormatCost(v.Progress.EstimatedCost),
		)
	}

	if v.Notice != nil && *v.Notice != p.lastNotice {
		p.lastNotice = *v.Notice
		fmt.Fprintf(p.out, "%s: %s\n", v.Notice.Severity, v.Notice.Text)
	}
}
