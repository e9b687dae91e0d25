package progress

import "github.com/slok/doctrans/internal/model"

// DefaultLogCapacity is the number of most recent log entries kept for presentation.
const DefaultLogCapacity = 200

// LogRing is a bounded log that evicts the oldest entries on overflow.
// It's not safe for concurrent use.
type LogRing struct {
	buf  []model.LogEntry
	head int
	size int
	seq  int64
}

// NewLogRing returns a ring holding at most capacity entries.
func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogRing{buf: make([]model.LogEntry, capacity)}
}

// Append adds a new entry and returns it.
func (r *LogRing) Append(text string, severity model.Severity) model.LogEntry {
	r.seq++
	e := model.LogEntry{Sequence: r.seq, Text: text, Severity: severity}

	idx := (r.head + r.size) % len(r.buf)
	r.buf[idx] = e
	if r.size < len(r.buf) {
		r.size++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}

	return e
}

// Entries returns a copy of the kept entries, oldest first.
func (r *LogRing) Entries() []model.LogEntry {
	out := make([]model.LogEntry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of kept entries.
func (r *LogRing) Len() int { return r.size }

// Reset drops all the entries and restarts the sequence.
func (r *LogRing) Reset() {
	clear(r.buf)
	r.head = 0
	r.size = 0
	r.seq = 0
}
