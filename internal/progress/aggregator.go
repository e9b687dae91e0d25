// Package progress folds the classified messages of a task stream into the
// view model presented to the user.
package progress

import (
	"fmt"
	"strings"

	"github.com/slok/doctrans/internal/logpattern"
	"github.com/slok/doctrans/internal/message"
	"github.com/slok/doctrans/internal/model"
)

// routineProgressMarker is the per page counter line the server repeats on every
// update, these are not worth a log line.
const routineProgressMarker = "正在翻译第"

// Aggregator owns the progress snapshot, the active translation pair and the
// log of a single task. It's not safe for concurrent use, the owner serializes access.
type Aggregator struct {
	snapshot model.Snapshot
	pair     *model.TranslationPair
	log      *LogRing
}

// NewAggregator returns an empty aggregator with a log bounded to logCapacity entries.
func NewAggregator(logCapacity int) *Aggregator {
	return &Aggregator{log: NewLogRing(logCapacity)}
}

// Apply folds a classified message and reports if the view changed.
func (a *Aggregator) Apply(msg message.Message) bool {
	switch m := msg.(type) {
	case message.ProgressMessage:
		prevMessage := a.snapshot.StatusMessage
		a.snapshot = ApplyProgress(a.snapshot, m)
		if m.Message != nil && *m.Message != "" && *m.Message != prevMessage && !strings.Contains(*m.Message, routineProgressMarker) {
			a.log.Append(*m.Message, model.SeverityInfo)
		}
		return true
	case message.LogMessage:
		a.log.Append(m.Text, m.Severity)
		if ev, ok := logpattern.Extract(m.Text); ok {
			a.pair, _ = ApplyPair(a.pair, ev)
		}
		return true
	case message.CompletedMessage:
		a.snapshot = ApplyCompleted(a.snapshot, m)
		a.log.Append("translation completed", model.SeveritySuccess)
		return true
	case message.CancelledMessage:
		a.log.Append("translation cancelled", model.SeverityInfo)
		return true
	case message.ErrorMessage:
		a.log.Append(fmt.Sprintf("error: %s", m.Message), model.SeverityError)
		return true
	}

	// Heartbeats and parse failures don't change the view.
	return false
}

// AddLog appends a client side log line.
func (a *Aggregator) AddLog(text string, severity model.Severity) {
	a.log.Append(text, severity)
}

// SetStatusMessage replaces the status message keeping the rest of the snapshot.
func (a *Aggregator) SetStatusMessage(msg string) {
	a.snapshot.StatusMessage = msg
}

// Reset clears the whole view, it's the only way percentage can go back.
func (a *Aggregator) Reset() {
	a.snapshot = model.Snapshot{}
	a.pair = nil
	a.log.Reset()
}

// Snapshot returns the current snapshot.
func (a *Aggregator) Snapshot() model.Snapshot {
	s := a.snapshot
	if s.EstimatedRemainingSeconds != nil {
		v := *s.EstimatedRemainingSeconds
		s.EstimatedRemainingSeconds = &v
	}
	return s
}

// ActivePair returns a copy of the active pair or nil.
func (a *Aggregator) ActivePair() *model.TranslationPair {
	if a.pair == nil {
		return nil
	}
	p := *a.pair
	return &p
}

// Log returns a copy of the kept log entries, oldest first.
func (a *Aggregator) Log() []model.LogEntry {
	return a.log.Entries()
}
