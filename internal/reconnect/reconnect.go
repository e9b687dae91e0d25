// Package reconnect decides what to do when the progress stream of a task is lost.
package reconnect

import (
	"fmt"
	"time"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/sse"
)

// DefaultDelay is the wait before reopening a dropped stream.
const DefaultDelay = 3 * time.Second

// Action is the outcome of a reconnection decision.
type Action int

const (
	// ActionIgnore does nothing, the close is stale or expected.
	ActionIgnore Action = iota
	// ActionDetach stops following the task without failing it.
	ActionDetach
	// ActionSchedule reopens the stream once after the decision delay.
	ActionSchedule
	// ActionFail fails the task.
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionIgnore:
		return "ignore"
	case ActionDetach:
		return "detach"
	case ActionSchedule:
		return "schedule"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Decision is what the policy decided for a lost stream.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// PolicyConfig is the configuration of the reconnection policy.
type PolicyConfig struct {
	Delay time.Duration
}

func (c *PolicyConfig) defaults() error {
	if c.Delay < 0 {
		return fmt.Errorf("delay can't be negative")
	}

	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}

	return nil
}

// Policy decides on lost streams. It has no state, every dropped stream gets
// at most one scheduled reconnect.
type Policy struct {
	delay time.Duration
}

// NewPolicy returns a new reconnection policy.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Policy{delay: cfg.Delay}, nil
}

// Delay returns the wait before a scheduled reconnect.
func (p Policy) Delay() time.Duration { return p.delay }

// Decide returns the decision for a stream of a task in state that ended with kind.
func (p Policy) Decide(state model.TaskState, kind sse.CloseKind) Decision {
	// Only a task that is being followed cares about its stream.
	if state != model.TaskStateStreaming {
		return Decision{Action: ActionIgnore}
	}

	switch kind {
	case sse.CloseGraceful:
		return Decision{Action: ActionDetach}
	case sse.CloseAbnormal:
		return Decision{Action: ActionSchedule, Delay: p.delay}
	case sse.CloseRejected:
		return Decision{Action: ActionFail}
	default:
		return Decision{Action: ActionIgnore}
	}
}

// StillRelevant returns true if a reconnect scheduled for scheduledTaskID must
// still run given the current task of the session and its state.
func StillRelevant(scheduledTaskID, currentTaskID string, state model.TaskState) bool {
	return scheduledTaskID != "" && scheduledTaskID == currentTaskID && state == model.TaskStateStreaming
}
