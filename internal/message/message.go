// Package message classifies the raw payloads received on a task progress
// stream into typed messages.
package message

import "github.com/slok/doctrans/internal/model"

// Kind identifies the type of a classified payload.
type Kind int

const (
	KindHeartbeat Kind = iota
	KindParseFailure
	KindError
	KindCompleted
	KindCancelled
	KindLog
	KindProgress
)

func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindParseFailure:
		return "parse_failure"
	case KindError:
		return "error"
	case KindCompleted:
		return "completed"
	case KindCancelled:
		return "cancelled"
	case KindLog:
		return "log"
	case KindProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Message is the result of classifying a payload.
type Message interface {
	Kind() Kind
}

// Heartbeat is a keep-alive payload without content.
type Heartbeat struct{}

// ParseFailure is a payload that could not be decoded or mapped to any message.
type ParseFailure struct {
	Raw string
	Err error
}

// ErrorMessage is a server reported task failure.
type ErrorMessage struct {
	Message string
}

// CompletedMessage is sent once the task output is ready.
// Token and cost figures are only sent by some endpoints.
type CompletedMessage struct {
	OutputFile    string
	InputTokens   *int64
	OutputTokens  *int64
	EstimatedCost *float64
}

// CancelledMessage is sent when the server stopped the task on a cancel request.
type CancelledMessage struct {
	Message string
}

// LogMessage is a free text log line of the task.
type LogMessage struct {
	Text     string
	Severity model.Severity
}

// ProgressMessage is a partial progress update, nil fields were not sent.
type ProgressMessage struct {
	Current            *int
	Total              *int
	Percentage         *float64
	Message            *string
	ElapsedTime        *float64
	EstimatedRemaining *float64
	InputTokens        *int64
	OutputTokens       *int64
	EstimatedCost      *float64
}

func (Heartbeat) Kind() Kind        { return KindHeartbeat }
func (ParseFailure) Kind() Kind     { return KindParseFailure }
func (ErrorMessage) Kind() Kind     { return KindError }
func (CompletedMessage) Kind() Kind { return KindCompleted }
func (CancelledMessage) Kind() Kind { return KindCancelled }
func (LogMessage) Kind() Kind       { return KindLog }
func (ProgressMessage) Kind() Kind  { return KindProgress }

// IsTerminal returns true for the messages that end a task.
func IsTerminal(m Message) bool {
	switch m.Kind() {
	case KindError, KindCompleted, KindCancelled:
		return true
	default:
		return false
	}
}
