package model

// Severity is the severity of a log entry or a notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// ParseSeverity maps a server log type to a severity, unknown values are presented as info.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeveritySuccess:
		return SeveritySuccess
	case SeverityError:
		return SeverityError
	default:
		return SeverityInfo
	}
}

// Snapshot is the aggregated progress of a task at a point in time.
// Snapshots are values, every update produces a new one.
type Snapshot struct {
	Percentage     float64
	StatusMessage  string
	Current        int
	Total          int
	ElapsedSeconds float64
	// EstimatedRemainingSeconds is nil while the remaining time can't be estimated.
	EstimatedRemainingSeconds *float64
	InputTokens               int64
	OutputTokens              int64
	EstimatedCost             float64
}

// PairRole is the side of a translation pair a pair event carries.
type PairRole string

const (
	PairRoleSource PairRole = "source"
	PairRoleTarget PairRole = "target"
)

// PairEvent is a structured source or target segment announcement found in a log line.
type PairEvent struct {
	Ordinal int
	Total   int
	Role    PairRole
	Text    string
	// TimingSeconds is only set on target events.
	TimingSeconds *float64
}

// TranslationPair is the source segment being translated and, once resolved, its translation.
type TranslationPair struct {
	Ordinal       int
	Total         int
	Source        string
	Target        string
	TimingSeconds float64
	Resolved      bool
}

// LogEntry is a single line of the task log.
type LogEntry struct {
	Sequence int64
	Text     string
	Severity Severity
}

// NoticeCode identifies the kind of user facing notice.
type NoticeCode string

const (
	NoticeCompleted    NoticeCode = "completed"
	NoticeCancelled    NoticeCode = "cancelled"
	NoticeFailed       NoticeCode = "failed"
	NoticeCancelFailed NoticeCode = "cancel_failed"
	NoticeStreamEnded  NoticeCode = "stream_ended"
	NoticeReconnecting NoticeCode = "reconnecting"
)

// Notice is a user facing message about the task outcome or about a soft failure.
type Notice struct {
	Code     NoticeCode
	Severity Severity
	Text     string
}

// TaskView is everything the presentation layer needs to render a task.
type TaskView struct {
	TaskID     string
	State      TaskState
	Epoch      int
	Progress   Snapshot
	ActivePair *TranslationPair
	Log        []LogEntry
	Notice     *Notice
	OutputFile string
	Error      string
	// Detached is true when the server closed the stream without a terminal message.
	Detached bool
}
