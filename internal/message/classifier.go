package message

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
)

// HeartbeatSentinel is the prefix of keep-alive payloads (SSE comments).
const HeartbeatSentinel = ":"

const (
	statusCompleted = "completed"
	statusCancelled = "cancelled"
	statusError     = "error"
	typeLog         = "log"
)

var (
	errInvalidJSON       = errors.New("payload is not valid JSON")
	errNotObject         = errors.New("payload is not a JSON object")
	errUnrecognisedShape = errors.New("payload shape is not recognised")
)

// Classifier maps raw stream payloads to messages. It never fails, payloads that
// can't be understood are returned as ParseFailure and logged.
type Classifier struct {
	logger log.Logger
}

// NewClassifier returns a new classifier, a nil logger discards the diagnostics.
func NewClassifier(logger log.Logger) *Classifier {
	if logger == nil {
		logger = log.Noop
	}

	return &Classifier{logger: logger.WithValues(log.Kv{"svc": "message.Classifier"})}
}

// Classify classifies a single raw payload.
func (c *Classifier) Classify(raw string) Message {
	payload := strings.TrimSpace(raw)
	if strings.HasPrefix(payload, HeartbeatSentinel) {
		return Heartbeat{}
	}

	if !gjson.Valid(payload) {
		return c.fail(raw, errInvalidJSON)
	}
	root := gjson.Parse(payload)
	if !root.IsObject() {
		return c.fail(raw, errNotObject)
	}

	// Explicit status wins over everything else.
	if status := root.Get("status"); status.Type == gjson.String {
		switch status.Str {
		case statusCompleted:
			return CompletedMessage{
				OutputFile:    root.Get("output_file").String(),
				InputTokens:   optInt64(root.Get("input_tokens")),
				OutputTokens:  optInt64(root.Get("output_tokens")),
				EstimatedCost: optFloat(root.Get("estimated_cost")),
			}
		case statusCancelled:
			return CancelledMessage{Message: root.Get("message").String()}
		case statusError:
			msg := root.Get("error").String()
			if msg == "" {
				msg = root.Get("message").String()
			}
			return ErrorMessage{Message: msg}
		}
	}

	if e := root.Get("error"); e.Type == gjson.String && e.Str != "" {
		return ErrorMessage{Message: e.Str}
	}

	current, total := root.Get("current"), root.Get("total")
	if current.Exists() || total.Exists() {
		return ProgressMessage{
			Current:            optInt(current),
			Total:              optInt(total),
			Percentage:         optFloat(root.Get("percentage")),
			Message:            optString(root.Get("message")),
			ElapsedTime:        optFloat(root.Get("elapsed_time")),
			EstimatedRemaining: optFloat(root.Get("estimated_remaining")),
			InputTokens:        optInt64(root.Get("input_tokens")),
			OutputTokens:       optInt64(root.Get("output_tokens")),
			EstimatedCost:      optFloat(root.Get("estimated_cost")),
		}
	}

	if root.Get("type").String() == typeLog {
		return LogMessage{
			Text:     root.Get("message").String(),
			Severity: model.ParseSeverity(root.Get("log_type").String()),
		}
	}

	return c.fail(raw, errUnrecognisedShape)
}

func (c *Classifier) fail(raw string, err error) ParseFailure {
	c.logger.Warningf("Could not classify stream payload %q: %s", truncate(raw, 120), err)
	return ParseFailure{Raw: raw, Err: fmt.Errorf("could not classify payload: %w", err)}
}

func optFloat(r gjson.Result) *float64 {
	if r.Type != gjson.Number {
		return nil
	}
	v := r.Float()
	return &v
}

func optInt(r gjson.Result) *int {
	if r.Type != gjson.Number {
		return nil
	}
	v := int(r.Int())
	return &v
}

func optInt64(r gjson.Result) *int64 {
	if r.Type != gjson.Number {
		return nil
	}
	v := r.Int()
	return &v
}

func optString(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	v := r.Str
	return &v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Don't split a multi-byte rune.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
