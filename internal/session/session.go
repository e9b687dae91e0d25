// Package session follows a single translation task from its submission to its
// end: it owns the task lifecycle, the progress stream, its reconnections and
// the aggregated progress view.
//
// All the session state is owned by one event loop goroutine. Public methods,
// stream callbacks and timers only post commands or events to that loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/message"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/progress"
	"github.com/slok/doctrans/internal/reconnect"
	"github.com/slok/doctrans/internal/sse"
)

var (
	// ErrStreamEnded is returned when the server closed the stream of a task without telling its outcome.
	ErrStreamEnded = errors.New("progress stream ended without a terminal message")
	// ErrSessionClosed is returned when the session has been closed.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidState is returned when an operation is not allowed in the current task state.
	ErrInvalidState = errors.New("invalid session state")
)

// DefaultParseFailureTolerance is the number of consecutive malformed messages
// tolerated before failing a task.
const DefaultParseFailureTolerance = 50

const fallbackFailureMessage = "translation failed"

// Backend is the translation server used by a session.
type Backend interface {
	Submit(ctx context.Context, taskID string, job model.TranslationJob) error
	Cancel(ctx context.Context, taskID string) error
	OpenStream(ctx context.Context, taskID string, h sse.Handler) io.Closer
}

// Observer is notified with the new view every time the view of the task changes.
// It's called from the session loop so it must not block.
type Observer interface {
	OnView(v model.TaskView)
}

// ObserverFunc is a function Observer.
type ObserverFunc func(v model.TaskView)

func (f ObserverFunc) OnView(v model.TaskView) { f(v) }

var noopObserver = ObserverFunc(func(model.TaskView) {})

// Controller is the public behaviour of a task session.
type Controller interface {
	// Submit tears down the current task, if any, and submits a new one returning its id.
	Submit(ctx context.Context, job model.TranslationJob) (string, error)
	// Cancel cancels the current task, locally first and then on the server.
	Cancel(ctx context.Context) error
	// Reset drops the finished task and goes back to idle.
	Reset(ctx context.Context) error
	// View returns the current view of the task.
	View(ctx context.Context) (model.TaskView, error)
	// Wait blocks until the current task ends and returns its final view.
	Wait(ctx context.Context) (model.TaskView, error)
	// Close tears down the session and waits for the in-flight cancel requests.
	// The session can't be used afterwards.
	Close() error
}

// Config is the configuration of a session.
type Config struct {
	Backend  Backend
	Observer Observer
	// Classifier classifies the stream payloads, by default a new one.
	Classifier *message.Classifier
	// Policy is the reconnection policy, by default the default policy.
	Policy *reconnect.Policy
	// ParseFailureTolerance is the number of consecutive malformed messages
	// tolerated, zero uses the default and a negative value disables the limit.
	ParseFailureTolerance int
	LogCapacity           int
	// CancelTimeout bounds the cancel request sent to the server.
	CancelTimeout time.Duration
	// IDGenerator returns new task ids.
	IDGenerator func() string
	Logger      log.Logger
}

func (c *Config) defaults() error {
	if c.Backend == nil {
		return fmt.Errorf("backend is required")
	}

	if c.Observer == nil {
		c.Observer = noopObserver
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "session.Session"})

	if c.Classifier == nil {
		c.Classifier = message.NewClassifier(c.Logger)
	}

	if c.Policy == nil {
		p, err := reconnect.NewPolicy(reconnect.PolicyConfig{})
		if err != nil {
			return fmt.Errorf("could not create reconnection policy: %w", err)
		}
		c.Policy = p
	}

	if c.ParseFailureTolerance == 0 {
		c.ParseFailureTolerance = DefaultParseFailureTolerance
	}

	if c.LogCapacity <= 0 {
		c.LogCapacity = progress.DefaultLogCapacity
	}

	if c.CancelTimeout <= 0 {
		c.CancelTimeout = 30 * time.Second
	}

	if c.IDGenerator == nil {
		c.IDGenerator = NewTaskID
	}

	return nil
}

// NewTaskID returns a new unique task id.
func NewTaskID() string {
	return "task_" + ulid.Make().String()
}

// Session follows one task at a time.
type Session struct {
	backend       Backend
	observer      Observer
	classifier    *message.Classifier
	policy        *reconnect.Policy
	tolerance     int
	cancelTimeout time.Duration
	newID         func() string
	logger        log.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	cmds     chan command
	events   chan event
	done     chan struct{}
	closeCmd chan struct{}
	cancels  sync.WaitGroup

	// Loop owned state.
	taskID         string
	state          model.TaskState
	epoch          int
	agg            *progress.Aggregator
	stream         io.Closer
	reconnectTimer *time.Timer
	submitCancel   context.CancelFunc
	parseFailures  int
	notice         *model.Notice
	outputFile     string
	errMsg         string
	detached       bool
	waiters        []chan waitResult
}

var _ Controller = &Session{}

// New returns a new idle session and starts its loop.
func New(cfg Config) (*Session, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		backend:       cfg.Backend,
		observer:      cfg.Observer,
		classifier:    cfg.Classifier,
		policy:        cfg.Policy,
		tolerance:     cfg.ParseFailureTolerance,
		cancelTimeout: cfg.CancelTimeout,
		newID:         cfg.IDGenerator,
		logger:        cfg.Logger,

		ctx:      ctx,
		cancel:   cancel,
		cmds:     make(chan command),
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		closeCmd: make(chan struct{}),

		state: model.TaskStateIdle,
		agg:   progress.NewAggregator(cfg.LogCapacity),
	}

	go s.run()

	return s, nil
}

func (s *Session) Submit(ctx context.Context, job model.TranslationJob) (string, error) {
	reply := make(chan submitReply, 1)
	if err := s.send(ctx, submitCmd{job: job, reply: reply}); err != nil {
		return "", err
	}
	r := <-reply
	return r.taskID, r.err
}

func (s *Session) Cancel(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, cancelCmd{reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (s *Session) Reset(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, resetCmd{reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (s *Session) View(ctx context.Context) (model.TaskView, error) {
	reply := make(chan model.TaskView, 1)
	if err := s.send(ctx, viewCmd{reply: reply}); err != nil {
		return model.TaskView{}, err
	}
	return <-reply, nil
}

func (s *Session) Wait(ctx context.Context) (model.TaskView, error) {
	reply := make(chan waitResult, 1)
	if err := s.send(ctx, waitCmd{reply: reply}); err != nil {
		return model.TaskView{}, err
	}

	select {
	case r := <-reply:
		return r.view, r.err
	case <-ctx.Done():
		return model.TaskView{}, ctx.Err()
	}
}

func (s *Session) Close() error {
	select {
	case s.closeCmd <- struct{}{}:
	case <-s.done:
	}
	<-s.done
	s.cancels.Wait()
	return nil
}

func (s *Session) send(ctx context.Context, cmd command) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post is used by the goroutines owned by the session to reach the loop.
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}
