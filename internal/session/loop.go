package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/doctrans/internal/message"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/reconnect"
	"github.com/slok/doctrans/internal/sse"
)

type command interface{ isCommand() }

type submitReply struct {
	taskID string
	err    error
}

type waitResult struct {
	view model.TaskView
	err  error
}

type submitCmd struct {
	job   model.TranslationJob
	reply chan submitReply
}
type cancelCmd struct{ reply chan error }
type resetCmd struct{ reply chan error }
type viewCmd struct{ reply chan model.TaskView }
type waitCmd struct{ reply chan waitResult }

func (submitCmd) isCommand() {}
func (cancelCmd) isCommand() {}
func (resetCmd) isCommand()  {}
func (viewCmd) isCommand()   {}
func (waitCmd) isCommand()   {}

// Events are stamped with the task (and the stream epoch) they belong to.
type event interface{ isEvent() }

type submittedEvent struct {
	taskID string
	err    error
}
type inboundEvent struct {
	taskID string
	epoch  int
	ev     sse.Event
}
type retryingEvent struct {
	taskID  string
	epoch   int
	attempt int
	err     error
}
type closedEvent struct {
	taskID string
	epoch  int
	close  sse.Close
}
type reconnectDueEvent struct {
	taskID string
}
type cancelDoneEvent struct {
	taskID string
	err    error
}

func (submittedEvent) isEvent()    {}
func (inboundEvent) isEvent()      {}
func (retryingEvent) isEvent()     {}
func (closedEvent) isEvent()       {}
func (reconnectDueEvent) isEvent() {}
func (cancelDoneEvent) isEvent()   {}

func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.closeCmd:
			s.drainEvents()
			s.shutdown()
			return
		case cmd := <-s.cmds:
			// Commands see every event posted before them.
			s.drainEvents()
			s.handleCommand(cmd)
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

func (s *Session) drainEvents() {
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		default:
			return
		}
	}
}

func (s *Session) handleCommand(cmd command) {
	switch c := cmd.(type) {
	case submitCmd:
		id, err := s.submit(c.job)
		c.reply <- submitReply{taskID: id, err: err}
	case cancelCmd:
		c.reply <- s.cancelTask()
	case resetCmd:
		c.reply <- s.reset()
	case viewCmd:
		c.reply <- s.view()
	case waitCmd:
		s.addWaiter(c.reply)
	}
}

func (s *Session) handleEvent(ev event) {
	switch e := ev.(type) {
	case submittedEvent:
		s.handleSubmitted(e)
	case inboundEvent:
		s.handleInbound(e)
	case retryingEvent:
		if s.isCurrent(e.taskID, e.epoch) {
			s.logger.Debugf("task %s stream dial retry %d: %v", e.taskID, e.attempt, e.err)
		}
	case closedEvent:
		s.handleClosed(e)
	case reconnectDueEvent:
		s.handleReconnectDue(e)
	case cancelDoneEvent:
		s.handleCancelDone(e)
	}
}

func (s *Session) submit(job model.TranslationJob) (string, error) {
	if err := job.Validate(); err != nil {
		return "", fmt.Errorf("invalid job: %w", err)
	}

	if s.taskID != "" {
		s.logger.Infof("replacing task %s (%s)", s.taskID, s.state)
	}
	s.teardown()
	s.resolveWaiters(model.TaskView{}, fmt.Errorf("task replaced: %w", ErrInvalidState))
	s.clear()

	s.taskID = s.newID()
	s.state = model.TaskStateSubmitting
	s.agg.SetStatusMessage("submitting translation")

	taskID := s.taskID
	ctx, cancel := context.WithCancel(s.ctx)
	s.submitCancel = cancel
	go func() {
		err := s.backend.Submit(ctx, taskID, job)
		s.post(submittedEvent{taskID: taskID, err: err})
	}()

	s.logger.Infof("submitting task %s", taskID)
	s.notify()

	return taskID, nil
}

func (s *Session) handleSubmitted(e submittedEvent) {
	if e.taskID != s.taskID || s.state != model.TaskStateSubmitting {
		s.logger.Debugf("ignoring submission result of task %s", e.taskID)
		return
	}
	s.submitCancel = nil

	if e.err != nil {
		s.logger.Errorf("task %s submission failed: %v", e.taskID, e.err)
		msg := fallbackFailureMessage
		var serr *model.ServerError
		if errors.As(e.err, &serr) && serr.Message != "" {
			msg = serr.Message
		}
		s.fail(msg)
		return
	}

	s.state = model.TaskStateStreaming
	s.agg.SetStatusMessage("translation started")
	s.agg.AddLog(fmt.Sprintf("translation task %s started", s.taskID), model.SeverityInfo)
	s.openStream()
	s.notify()
}

func (s *Session) openStream() {
	s.closeStream()

	s.epoch++
	taskID, epoch := s.taskID, s.epoch
	s.stream = s.backend.OpenStream(s.ctx, taskID, sse.Handler{
		OnEvent: func(ev sse.Event) {
			s.post(inboundEvent{taskID: taskID, epoch: epoch, ev: ev})
		},
		OnRetry: func(attempt int, err error) {
			s.post(retryingEvent{taskID: taskID, epoch: epoch, attempt: attempt, err: err})
		},
		OnClose: func(c sse.Close) {
			s.post(closedEvent{taskID: taskID, epoch: epoch, close: c})
		},
	})
	s.logger.Debugf("task %s stream opened (epoch %d)", taskID, epoch)
}

func (s *Session) isCurrent(taskID string, epoch int) bool {
	return taskID == s.taskID && epoch == s.epoch
}

func (s *Session) handleInbound(e inboundEvent) {
	if !s.isCurrent(e.taskID, e.epoch) {
		s.logger.Debugf("dropping stale event of task %s (epoch %d, current %d)", e.taskID, e.epoch, s.epoch)
		return
	}
	if s.state != model.TaskStateStreaming {
		return
	}

	msg := s.classifier.Classify(e.ev.Data)
	switch m := msg.(type) {
	case message.Heartbeat:
		return
	case message.ParseFailure:
		s.parseFailures++
		if s.tolerance >= 0 && s.parseFailures > s.tolerance {
			s.logger.Errorf("task %s: %d consecutive malformed messages", s.taskID, s.parseFailures)
			s.fail(fmt.Sprintf("too many malformed progress messages (%d)", s.parseFailures))
		}
		return
	case message.CompletedMessage:
		s.parseFailures = 0
		s.agg.Apply(m)
		s.outputFile = m.OutputFile
		s.finish(model.TaskStateCompleted, &model.Notice{
			Code:     model.NoticeCompleted,
			Severity: model.SeveritySuccess,
			Text:     "translation completed",
		})
		return
	case message.CancelledMessage:
		s.parseFailures = 0
		s.agg.Apply(m)
		s.finish(model.TaskStateCancelled, cancelledNotice())
		return
	case message.ErrorMessage:
		s.parseFailures = 0
		msg := m.Message
		if msg == "" {
			msg = fallbackFailureMessage
		}
		s.agg.Apply(message.ErrorMessage{Message: msg})
		s.errMsg = msg
		s.finish(model.TaskStateFailed, failedNotice(msg))
		return
	}

	s.parseFailures = 0
	if s.agg.Apply(msg) {
		s.notify()
	}
}

func (s *Session) handleClosed(e closedEvent) {
	if !s.isCurrent(e.taskID, e.epoch) {
		return
	}
	s.stream = nil

	d := s.policy.Decide(s.state, e.close.Kind)
	switch d.Action {
	case reconnect.ActionDetach:
		s.logger.Warningf("task %s stream closed by the server without outcome", s.taskID)
		s.detached = true
		s.agg.AddLog("connection closed by the server", model.SeverityError)
		s.notice = &model.Notice{
			Code:     model.NoticeStreamEnded,
			Severity: model.SeverityError,
			Text:     "connection closed by the server",
		}
		s.notify()
		s.resolveWaiters(s.view(), ErrStreamEnded)
	case reconnect.ActionSchedule:
		s.logger.Warningf("task %s stream lost, reconnecting in %s: %v", s.taskID, d.Delay, e.close.Err)
		s.agg.AddLog(fmt.Sprintf("connection lost, reconnecting in %s", d.Delay), model.SeverityInfo)
		s.notice = &model.Notice{
			Code:     model.NoticeReconnecting,
			Severity: model.SeverityInfo,
			Text:     "connection lost, reconnecting...",
		}
		s.stopReconnectTimer()
		taskID := s.taskID
		s.reconnectTimer = time.AfterFunc(d.Delay, func() {
			s.post(reconnectDueEvent{taskID: taskID})
		})
		s.notify()
	case reconnect.ActionFail:
		s.logger.Errorf("task %s stream rejected: %v", s.taskID, e.close.Err)
		s.fail(fmt.Sprintf("progress stream rejected: %v", e.close.Err))
	}
}

func (s *Session) handleReconnectDue(e reconnectDueEvent) {
	if !reconnect.StillRelevant(e.taskID, s.taskID, s.state) {
		s.logger.Debugf("ignoring stale reconnect of task %s", e.taskID)
		return
	}
	s.reconnectTimer = nil
	s.notice = nil

	s.openStream()
	s.agg.AddLog(fmt.Sprintf("reconnected (connection %d)", s.epoch), model.SeverityInfo)
	s.notify()
}

func (s *Session) cancelTask() error {
	switch s.state {
	case model.TaskStateCancelled:
		return nil
	case model.TaskStateSubmitting, model.TaskStateStreaming:
	default:
		return fmt.Errorf("can't cancel a %s task: %w", s.state, ErrInvalidState)
	}

	taskID := s.taskID
	s.agg.AddLog("translation cancelled", model.SeverityInfo)
	s.finish(model.TaskStateCancelled, cancelledNotice())

	// The cancel request outlives the session, Close waits for it.
	s.cancels.Add(1)
	go func() {
		defer s.cancels.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.cancelTimeout)
		defer cancel()
		err := s.backend.Cancel(ctx, taskID)
		s.post(cancelDoneEvent{taskID: taskID, err: err})
	}()

	return nil
}

func (s *Session) handleCancelDone(e cancelDoneEvent) {
	if e.taskID != s.taskID {
		return
	}

	if e.err == nil {
		s.logger.Infof("task %s cancelled on the server", e.taskID)
		return
	}

	s.logger.Warningf("task %s cancel request failed: %v", e.taskID, e.err)
	s.agg.AddLog(fmt.Sprintf("cancel request failed: %v", e.err), model.SeverityError)
	s.notice = &model.Notice{
		Code:     model.NoticeCancelFailed,
		Severity: model.SeverityError,
		Text:     "cancel request failed",
	}
	s.notify()
}

func (s *Session) reset() error {
	if s.state.IsActive() && !s.detached {
		return fmt.Errorf("can't reset a %s task: %w", s.state, ErrInvalidState)
	}

	s.teardown()
	s.resolveWaiters(model.TaskView{}, fmt.Errorf("task reset: %w", ErrInvalidState))
	s.clear()
	s.notify()

	return nil
}

func (s *Session) addWaiter(reply chan waitResult) {
	switch {
	case s.taskID == "":
		reply <- waitResult{err: fmt.Errorf("no task: %w", ErrInvalidState)}
	case s.state.IsTerminal():
		reply <- waitResult{view: s.view()}
	case s.detached:
		reply <- waitResult{view: s.view(), err: ErrStreamEnded}
	default:
		s.waiters = append(s.waiters, reply)
	}
}

func (s *Session) resolveWaiters(v model.TaskView, err error) {
	for _, w := range s.waiters {
		w <- waitResult{view: v, err: err}
	}
	s.waiters = nil
}

func (s *Session) fail(msg string) {
	s.errMsg = msg
	s.agg.AddLog(msg, model.SeverityError)
	s.finish(model.TaskStateFailed, failedNotice(msg))
}

// finish moves the task to a terminal state, the epoch is frozen from now on.
func (s *Session) finish(state model.TaskState, notice *model.Notice) {
	s.teardown()
	s.state = state
	s.notice = notice
	s.logger.Infof("task %s %s", s.taskID, state)

	s.notify()
	s.resolveWaiters(s.view(), nil)
}

// teardown stops everything running for the current task.
func (s *Session) teardown() {
	if s.submitCancel != nil {
		s.submitCancel()
		s.submitCancel = nil
	}
	s.stopReconnectTimer()
	s.closeStream()
}

func (s *Session) clear() {
	s.taskID = ""
	s.state = model.TaskStateIdle
	s.epoch = 0
	s.parseFailures = 0
	s.notice = nil
	s.outputFile = ""
	s.errMsg = ""
	s.detached = false
	s.agg.Reset()
}

func (s *Session) shutdown() {
	s.teardown()
	s.resolveWaiters(s.view(), ErrSessionClosed)
	s.clear()
	s.cancel()
}

func (s *Session) closeStream() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		s.logger.Warningf("could not close stream of task %s: %v", s.taskID, err)
	}
	s.stream = nil
}

func (s *Session) stopReconnectTimer() {
	if s.reconnectTimer == nil {
		return
	}
	s.reconnectTimer.Stop()
	s.reconnectTimer = nil
}

func (s *Session) notify() {
	s.observer.OnView(s.view())
}

func (s *Session) view() model.TaskView {
	v := model.TaskView{
		TaskID:     s.taskID,
		State:      s.state,
		Epoch:      s.epoch,
		Progress:   s.agg.Snapshot(),
		ActivePair: s.agg.ActivePair(),
		Log:        s.agg.Log(),
		OutputFile: s.outputFile,
		Error:      s.errMsg,
		Detached:   s.detached,
	}
	if s.notice != nil {
		n := *s.notice
		v.Notice = &n
	}
	return v
}

func cancelledNotice() *model.Notice {
	return &model.Notice{
		Code:     model.NoticeCancelled,
		Severity: model.SeverityInfo,
		Text:     "translation cancelled",
	}
}

func failedNotice(msg string) *model.Notice {
	return &model.Notice{
		Code:     model.NoticeFailed,
		Severity: model.SeverityError,
		Text:     msg,
	}
}
