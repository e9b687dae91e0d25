package session_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/reconnect"
	"github.com/slok/doctrans/internal/session"
	"github.com/slok/doctrans/internal/sse"
)

type fakeStream struct {
	taskID string
	h      sse.Handler
	closed atomic.Bool
}

func (f *fakeStream) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeStream) send(data string) { f.h.OnEvent(sse.Event{Data: data}) }

func (f *fakeStream) heartbeat() { f.h.OnEvent(sse.Event{Comment: true, Data: ": heartbeat"}) }

func (f *fakeStream) drop(kind sse.CloseKind) {
	f.h.OnClose(sse.Close{Kind: kind, Err: fmt.Errorf("%s close", kind)})
}

type fakeBackend struct {
	submitErr error
	cancelErr error
	cancels   chan string
	streams   chan *fakeStream
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		cancels: make(chan string, 16),
		streams: make(chan *fakeStream, 16),
	}
}

func (b *fakeBackend) Submit(ctx context.Context, taskID string, job model.TranslationJob) error {
	return b.submitErr
}

func (b *fakeBackend) Cancel(ctx context.Context, taskID string) error {
	b.cancels <- taskID
	return b.cancelErr
}

func (b *fakeBackend) OpenStream(ctx context.Context, taskID string, h sse.Handler) io.Closer {
	s := &fakeStream{taskID: taskID, h: h}
	b.streams <- s
	return s
}

func (b *fakeBackend) nextStream(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-b.streams:
		return s
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no stream was opened")
		return nil
	}
}

func (b *fakeBackend) assertNoStream(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case s := <-b.streams:
		assert.Failf(t, "unexpected stream", "stream opened for task %s", s.taskID)
	case <-time.After(wait):
	}
}

func validJob() model.TranslationJob {
	return model.TranslationJob{
		Mode:        model.TranslationModeDocument,
		FilePath:    "/tmp/paper.pdf",
		APIType:     "google",
		SourceLang:  "auto",
		TargetLang:  "zh",
		Concurrency: 4,
	}
}

func newTestSession(t *testing.T, cfg session.Config) *session.Session {
	t.Helper()

	if cfg.Policy == nil {
		p, err := reconnect.NewPolicy(reconnect.PolicyConfig{Delay: 10 * time.Millisecond})
		require.NoError(t, err)
		cfg.Policy = p
	}

	s, err := session.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func view(t *testing.T, s *session.Session) model.TaskView {
	t.Helper()
	v, err := s.View(context.Background())
	require.NoError(t, err)
	return v
}

// startStreaming submits a task and returns its first stream.
func startStreaming(t *testing.T, s *session.Session, b *fakeBackend) (string, *fakeStream) {
	t.Helper()
	id, err := s.Submit(context.Background(), validJob())
	require.NoError(t, err)
	st := b.nextStream(t)
	require.Equal(t, id, st.taskID)
	return id, st
}

func logTexts(v model.TaskView) []string {
	var texts []string
	for _, e := range v.Log {
		texts = append(texts, e.Text)
	}
	return texts
}

func TestNew(t *testing.T) {
	_, err := session.New(session.Config{})
	assert.Error(t, err)

	s, err := session.New(session.Config{Backend: newFakeBackend()})
	require.NoError(t, err)
	defer s.Close()

	v := view(t, s)
	assert.Equal(t, model.TaskStateIdle, v.State)
	assert.Empty(t, v.TaskID)
}

func TestSessionEndToEndWithReconnect(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b})

	id, st1 := startStreaming(t, s, b)
	assert.Regexp(`^task_[0-9A-Z]{26}$`, id)

	st1.send(`{"current": 1, "total": 10, "percentage": 10, "message": "translating", "input_tokens": 10, "output_tokens": 8}`)
	v := view(t, s)
	assert.Equal(model.TaskStateStreaming, v.State)
	assert.Equal(1, v.Epoch)
	assert.Equal(10.0, v.Progress.Percentage)

	// Abnormal drop, a single reconnect opens the stream at epoch 2.
	st1.drop(sse.CloseAbnormal)
	st2 := b.nextStream(t)
	assert.Equal(id, st2.taskID)
	v = view(t, s)
	assert.Equal(2, v.Epoch)

	// A late duplicate of the old connection is dropped.
	st1.send(`{"current": 5, "total": 10, "percentage": 50}`)
	v = view(t, s)
	assert.Equal(10.0, v.Progress.Percentage)

	st2.send(`{"current": 1, "total": 10, "percentage": 10}`)
	st2.send(`{"status": "completed", "output_file": "translated_paper.pdf", "input_tokens": 120, "output_tokens": 95, "estimated_cost": 0.01}`)

	final, err := s.Wait(ctx)
	require.NoError(err)
	assert.Equal(model.TaskStateCompleted, final.State)
	assert.Equal(100.0, final.Progress.Percentage)
	assert.Equal(int64(120), final.Progress.InputTokens)
	assert.Equal(int64(95), final.Progress.OutputTokens)
	assert.Equal(0.01, final.Progress.EstimatedCost)
	assert.Equal("translated_paper.pdf", final.OutputFile)
	assert.Equal(2, final.Epoch)
	require.NotNil(final.Notice)
	assert.Equal(model.NoticeCompleted, final.Notice.Code)
	assert.Contains(logTexts(final), "connection lost, reconnecting in 10ms")
	assert.True(st2.closed.Load())

	b.assertNoStream(t, 50*time.Millisecond)
}

func TestSessionSubmitFailure(t *testing.T) {
	tests := map[string]struct {
		submitErr error
		expError  string
	}{
		"A server error should use the server message.": {
			submitErr: &model.ServerError{StatusCode: 500, Message: "quota exceeded"},
			expError:  "quota exceeded",
		},
		"A server error without message should use the fallback.": {
			submitErr: &model.ServerError{StatusCode: 502},
			expError:  "translation failed",
		},
		"A transport error should use the fallback.": {
			submitErr: errors.New("connection refused"),
			expError:  "translation failed",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			b := newFakeBackend()
			b.submitErr = test.submitErr
			s := newTestSession(t, session.Config{Backend: b})

			_, err := s.Submit(context.Background(), validJob())
			require.NoError(t, err)

			v, err := s.Wait(context.Background())
			require.NoError(t, err)
			assert.Equal(t, model.TaskStateFailed, v.State)
			assert.Equal(t, test.expError, v.Error)
			require.NotNil(t, v.Notice)
			assert.Equal(t, model.NoticeFailed, v.Notice.Code)
			b.assertNoStream(t, 20*time.Millisecond)
		})
	}
}

func TestSessionSubmitInvalidJob(t *testing.T) {
	s := newTestSession(t, session.Config{Backend: newFakeBackend()})

	job := validJob()
	job.FilePath = "/tmp/paper.docx"
	_, err := s.Submit(context.Background(), job)
	assert.ErrorIs(t, err, model.ErrNotValid)
	assert.Equal(t, model.TaskStateIdle, view(t, s).State)
}

func TestSessionTerminalMessages(t *testing.T) {
	tests := map[string]struct {
		data      string
		expState  model.TaskState
		expNotice model.NoticeCode
		expError  string
	}{
		"A completed message should complete the task.": {
			data:      `{"status": "completed", "output_file": "out.pdf"}`,
			expState:  model.TaskStateCompleted,
			expNotice: model.NoticeCompleted,
		},
		"A cancelled message should cancel the task.": {
			data:      `{"status": "cancelled", "message": "cancelled"}`,
			expState:  model.TaskStateCancelled,
			expNotice: model.NoticeCancelled,
		},
		"An error message should fail the task.": {
			data:      `{"status": "error", "error": "provider unavailable"}`,
			expState:  model.TaskStateFailed,
			expNotice: model.NoticeFailed,
			expError:  "provider unavailable",
		},
		"An unknown task error should fail the task.": {
			data:      `{"error": "Invalid task ID"}`,
			expState:  model.TaskStateFailed,
			expNotice: model.NoticeFailed,
			expError:  "Invalid task ID",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			b := newFakeBackend()
			s := newTestSession(t, session.Config{Backend: b})
			_, st := startStreaming(t, s, b)

			st.send(test.data)
			v, err := s.Wait(context.Background())
			require.NoError(t, err)
			assert.Equal(t, test.expState, v.State)
			assert.Equal(t, test.expError, v.Error)
			require.NotNil(t, v.Notice)
			assert.Equal(t, test.expNotice, v.Notice.Code)
			assert.True(t, st.closed.Load())
		})
	}
}

func TestSessionTerminalTransitionIsIdempotent(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b})
	_, st := startStreaming(t, s, b)

	st.send(`{"status": "completed", "output_file": "out.pdf", "input_tokens": 5}`)
	first := view(t, s)
	require.Equal(t, model.TaskStateCompleted, first.State)

	// Anything after the terminal message is ignored.
	st.send(`{"status": "completed", "output_file": "other.pdf", "input_tokens": 50}`)
	st.send(`{"status": "error", "error": "late"}`)
	st.send(`{"current": 1, "total": 2, "percentage": 50}`)
	st.drop(sse.CloseAbnormal)

	err := s.Cancel(context.Background())
	assert.ErrorIs(t, err, session.ErrInvalidState)

	assert.Equal(t, first, view(t, s))
	b.assertNoStream(t, 50*time.Millisecond)
}

func TestSessionCancel(t *testing.T) {
	tests := map[string]struct {
		cancelErr error
		expNotice model.NoticeCode
	}{
		"A cancel should cancel locally and on the server.": {
			expNotice: model.NoticeCancelled,
		},
		"A failing cancel request should notify but keep the task cancelled.": {
			cancelErr: errors.New("server unreachable"),
			expNotice: model.NoticeCancelFailed,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)
			ctx := context.Background()

			b := newFakeBackend()
			b.cancelErr = test.cancelErr
			s := newTestSession(t, session.Config{Backend: b})
			id, st := startStreaming(t, s, b)

			require.NoError(s.Cancel(ctx))

			// Optimistic, the state changes before the server answers.
			v := view(t, s)
			assert.Equal(model.TaskStateCancelled, v.State)
			assert.True(st.closed.Load())

			select {
			case got := <-b.cancels:
				assert.Equal(id, got)
			case <-time.After(2 * time.Second):
				require.FailNow("cancel request was not sent")
			}

			require.Eventually(func() bool {
				v := view(t, s)
				return v.Notice != nil && v.Notice.Code == test.expNotice
			}, 2*time.Second, 5*time.Millisecond)

			// A later confirmation and a second cancel are no-ops.
			st.send(`{"status": "cancelled", "message": "cancelled"}`)
			require.NoError(s.Cancel(ctx))
			v = view(t, s)
			assert.Equal(model.TaskStateCancelled, v.State)
			assert.Equal(test.expNotice, v.Notice.Code)
			select {
			case <-b.cancels:
				assert.Fail("cancel request sent twice")
			default:
			}
		})
	}
}

func TestSessionCancelWithoutTask(t *testing.T) {
	s := newTestSession(t, session.Config{Backend: newFakeBackend()})

	err := s.Cancel(context.Background())
	assert.ErrorIs(t, err, session.ErrInvalidState)
}

func TestSessionReconnectAfterResubmissionDoesNothing(t *testing.T) {
	p, err := reconnect.NewPolicy(reconnect.PolicyConfig{Delay: 50 * time.Millisecond})
	require.NoError(t, err)

	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b, Policy: p})
	oldID, oldSt := startStreaming(t, s, b)

	oldSt.drop(sse.CloseAbnormal)
	newID, newSt := startStreaming(t, s, b)
	require.NotEqual(t, oldID, newID)

	// The reconnect of the old task would have been due by now.
	b.assertNoStream(t, 150*time.Millisecond)

	newSt.send(`{"current": 1, "total": 4, "percentage": 25}`)
	v := view(t, s)
	assert.Equal(t, newID, v.TaskID)
	assert.Equal(t, 1, v.Epoch)
	assert.Equal(t, 25.0, v.Progress.Percentage)
}

func TestSessionResubmitTearsDownOldTask(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b})
	_, oldSt := startStreaming(t, s, b)
	oldSt.send(`{"current": 3, "total": 4, "percentage": 75}`)

	waitRes := make(chan error, 1)
	go func() {
		_, err := s.Wait(context.Background())
		waitRes <- err
	}()
	// Let the waiter register on the old task.
	time.Sleep(50 * time.Millisecond)

	newID, _ := startStreaming(t, s, b)
	assert.True(t, oldSt.closed.Load())

	// Late events of the replaced task never reach the new one.
	oldSt.send(`{"status": "completed", "output_file": "old.pdf"}`)
	v := view(t, s)
	assert.Equal(t, newID, v.TaskID)
	assert.Equal(t, model.TaskStateStreaming, v.State)
	assert.Equal(t, 0.0, v.Progress.Percentage)

	select {
	case err := <-waitRes:
		assert.ErrorIs(t, err, session.ErrInvalidState)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "waiter of the replaced task was not released")
	}
}

func TestSessionParseFailureTolerance(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b, ParseFailureTolerance: 3})
	_, st := startStreaming(t, s, b)

	for range 3 {
		st.send(`not json`)
	}
	assert.Equal(t, model.TaskStateStreaming, view(t, s).State)

	// A valid message resets the counter.
	st.send(`{"type": "log", "message": "still alive"}`)
	for range 3 {
		st.send(`{"unknown": true}`)
	}
	assert.Equal(t, model.TaskStateStreaming, view(t, s).State)

	st.send(`{`)
	v := view(t, s)
	assert.Equal(t, model.TaskStateFailed, v.State)
	assert.Contains(t, v.Error, "malformed")
}

func TestSessionParseFailureToleranceDisabled(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b, ParseFailureTolerance: -1})
	_, st := startStreaming(t, s, b)

	for range 200 {
		st.send(`garbage`)
	}
	assert.Equal(t, model.TaskStateStreaming, view(t, s).State)
}

func TestSessionHeartbeatIsNoop(t *testing.T) {
	var calls atomic.Int32
	b := newFakeBackend()
	s := newTestSession(t, session.Config{
		Backend:  b,
		Observer: session.ObserverFunc(func(model.TaskView) { calls.Add(1) }),
	})
	_, st := startStreaming(t, s, b)
	st.send(`{"current": 2, "total": 4, "percentage": 50}`)

	before := view(t, s)
	beforeCalls := calls.Load()
	st.heartbeat()
	st.send(": keep-alive")

	assert.Equal(t, before, view(t, s))
	assert.Equal(t, beforeCalls, calls.Load())
}

func TestSessionGracefulCloseDetaches(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b})
	_, st := startStreaming(t, s, b)

	err := s.Reset(ctx)
	assert.ErrorIs(err, session.ErrInvalidState)

	st.drop(sse.CloseGraceful)
	v, err := s.Wait(ctx)
	assert.ErrorIs(err, session.ErrStreamEnded)
	assert.True(v.Detached)
	assert.Equal(model.TaskStateStreaming, v.State)
	require.NotNil(v.Notice)
	assert.Equal(model.NoticeStreamEnded, v.Notice.Code)
	b.assertNoStream(t, 50*time.Millisecond)

	require.NoError(s.Reset(ctx))
	v = view(t, s)
	assert.Equal(model.TaskStateIdle, v.State)
	assert.False(v.Detached)
	assert.Empty(v.Log)
}

func TestSessionRejectedStreamFails(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b})
	_, st := startStreaming(t, s, b)

	st.drop(sse.CloseRejected)
	v, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateFailed, v.State)
	assert.Contains(t, v.Error, "progress stream rejected")
	b.assertNoStream(t, 50*time.Millisecond)
}

func TestSessionResetAfterCompletion(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b})
	_, st := startStreaming(t, s, b)
	st.send(`{"status": "completed", "output_file": "out.pdf"}`)
	_, err := s.Wait(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, model.TaskView{State: model.TaskStateIdle, Log: []model.LogEntry{}}, view(t, s))

	_, err = s.Wait(ctx)
	assert.ErrorIs(t, err, session.ErrInvalidState)
}

func TestSessionObserverSeesLifecycle(t *testing.T) {
	var (
		mu     sync.Mutex
		states []model.TaskState
	)
	obs := session.ObserverFunc(func(v model.TaskView) {
		mu.Lock()
		defer mu.Unlock()
		if len(states) == 0 || states[len(states)-1] != v.State {
			states = append(states, v.State)
		}
	})

	b := newFakeBackend()
	s := newTestSession(t, session.Config{Backend: b, Observer: obs})
	_, st := startStreaming(t, s, b)
	st.send(`{"type": "log", "message": "[SOURCE 1/2] Hello"}`)
	st.send(`{"type": "log", "message": "[TARGET 1/2] Hola (time: 0.5s)", "log_type": "success"}`)
	st.send(`{"status": "completed", "output_file": "out.pdf"}`)

	v, err := s.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, v.ActivePair)
	assert.Equal(t, model.TranslationPair{Ordinal: 1, Total: 2, Source: "Hello", Target: "Hola", TimingSeconds: 0.5, Resolved: true}, *v.ActivePair)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.TaskState{
		model.TaskStateSubmitting,
		model.TaskStateStreaming,
		model.TaskStateCompleted,
	}, states)
}

func TestSessionClose(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	s, err := session.New(session.Config{Backend: b})
	require.NoError(t, err)
	_, st := startStreaming(t, s, b)

	waitRes := make(chan error, 1)
	go func() {
		_, err := s.Wait(ctx)
		waitRes <- err
	}()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, st.closed.Load())

	select {
	case err := <-waitRes:
		assert.ErrorIs(t, err, session.ErrSessionClosed)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "waiter was not released")
	}

	_, err = s.View(ctx)
	assert.ErrorIs(t, err, session.ErrSessionClosed)
	_, err = s.Submit(ctx, validJob())
	assert.ErrorIs(t, err, session.ErrSessionClosed)

	// Callbacks of a closed session don't block.
	st.send(`{"current": 1, "total": 2}`)
}

type slowCancelBackend struct {
	*fakeBackend
	release chan struct{}
	sent    atomic.Bool
}

func (b *slowCancelBackend) Cancel(ctx context.Context, taskID string) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.sent.Store(true)
	return nil
}

func TestSessionCloseWaitsForCancelRequest(t *testing.T) {
	b := &slowCancelBackend{fakeBackend: newFakeBackend(), release: make(chan struct{})}
	s, err := session.New(session.Config{Backend: b})
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), validJob())
	require.NoError(t, err)
	b.nextStream(t)
	require.NoError(t, s.Cancel(context.Background()))

	closed := make(chan struct{})
	go func() {
		_ = s.Close()
		close(closed)
	}()

	select {
	case <-closed:
		require.FailNow(t, "close didn't wait for the cancel request")
	case <-time.After(50 * time.Millisecond):
	}

	close(b.release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "close didn't return")
	}
	assert.True(t, b.sent.Load())
}
