//go:build unix

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/doctrans/cmd/doctrans/commands"
	"github.com/slok/doctrans/internal/jobapi/fake"
)

// notifyBuffer is a concurrency safe buffer that signals when its content contains a text.
type notifyBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	text   string
	found  chan struct{}
	closed bool
}

func newNotifyBuffer(text string) *notifyBuffer {
	return &notifyBuffer{text: text, found: make(chan struct{})}
}

func (b *notifyBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.buf.Write(p)
	if !b.closed && strings.Contains(b.buf.String(), b.text) {
		b.closed = true
		close(b.found)
	}
	return n, err
}

func (b *notifyBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunTranslateInterruptedBySignal(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	fs, err := fake.NewServer(fake.ServerConfig{Segments: 50, StepDelay: 200 * time.Millisecond})
	require.NoError(err)
	srv := httptest.NewServer(fs.Handler())
	t.Cleanup(func() {
		fs.Close()
		srv.Close()
	})

	pdf := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(os.WriteFile(pdf, []byte("%PDF-1.4"), 0o600))

	stdout := newNotifyBuffer(": streaming")
	args := []string{"doctrans", "--no-log", "--server", srv.URL, "--data-dir", t.TempDir(), "translate", "--ui", "plain", pdf}

	errC := make(chan error, 1)
	go func() {
		errC <- Run(context.Background(), args, nil, stdout, &bytes.Buffer{})
	}()

	select {
	case <-stdout.found:
	case <-time.After(10 * time.Second):
		require.FailNow("translation did not start")
	}
	require.NoError(syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case err = <-errC:
	case <-time.After(10 * time.Second):
		require.FailNow("translation was not interrupted")
	}

	require.Error(err)
	assert.ErrorIs(err, commands.ErrTaskNotCompleted)
	assert.Contains(stdout.String(), "cancelled")
}
