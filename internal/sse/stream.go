// Package sse implements the client side of a server-sent events stream:
// frame decoding, dialing with bounded retries and the classification of
// how a stream ended.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/slok/doctrans/internal/log"
)

// CloseKind classifies how a stream ended.
type CloseKind int

const (
	// CloseGraceful is a stream the server ended cleanly or told the client not to follow.
	CloseGraceful CloseKind = iota
	// CloseAbnormal is a stream that dropped or could not be established after retrying.
	CloseAbnormal
	// CloseRejected is a stream the server refused permanently.
	CloseRejected
	// CloseLocal is a stream closed by the client.
	CloseLocal
)

func (k CloseKind) String() string {
	switch k {
	case CloseGraceful:
		return "graceful"
	case CloseAbnormal:
		return "abnormal"
	case CloseRejected:
		return "rejected"
	case CloseLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Close describes the end of a stream.
type Close struct {
	Kind CloseKind
	Err  error
}

var (
	// ErrNotEventStream is returned when the server answers the stream request with another content type.
	ErrNotEventStream = errors.New("response is not an event stream")
	// ErrInvalidRequest is returned when the stream request can't be built.
	ErrInvalidRequest = errors.New("invalid stream request")
)

// StatusError is a stream request answered with an unexpected status code.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream request answered with status %d", e.StatusCode)
}

// Retryable returns true when the status is worth another dial.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Handler receives the stream callbacks. All of them are called from the
// stream goroutine, in order, and OnClose is always the last one.
type Handler struct {
	OnEvent func(Event)
	// OnRetry is called before every dial retry.
	OnRetry func(attempt int, err error)
	OnClose func(Close)
}

// DialerConfig is the configuration of the stream dialer.
type DialerConfig struct {
	// HTTPClient is the client used for the stream requests, it must not have a timeout.
	HTTPClient *http.Client
	// MaxDialRetries is the number of dial retries after the first attempt.
	MaxDialRetries uint64
	DialBackoff    time.Duration
	Logger         log.Logger
}

func (c *DialerConfig) defaults() error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}

	if c.MaxDialRetries == 0 {
		c.MaxDialRetries = 3
	}

	if c.DialBackoff <= 0 {
		c.DialBackoff = 500 * time.Millisecond
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sse.Dialer"})

	return nil
}

// Dialer opens server-sent event streams.
type Dialer struct {
	client      *http.Client
	maxRetries  uint64
	dialBackoff time.Duration
	logger      log.Logger
}

// NewDialer returns a new stream dialer.
func NewDialer(cfg DialerConfig) (*Dialer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Dialer{
		client:      cfg.HTTPClient,
		maxRetries:  cfg.MaxDialRetries,
		dialBackoff: cfg.DialBackoff,
		logger:      cfg.Logger,
	}, nil
}

// Stream is the handle of an open stream.
type Stream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops the stream without waiting for it, OnClose will report a local close.
func (s *Stream) Close() error {
	s.cancel()
	return nil
}

// Done is closed once the stream goroutine has finished.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Open starts following the stream at url in background and returns its handle right away.
func (d *Dialer) Open(ctx context.Context, url string, h Handler) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()

		c := d.follow(ctx, url, h)
		if ctx.Err() != nil {
			c = Close{Kind: CloseLocal, Err: ctx.Err()}
		}
		d.logger.Debugf("stream %s closed (%s): %v", url, c.Kind, c.Err)

		if h.OnClose != nil {
			h.OnClose(c)
		}
	}()

	return s
}

func (d *Dialer) follow(ctx context.Context, url string, h Handler) Close {
	resp, err := d.dial(ctx, url, h)
	if err != nil {
		return classifyDialError(err)
	}
	defer resp.Body.Close()

	dec := NewDecoder(resp.Body)
	for {
		ev, err := dec.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Close{Kind: CloseGraceful}
			}
			return Close{Kind: CloseAbnormal, Err: fmt.Errorf("stream read failed: %w", err)}
		}

		if h.OnEvent != nil {
			h.OnEvent(ev)
		}
	}
}

var errNoContent = errors.New("server has no content for the stream")

func (d *Dialer) dial(ctx context.Context, url string, h Handler) (*http.Response, error) {
	var (
		resp    *http.Response
		attempt int
		lastErr error
	)

	backoff := retry.WithMaxRetries(d.maxRetries, retry.NewConstant(d.dialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			d.logger.Debugf("retrying stream dial (attempt %d): %v", attempt, lastErr)
			if h.OnRetry != nil {
				h.OnRetry(attempt, lastErr)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")

		r, err := d.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("could not connect to stream: %w", err)
			return retry.RetryableError(lastErr)
		}

		switch {
		case r.StatusCode == http.StatusOK:
			mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if mediaType != "text/event-stream" {
				drain(r)
				return ErrNotEventStream
			}
			resp = r
			return nil
		case r.StatusCode == http.StatusNoContent:
			drain(r)
			return errNoContent
		default:
			drain(r)
			serr := &StatusError{StatusCode: r.StatusCode}
			if serr.Retryable() {
				lastErr = serr
				return retry.RetryableError(serr)
			}
			return serr
		}
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func classifyDialError(err error) Close {
	var serr *StatusError
	switch {
	case errors.Is(err, errNoContent), errors.Is(err, ErrNotEventStream):
		return Close{Kind: CloseGraceful, Err: err}
	case errors.Is(err, ErrInvalidRequest):
		return Close{Kind: CloseRejected, Err: err}
	case errors.As(err, &serr) && !serr.Retryable():
		return Close{Kind: CloseRejected, Err: err}
	default:
		return Close{Kind: CloseAbnormal, Err: err}
	}
}

func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 64<<10))
	_ = r.Body.Close()
}
