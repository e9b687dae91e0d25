// Package jobapi is the HTTP client of the translation server endpoints.
package jobapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/slok/doctrans/internal/log"
	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/sse"
)

// API is the translation server API.
type API interface {
	Analyze(ctx context.Context, filePath string) (*model.Analysis, error)
	Submit(ctx context.Context, taskID string, job model.TranslationJob) error
	Cancel(ctx context.Context, taskID string) error
	Download(ctx context.Context, fileName string, w io.Writer) (int64, error)
	OpenStream(ctx context.Context, taskID string, h sse.Handler) io.Closer
}

// ClientConfig is the configuration of the HTTP client.
type ClientConfig struct {
	ServerURL      string
	RequestTimeout time.Duration
	// RetryCount is the number of retries of idempotent requests on network and server errors.
	RetryCount        int
	StreamDialRetries uint64
	StreamDialBackoff time.Duration
	Logger            log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL scheme must be http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL must have a host")
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}

	if c.RetryCount < 0 {
		c.RetryCount = 0
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "jobapi.Client"})

	return nil
}

// Client is the translation server API over HTTP.
type Client struct {
	baseURL string
	rc      *resty.Client
	dialer  *sse.Dialer
	logger  log.Logger
}

var _ API = &Client{}

// NewClient returns a new HTTP client of the translation server.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rc := resty.New().
		SetBaseURL(cfg.ServerURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetLogger(restyLogger{logger: cfg.Logger})
	rc.AddRetryCondition(retryCondition)

	// Streams are long lived, they share the transport but never time out.
	streamClient := *rc.GetClient()
	streamClient.Timeout = 0

	dialer, err := sse.NewDialer(sse.DialerConfig{
		HTTPClient:     &streamClient,
		MaxDialRetries: cfg.StreamDialRetries,
		DialBackoff:    cfg.StreamDialBackoff,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create stream dialer: %w", err)
	}

	return &Client{
		baseURL: cfg.ServerURL,
		rc:      rc,
		dialer:  dialer,
		logger:  cfg.Logger,
	}, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type analysisResponse struct {
	TotalPages           int     `json:"total_pages"`
	CharCount            int     `json:"char_count"`
	LangCode             string  `json:"lang_code"`
	LangName             string  `json:"lang_name"`
	EstimatedTime        string  `json:"estimated_time"`
	EstimatedTimeMinutes float64 `json:"estimated_time_minutes"`
}

type submitResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

// Analyze uploads a document to get its analysis.
func (c *Client) Analyze(ctx context.Context, filePath string) (*model.Analysis, error) {
	var (
		res    analysisResponse
		apiErr errorResponse
	)
	resp, err := c.rc.R().
		SetContext(ctx).
		SetFile("file", filePath).
		SetResult(&res).
		SetError(&apiErr).
		Post("/analyze")
	if err != nil {
		return nil, fmt.Errorf("could not analyze document: %w", err)
	}
	if resp.IsError() {
		return nil, serverError(resp, apiErr)
	}

	return &model.Analysis{
		TotalPages:           res.TotalPages,
		CharCount:            res.CharCount,
		LangCode:             res.LangCode,
		LangName:             res.LangName,
		EstimatedTime:        res.EstimatedTime,
		EstimatedTimeMinutes: res.EstimatedTimeMinutes,
	}, nil
}

// Submit submits a translation job identified by taskID, the server starts
// publishing its progress on the task stream.
func (c *Client) Submit(ctx context.Context, taskID string, job model.TranslationJob) error {
	path := "/translate"
	if job.Mode == model.TranslationModeText {
		path = "/translate_text"
	}

	var (
		res    submitResponse
		apiErr errorResponse
	)
	resp, err := c.rc.R().
		SetContext(ctx).
		SetFile("file", job.FilePath).
		SetFormData(map[string]string{
			"api_type":    job.APIType,
			"api_key":     job.APIKey,
			"source_lang": job.SourceLang,
			"target_lang": job.TargetLang,
			"task_id":     taskID,
			"concurrency": strconv.Itoa(job.Concurrency),
		}).
		SetResult(&res).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("could not submit translation: %w", err)
	}
	if resp.IsError() {
		return serverError(resp, apiErr)
	}
	if res.Status != "processing" {
		return &model.ServerError{StatusCode: resp.StatusCode(), Message: fmt.Sprintf("unexpected submission status %q", res.Status)}
	}

	c.logger.Debugf("task %s submitted to %s", taskID, path)
	return nil
}

// Cancel asks the server to stop a task.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	var apiErr errorResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetPathParam("taskID", taskID).
		SetError(&apiErr).
		Post("/cancel/{taskID}")
	if err != nil {
		return fmt.Errorf("could not cancel task: %w", err)
	}
	if resp.IsError() {
		serr := serverError(resp, apiErr)
		if resp.StatusCode() == http.StatusNotFound {
			return fmt.Errorf("task %s: %w: %w", taskID, model.ErrNotFound, serr)
		}
		return serr
	}

	return nil
}

// Download writes the content of a translated file to w.
func (c *Client) Download(ctx context.Context, fileName string, w io.Writer) (int64, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "*/*").
		SetPathParam("fileName", fileName).
		Get("/download/{fileName}")
	if err != nil {
		return 0, fmt.Errorf("could not download file: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(body, 4<<10))
		serr := &model.ServerError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(string(msg))}
		if resp.StatusCode() == http.StatusNotFound {
			return 0, fmt.Errorf("file %s: %w: %w", fileName, model.ErrNotFound, serr)
		}
		return 0, serr
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("could not read downloaded file: %w", err)
	}

	return n, nil
}

// OpenStream starts following the progress stream of a task.
func (c *Client) OpenStream(ctx context.Context, taskID string, h sse.Handler) io.Closer {
	return c.dialer.Open(ctx, c.baseURL+"/progress/"+url.PathEscape(taskID), h)
}

func serverError(resp *resty.Response, apiErr errorResponse) error {
	msg := apiErr.Error
	if msg == "" {
		msg = apiErr.Message
	}
	return &model.ServerError{StatusCode: resp.StatusCode(), Message: msg}
}

// retryCondition retries idempotent requests on network and server errors,
// submissions and cancels are never repeated.
func retryCondition(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

// restyLogger adapts our logger to resty.
type restyLogger struct {
	logger log.Logger
}

func (l restyLogger) Errorf(format string, v ...any) { l.logger.Errorf(format, v...) }
func (l restyLogger) Warnf(format string, v ...any)  { l.logger.Warningf(format, v...) }
func (l restyLogger) Debugf(format string, v ...any) { l.logger.Debugf(format, v...) }
