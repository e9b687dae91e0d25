// Package fake is an in-process translation server that simulates translation
// tasks. It serves the same endpoints and payloads as the real server.
package fake

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slok/doctrans/internal/log"
)

// ServerConfig is the configuration of the fake server.
type ServerConfig struct {
	// Segments is the number of text blocks every task translates.
	Segments int
	// StepDelay is the simulated translation time of a block.
	StepDelay         time.Duration
	HeartbeatInterval time.Duration
	// DropStreamAfter makes the server cut every task stream once, abruptly,
	// after sending this number of frames. Zero disables it.
	DropStreamAfter int
	// SubmitError makes every submission fail with this message.
	SubmitError string
	// TaskError makes every task fail with this message after the first block.
	TaskError string
	Logger    log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.Segments <= 0 {
		c.Segments = 5
	}

	if c.StepDelay <= 0 {
		c.StepDelay = 50 * time.Millisecond
	}

	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}

	if c.DropStreamAfter < 0 {
		return fmt.Errorf("drop stream after can't be negative")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "fake.Server"})

	return nil
}

type task struct {
	id        string
	frames    chan string
	cancel    chan struct{}
	cancelled sync.Once
	dropped   bool
}

// Server is a fake translation server.
type Server struct {
	cfg ServerConfig

	mu     sync.Mutex
	tasks  map[string]*task
	files  map[string][]byte
	closed chan struct{}
	wg     sync.WaitGroup
}

// NewServer returns a new fake server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Server{
		cfg:    cfg,
		tasks:  map[string]*task{},
		files:  map[string][]byte{},
		closed: make(chan struct{}),
	}, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/analyze", s.handleAnalyze)
	r.Post("/translate", s.handleTranslate(false))
	r.Post("/translate_text", s.handleTranslate(true))
	r.Post("/cancel/{taskID}", s.handleCancel)
	r.Get("/progress/{taskID}", s.handleProgress)
	r.Get("/download/{fileName}", s.handleDownload)

	return r
}

// Close stops the running tasks and waits for them.
func (s *Server) Close() {
	s.mu.Lock()
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// File returns the content of a translated file.
func (s *Server) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[name]
	return b, ok
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	name, content, ok := readPDF(w, r)
	if !ok {
		return
	}

	pages := 1 + len(content)/3000
	minutes := math.Max(1, float64(pages)/30)
	writeJSON(w, http.StatusOK, map[string]any{
		"total_pages":            pages,
		"char_count":             len(content),
		"lang_code":              "en",
		"lang_name":              "English",
		"estimated_time":         fmt.Sprintf("%d min", int(minutes)),
		"estimated_time_minutes": math.Round(minutes*10) / 10,
	})
	s.cfg.Logger.Debugf("analyzed %s", name)
}

func (s *Server) handleTranslate(textMode bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, _, ok := readPDF(w, r)
		if !ok {
			return
		}

		if s.cfg.SubmitError != "" {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": s.cfg.SubmitError})
			return
		}

		taskID := r.FormValue("task_id")
		if taskID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing task id"})
			return
		}

		t := &task{
			id:     taskID,
			frames: make(chan string, 4*s.cfg.Segments+16),
			cancel: make(chan struct{}),
		}

		s.mu.Lock()
		if _, ok := s.tasks[taskID]; ok {
			s.mu.Unlock()
			writeJSON(w, http.StatusConflict, map[string]string{"error": "task already exists"})
			return
		}
		s.tasks[taskID] = t
		s.mu.Unlock()

		output := "translated_" + name
		if textMode {
			output = "translated_" + strings.TrimSuffix(name, filepath.Ext(name)) + ".txt"
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(t, output)
		}()

		writeJSON(w, http.StatusOK, map[string]string{"status": "processing", "task_id": taskID})
	}
}

// run simulates the translation of a task publishing its progress.
func (s *Server) run(t *task, output string) {
	total := s.cfg.Segments
	start := time.Now()
	var inTokens, outTokens int64

	emit := func(v any) {
		b, _ := json.Marshal(v)
		t.frames <- "data: " + string(b) + "\n\n"
	}
	wait := func() bool {
		select {
		case <-time.After(s.cfg.StepDelay):
			return true
		case <-t.cancel:
		case <-s.closed:
		}
		return false
	}
	cost := func() float64 { return float64(inTokens)*0.14/1e6 + float64(outTokens)*0.28/1e6 }

	emit(map[string]any{"current": 0, "total": total, "percentage": 0, "message": "extracting text blocks"})

	for i := 1; i <= total; i++ {
		source := fmt.Sprintf("block %d", i)
		emit(map[string]any{"type": "log", "log_type": "info", "message": fmt.Sprintf("[SOURCE %d/%d] %s", i, total, source)})

		if !wait() {
			emit(map[string]any{"status": "cancelled", "message": "translation cancelled"})
			return
		}

		if s.cfg.TaskError != "" {
			emit(map[string]any{"status": "error", "error": s.cfg.TaskError})
			return
		}

		inTokens += 100
		outTokens += 120
		elapsed := time.Since(start).Seconds()
		remaining := elapsed / float64(i) * float64(total-i)
		emit(map[string]any{"type": "log", "log_type": "success", "message": fmt.Sprintf("[TARGET %d/%d] translated %s (time: %.2fs)", i, total, source, s.cfg.StepDelay.Seconds())})
		emit(map[string]any{
			"current":             i,
			"total":               total,
			"percentage":          int(float64(i) / float64(total) * 100),
			"message":             fmt.Sprintf("translated %d/%d text blocks", i, total),
			"elapsed_time":        elapsed,
			"estimated_remaining": remaining,
			"input_tokens":        inTokens,
			"output_tokens":       outTokens,
			"estimated_cost":      cost(),
		})
	}

	s.mu.Lock()
	s.files[output] = []byte("translated content of " + t.id)
	s.mu.Unlock()

	emit(map[string]any{
		"status":         "completed",
		"output_file":    output,
		"input_tokens":   inTokens,
		"output_tokens":  outTokens,
		"estimated_cost": cost(),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	s.mu.Lock()
	t, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Task not found"})
		return
	}

	t.cancelled.Do(func() { close(t.cancel) })
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling", "message": "cancelling translation..."})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	s.mu.Lock()
	t, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		fmt.Fprint(w, "data: {\"error\": \"Invalid task ID\"}\n\n")
		flush()
		return
	}

	// Tell the client the stream is alive before the first update.
	fmt.Fprint(w, ": heartbeat\n\n")
	flush()

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	sent := 0
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closed:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flush()
		case frame := <-t.frames:
			fmt.Fprint(w, frame)
			flush()
			sent++

			if isTerminalFrame(frame) {
				s.mu.Lock()
				delete(s.tasks, taskID)
				s.mu.Unlock()
				return
			}

			if s.shouldDrop(t, sent) {
				s.cfg.Logger.Debugf("dropping stream of task %s after %d frames", taskID, sent)
				panic(http.ErrAbortHandler)
			}
		}
	}
}

func (s *Server) shouldDrop(t *task, sent int) bool {
	if s.cfg.DropStreamAfter == 0 || sent < s.cfg.DropStreamAfter {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.dropped {
		return false
	}
	t.dropped = true
	return true
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "fileName")

	b, ok := s.File(name)
	if !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	contentType := "application/pdf"
	if strings.HasSuffix(name, ".txt") {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(b)
}

func isTerminalFrame(frame string) bool {
	for _, st := range []string{`"status":"completed"`, `"status":"cancelled"`, `"status":"error"`} {
		if strings.Contains(frame, st) {
			return true
		}
	}
	return false
}

func readPDF(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file uploaded"})
		return "", nil, false
	}
	defer f.Close()

	if !strings.EqualFold(filepath.Ext(hdr.Filename), ".pdf") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only PDF files are supported"})
		return "", nil, false
	}

	content, err := io.ReadAll(f)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return "", nil, false
	}

	return filepath.Base(hdr.Filename), content, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
