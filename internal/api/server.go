// Package api implements the REST surface: scene detection, summary
// generation, evaluation and prompt optimization, synchronously or as
// tracked async tasks. Every response uses one envelope shape with
// code 0 meaning success.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/wrenware/scribe/internal/buildinfo"
	"github.com/wrenware/scribe/internal/cmdlog"
	"github.com/wrenware/scribe/internal/llm"
	"github.com/wrenware/scribe/internal/promptstore"
	"github.com/wrenware/scribe/internal/storage"
	"github.com/wrenware/scribe/internal/task"
)

// Envelope is the uniform response shape. Code 0 is success; failures
// mirror the HTTP status in Code and carry the message in Error.
type Envelope struct {
	Code     int    `json:"code"`
	Msg      string `json:"msg"`
	TaskID   string `json:"taskId,omitempty"`
	Status   string `json:"status,omitempty"`
	Progress int    `json:"progress"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Server is the HTTP API server.
type Server struct {
	address      string
	port         int
	svc          llm.Service
	defaultModel string
	logs         *cmdlog.Store
	prompts      *promptstore.Store
	tasks        *task.Registry
	files        *storage.Store
	dashboard    http.Handler
	logger       *slog.Logger
	server       *http.Server
	nowFunc      func() time.Time // injectable for testing; defaults to time.Now
}

// Config carries the server's collaborators.
type Config struct {
	Address      string
	Port         int
	Service      llm.Service
	DefaultModel string
	Logs         *cmdlog.Store
	Prompts      *promptstore.Store
	Tasks        *task.Registry
	Files        *storage.Store
	Logger       *slog.Logger
}

// NewServer creates an API server. All collaborators are required
// except the dashboard, which is attached separately.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:      cfg.Address,
		port:         cfg.Port,
		svc:          cfg.Service,
		defaultModel: cfg.DefaultModel,
		logs:         cfg.Logs,
		prompts:      cfg.Prompts,
		tasks:        cfg.Tasks,
		files:        cfg.Files,
		logger:       logger,
		nowFunc:      time.Now,
	}
}

// SetDashboard mounts the web dashboard under /dashboard/.
func (s *Server) SetDashboard(h http.Handler) {
	s.dashboard = h
}

// Handler builds the routing table. Exposed so tests can drive the
// server through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/v1/scenes", s.handleScenes)
	mux.HandleFunc("GET /api/v1/models", s.handleModels)
	mux.HandleFunc("GET /api/v1/insight", s.handleInsight)
	mux.HandleFunc("GET /api/v1/versions/{category}/{subtype}", s.handleVersions)

	mux.HandleFunc("POST /api/v1/detect", s.handleDetect)
	mux.HandleFunc("POST /api/v1/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/v1/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /api/v1/optimize", s.handleOptimize)

	mux.HandleFunc("POST /api/v1/tasks", s.handleTaskCreate)
	mux.HandleFunc("GET /api/v1/tasks", s.handleTaskList)
	mux.HandleFunc("GET /api/v1/tasks/watch", s.handleTaskWatch)
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.handleTaskGet)

	if s.dashboard != nil {
		mux.Handle("/dashboard/", http.StripPrefix("/dashboard", s.dashboard))
		mux.Handle("GET /dashboard", http.RedirectHandler("/dashboard/", http.StatusMovedPermanently))
	}

	return s.withLogging(mux)
}

// Start serves HTTP with h2c so HTTP/2 clients work without TLS.
// Blocks until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.nowFunc()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// writeJSON encodes v to w, logging failures at debug level. Errors
// here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// ok writes a success envelope.
func (s *Server) ok(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, Envelope{Code: 0, Msg: "ok", Data: data}, s.logger)
}

// fail writes a failure envelope whose code mirrors the HTTP status.
func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, Envelope{Code: status, Msg: "error", Error: err.Error()}, s.logger)
}

// failFor maps a domain error to its HTTP status and writes it.
func (s *Server) failFor(w http.ResponseWriter, err error) {
	s.fail(w, statusForError(err), err)
}

// statusForError maps the error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, errValidation), errors.Is(err, llm.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrUpstream), errors.Is(err, llm.ErrProtocol):
		return http.StatusBadGateway
	case errors.Is(err, promptstore.ErrNotFound), errors.Is(err, task.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errValidation marks a missing or malformed request input.
var errValidation = errors.New("validation error")

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errValidation, fmt.Sprintf(format, args...))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
		"uptime":  buildinfo.Uptime().String(),
	}, s.logger)
}

// parseIntParam reads an integer query parameter, falling back to def
// when absent or unparsable.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
