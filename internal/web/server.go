// Package web serves the prompt-iteration dashboard: an overview of
// command activity and evaluation trends, plus a browser for stored
// prompt versions. It renders server-side templates only; all mutation
// goes through the REST API.
package web

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/wrenware/scribe/internal/cmdlog"
	"github.com/wrenware/scribe/internal/promptstore"
	"github.com/wrenware/scribe/internal/task"
)

// WebServer renders the dashboard pages.
type WebServer struct {
	logs      *cmdlog.Store
	prompts   *promptstore.Store
	tasks     *task.Registry
	logger    *slog.Logger
	templates map[string]*template.Template
}

// NewWebServer creates a dashboard over the given stores.
func NewWebServer(logs *cmdlog.Store, prompts *promptstore.Store, tasks *task.Registry, logger *slog.Logger) *WebServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebServer{
		logs:      logs,
		prompts:   prompts,
		tasks:     tasks,
		logger:    logger,
		templates: loadTemplates(),
	}
}

// Handler returns the dashboard routes. Mount under a prefix with
// http.StripPrefix; paths here are prefix-relative.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleOverview)
	mux.HandleFunc("GET /prompts", s.handlePrompts)
	mux.HandleFunc("GET /prompts/{category}/{subtype}", s.handlePromptDetail)
	return mux
}
