package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/wrenware/scribe/internal/api"
	"github.com/wrenware/scribe/internal/buildinfo"
	"github.com/wrenware/scribe/internal/task"
	"github.com/wrenware/scribe/internal/web"
)

// runServe starts the REST API server (and the dashboard when enabled)
// and blocks until the context is cancelled or the server fails. The
// command-log entry opened by run() is finalized after shutdown, so the
// serve entry records the full lifetime of the process.
func (a *app) runServe(ctx context.Context) (map[string]any, error) {
	a.logger.Info("starting scribe",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"port", a.cfg.Listen.Port,
		"model", a.cfg.LLM.DefaultModel,
	)

	// Tasks are held in memory only. A restart forgets them; clients
	// re-submit. The sweeper keeps the registry from growing without
	// bound under long uptimes.
	registry := task.NewRegistry(a.logger)
	go registry.RunSweeper(ctx, task.SweepInterval, task.MaxAge)

	server := api.NewServer(api.Config{
		Address:      a.cfg.Listen.Address,
		Port:         a.cfg.Listen.Port,
		Service:      a.svc,
		DefaultModel: a.cfg.LLM.DefaultModel,
		Logs:         a.logs,
		Prompts:      a.prompts,
		Tasks:        registry,
		Files:        a.files,
		Logger:       a.logger,
	})

	if a.cfg.Dashboard.Enabled {
		dashboard := web.NewWebServer(a.logs, a.prompts, registry, a.logger)
		server.SetDashboard(dashboard.Handler())
		a.logger.Info("dashboard enabled", "path", "/dashboard/")
	}

	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		a.logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	// Blocks until the server is shut down (via context cancellation or
	// fatal error).
	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return nil, fmt.Errorf("server failed: %w", err)
		}
	}

	a.logger.Info("scribe stopped")
	return map[string]any{
		"address": a.cfg.Listen.Address,
		"port":    a.cfg.Listen.Port,
	}, nil
}
