// Package task tracks asynchronous API jobs in process memory. Tasks
// are best-effort: nothing is persisted, a restart loses every record,
// and finished tasks are swept after a retention window. The registry
// publishes an event for every state change so watchers can stream
// progress.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task status values.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Sweeper defaults: finished and never-started tasks older than MaxAge
// are dropped; running tasks are never swept.
const (
	SweepInterval = time.Hour
	MaxAge        = 24 * time.Hour
)

// ErrNotFound marks an unknown task ID.
var ErrNotFound = errors.New("task not found")

// Task is one tracked job. Progress runs 0 to 100.
type Task struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Progress  int            `json:"progress"`
	Input     map[string]any `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ListFilter narrows List. Zero fields match everything.
type ListFilter struct {
	Status string
	Type   string
	Limit  int
	Offset int
}

// Registry is the in-memory task table. All methods are safe for
// concurrent use; accessors return snapshots, never shared pointers.
type Registry struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	bus     *Bus
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for testing; defaults to time.Now
}

// NewRegistry creates an empty task registry with its own event bus.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tasks:   make(map[string]*Task),
		bus:     NewBus(),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Bus returns the registry's event bus for subscribing to task updates.
func (r *Registry) Bus() *Bus {
	return r.bus
}

// Create registers a new pending task and returns its snapshot.
func (r *Registry) Create(taskType string, input map[string]any) (Task, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Task{}, fmt.Errorf("generate task id: %w", err)
	}

	now := r.nowFunc().UTC()
	t := &Task{
		ID:        id.String(),
		Type:      taskType,
		Status:    StatusPending,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	snapshot := *t
	r.mu.Unlock()

	r.bus.Publish(Event{Timestamp: now, Kind: KindCreated, Task: snapshot})
	return snapshot, nil
}

// Get returns a snapshot of one task.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *t, nil
}

// List returns matching tasks newest first, with offset and limit
// applied after filtering.
func (r *Registry) List(f ListFilter) []Task {
	r.mu.RLock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		out = append(out, *t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []Task{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Start marks a task running.
func (r *Registry) Start(id string) error {
	return r.mutate(id, KindStarted, func(t *Task) {
		t.Status = StatusRunning
	})
}

// SetProgress updates a task's progress, clamped to 0..100.
func (r *Registry) SetProgress(id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return r.mutate(id, KindProgress, func(t *Task) {
		t.Progress = progress
	})
}

// Complete marks a task successful with its output and full progress.
func (r *Registry) Complete(id string, output any) error {
	return r.mutate(id, KindCompleted, func(t *Task) {
		t.Status = StatusSuccess
		t.Progress = 100
		t.Output = output
	})
}

// Fail marks a task failed with its error message.
func (r *Registry) Fail(id string, errMsg string) error {
	return r.mutate(id, KindFailed, func(t *Task) {
		t.Status = StatusFailed
		t.Error = errMsg
	})
}

// mutate applies fn to a task under the lock, stamps UpdatedAt, and
// publishes the resulting snapshot.
func (r *Registry) mutate(id, kind string, fn func(*Task)) error {
	now := r.nowFunc().UTC()

	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(t)
	t.UpdatedAt = now
	snapshot := *t
	r.mu.Unlock()

	r.bus.Publish(Event{Timestamp: now, Kind: kind, Task: snapshot})
	return nil
}

// Sweep removes non-running tasks whose last update is older than
// maxAge and reports how many were dropped.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := r.nowFunc().UTC().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, t := range r.tasks {
		if t.Status == StatusRunning {
			continue
		}
		if t.UpdatedAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps on a fixed interval until the context is done.
// Run it in its own goroutine.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(maxAge); n > 0 {
				r.logger.Info("swept expired tasks", "count", n, "max_age", maxAge)
			}
		}
	}
}
