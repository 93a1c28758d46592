// Package cmdlog is the append-only invocation log. Every finished
// command becomes one JSONL line under commands/, every evaluation
// scorecard one line under evaluations/, both partitioned by date.
// Lines are never rewritten; statistics are recomputed from the files
// on each call rather than kept in an index.
package cmdlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry status values. Pending exists only in memory between Begin and
// End; persisted lines are always success or error.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusError   = "error"
)

// EntryInput captures what a command was invoked with.
type EntryInput struct {
	Args    []string       `json:"args"`
	Options map[string]any `json:"options,omitempty"`
}

// EntryOutput captures how a command ended.
type EntryOutput struct {
	Success    bool           `json:"success"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// Entry is one command invocation. Timestamp is the start of the
// invocation; the duration lives in Output.
type Entry struct {
	Timestamp time.Time    `json:"timestamp"`
	Command   string       `json:"command"`
	Input     EntryInput   `json:"input"`
	Output    *EntryOutput `json:"output,omitempty"`
	Status    string       `json:"status"`
}

// EvaluationRecord is one judged summary, written to the evaluations
// stream independently of the command entry that produced it.
type EvaluationRecord struct {
	PromptID  string             `json:"promptId"`
	Scene     string             `json:"scene"`
	Scores    map[string]float64 `json:"scores"`
	Summary   string             `json:"summary"`
	Timestamp time.Time          `json:"timestamp"`
}

// Store appends to and scans the date-partitioned log streams under one
// root directory. Construct one per data dir and pass it down; tests
// supply isolated instances with t.TempDir.
type Store struct {
	commandsDir    string
	evaluationsDir string
	logger         *slog.Logger
	nowFunc        func() time.Time // injectable for testing; defaults to time.Now
}

// NewStore creates the log store rooted at dir, making the commands/
// and evaluations/ subdirectories as needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		commandsDir:    filepath.Join(dir, "commands"),
		evaluationsDir: filepath.Join(dir, "evaluations"),
		logger:         logger,
		nowFunc:        time.Now,
	}
	for _, d := range []string{s.commandsDir, s.evaluationsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	return s, nil
}

// Recorder is one in-flight command entry. Begin opens it; End
// finalizes and persists it exactly once.
type Recorder struct {
	store   *Store
	mu      sync.Mutex
	entry   Entry
	started time.Time
	done    bool
}

// Begin opens a pending entry for a command invocation. Nothing is
// written until End.
func (s *Store) Begin(command string, args []string, options map[string]any) *Recorder {
	now := s.nowFunc()
	return &Recorder{
		store:   s,
		started: now,
		entry: Entry{
			Timestamp: now.UTC(),
			Command:   command,
			Input:     EntryInput{Args: args, Options: options},
			Status:    StatusPending,
		},
	}
}

// End finalizes the entry with its outcome and appends it as one line
// to commands/<command>_<date>.jsonl, dated by the invocation start.
// Calls after the first are no-ops.
func (r *Recorder) End(success bool, data map[string]any, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	r.done = true

	r.entry.Status = StatusSuccess
	if !success {
		r.entry.Status = StatusError
	}
	r.entry.Output = &EntryOutput{
		Success:    success,
		Data:       data,
		Error:      errMsg,
		DurationMS: r.store.nowFunc().Sub(r.started).Milliseconds(),
	}

	name := fmt.Sprintf("%s_%s.jsonl", r.entry.Command, r.entry.Timestamp.Format("2006-01-02"))
	return r.store.appendLine(filepath.Join(r.store.commandsDir, name), r.entry)
}

// SaveEvaluation appends one scorecard to evaluations/<date>.jsonl. A
// zero timestamp is filled with the current time.
func (s *Store) SaveEvaluation(rec EvaluationRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.nowFunc().UTC()
	}
	name := rec.Timestamp.UTC().Format("2006-01-02") + ".jsonl"
	return s.appendLine(filepath.Join(s.evaluationsDir, name), rec)
}

// appendLine marshals v and appends it with a trailing newline in a
// single write, relying on O_APPEND atomicity for short writes.
func (s *Store) appendLine(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", filepath.Base(path), err)
	}
	return nil
}
