// Package storage is a root-confined file store with cooperative
// per-path advisory locking. Every name is resolved inside the store
// root; operations on the same resolved path are serialized within the
// process by busy-polling locks with a configurable timeout. The locks
// are advisory only: other processes are not excluded.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Default lock behavior, overridable per store.
const (
	DefaultLockTimeout = 5 * time.Second
	DefaultLockPoll    = 25 * time.Millisecond
)

// ErrLockTimeout marks a lock that stayed held past the wait deadline.
var ErrLockTimeout = errors.New("lock timeout")

// Store confines file operations to one root directory.
type Store struct {
	root        string
	logger      *slog.Logger
	lockTimeout time.Duration
	lockPoll    time.Duration

	mu    sync.Mutex
	locks map[string]bool
}

// Option configures a Store built by NewStore.
type Option func(*Store)

// WithLockTimeout sets how long an operation waits for a held path.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLockPoll sets the wait interval between lock attempts.
func WithLockPoll(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockPoll = d
		}
	}
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	s := &Store{
		root:        dir,
		logger:      logger,
		lockTimeout: DefaultLockTimeout,
		lockPoll:    DefaultLockPoll,
		locks:       make(map[string]bool),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Read returns the content of a stored file.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := s.acquire(path); err != nil {
		return nil, err
	}
	defer s.release(path)

	return os.ReadFile(path)
}

// Write stores data under name, creating parent directories as needed.
func (s *Store) Write(name string, data []byte) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := s.acquire(path); err != nil {
		return err
	}
	defer s.release(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Delete removes a stored file. Deleting a missing file is not an
// error.
func (s *Store) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := s.acquire(path); err != nil {
		return err
	}
	defer s.release(path)

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether name resolves to an existing file.
func (s *Store) Exists(name string) (bool, error) {
	path, err := s.resolve(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Copy duplicates src to dst inside the store.
func (s *Store) Copy(src, dst string) error {
	return s.withPair(src, dst, func(srcPath, dstPath string) error {
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
		return os.WriteFile(dstPath, data, 0644)
	})
}

// Move renames src to dst inside the store.
func (s *Store) Move(src, dst string) error {
	return s.withPair(src, dst, func(srcPath, dstPath string) error {
		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
		return os.Rename(srcPath, dstPath)
	})
}

// List returns the store-relative names under a directory, sorted.
// Subdirectories are not descended into.
func (s *Store) List(dir string) ([]string, error) {
	path, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, filepath.ToSlash(filepath.Join(dir, e.Name())))
	}
	sort.Strings(out)
	return out, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// withPair runs fn with both paths locked. Locks are taken in sorted
// order so two operations crossing the same pair cannot deadlock.
func (s *Store) withPair(src, dst string, fn func(srcPath, dstPath string) error) error {
	srcPath, err := s.resolve(src)
	if err != nil {
		return err
	}
	dstPath, err := s.resolve(dst)
	if err != nil {
		return err
	}
	if srcPath == dstPath {
		return fmt.Errorf("source and destination are the same file: %s", src)
	}

	first, second := srcPath, dstPath
	if second < first {
		first, second = second, first
	}
	if err := s.acquire(first); err != nil {
		return err
	}
	defer s.release(first)
	if err := s.acquire(second); err != nil {
		return err
	}
	defer s.release(second)

	return fn(srcPath, dstPath)
}

// resolve confines a store-relative name to the root. Absolute paths,
// empty names, and anything traversing above the root are rejected.
func (s *Store) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("storage name is required")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid storage name %q: must be relative", name)
	}
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage name %q: escapes the store root", name)
	}
	return filepath.Join(s.root, cleaned), nil
}

// acquire takes the advisory lock for a resolved path, busy-polling
// until it frees or the wait deadline passes.
func (s *Store) acquire(path string) error {
	deadline := time.Now().Add(s.lockTimeout)
	for {
		s.mu.Lock()
		if !s.locks[path] {
			s.locks[path] = true
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s still held after %s", ErrLockTimeout, filepath.Base(path), s.lockTimeout)
		}
		time.Sleep(s.lockPoll)
	}
}

func (s *Store) release(path string) {
	s.mu.Lock()
	delete(s.locks, path)
	s.mu.Unlock()
}
