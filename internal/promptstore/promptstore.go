// Package promptstore maintains the versioned prompt files under the
// prompts directory. Versions are 1-based, append-only, and never
// rewritten; metadata lives in _meta/index.json, replaced atomically on
// every save. Path layout: <root>/<category>/<subtype>/v<N>.md.
package promptstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound marks a missing scene directory, version, or prompt file.
// Callers branch with errors.Is.
var ErrNotFound = errors.New("not found")

const (
	metaDir   = "_meta"
	indexName = "index.json"

	// contentCacheSize bounds the in-memory prompt content cache.
	// Versions are immutable, so cached content never goes stale.
	contentCacheSize = 256
)

// VersionInfo is the index metadata for one saved version.
type VersionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Note      string    `json:"note,omitempty"`
}

// SceneIndex is one scene's record in the index file.
type SceneIndex struct {
	Versions       []VersionInfo `json:"versions"`
	CurrentVersion string        `json:"current_version"`
}

// Prompt is a resolved prompt: its content plus where it came from.
type Prompt struct {
	Scene   string `json:"scene"`
	Version string `json:"version"`
	Content string `json:"content"`
	Path    string `json:"path"`
}

// SaveResult reports where a new version landed.
type SaveResult struct {
	Scene   string `json:"scene"`
	Version string `json:"version"`
	Path    string `json:"path"`
}

// Store manages the prompt version tree rooted at one directory.
// Saves to the same scene are serialized by a per-scene mutex; the
// index file has its own lock because every scene shares it.
type Store struct {
	root   string
	logger *slog.Logger

	mu      sync.Mutex // guards scenes
	scenes  map[string]*sync.Mutex
	indexMu sync.Mutex
	cache   *lru.Cache[string, string]
	nowFunc func() time.Time // injectable for testing; defaults to time.Now
}

// NewStore creates a prompt store rooted at dir.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0755); err != nil {
		return nil, fmt.Errorf("create prompts directory: %w", err)
	}
	cache, err := lru.New[string, string](contentCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create content cache: %w", err)
	}
	return &Store{
		root:    dir,
		logger:  logger,
		scenes:  make(map[string]*sync.Mutex),
		cache:   cache,
		nowFunc: time.Now,
	}, nil
}

// Save writes content as the scene's next version and updates the
// index. The version number is the count of existing versions plus
// one; a collision on disk (a hole left by hand-deletion, or another
// process) is retried once against the highest existing number.
func (s *Store) Save(scene, content, note string) (*SaveResult, error) {
	if err := checkSceneKey(scene); err != nil {
		return nil, err
	}

	mu := s.sceneMutex(scene)
	mu.Lock()
	defer mu.Unlock()

	dir := s.sceneDir(scene)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create scene directory: %w", err)
	}

	numbers, err := versionNumbers(dir)
	if err != nil {
		return nil, err
	}
	n := len(numbers) + 1

	path, err := s.writeVersion(dir, n, content)
	if errors.Is(err, os.ErrExist) {
		if len(numbers) > 0 {
			n = numbers[len(numbers)-1] + 1
		}
		path, err = s.writeVersion(dir, n, content)
	}
	if err != nil {
		return nil, err
	}

	version := fmt.Sprintf("v%d", n)
	info := VersionInfo{ID: version, CreatedAt: s.nowFunc().UTC(), Note: note}
	if err := s.updateIndex(scene, info); err != nil {
		return nil, err
	}

	s.cache.Add(scene+"@"+version, content)
	s.logger.Info("prompt version saved", "scene", scene, "version", version)
	return &SaveResult{Scene: scene, Version: version, Path: path}, nil
}

// writeVersion creates v<N>.md, failing with os.ErrExist if the number
// is already taken.
func (s *Store) writeVersion(dir string, n int, content string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("v%d.md", n))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("version v%d already on disk: %w", n, os.ErrExist)
		}
		return "", fmt.Errorf("create version file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("write version file: %w", err)
	}
	return path, nil
}

// List returns the scene's versions, newest first. The files are the
// source of truth; created_at and note are filled from the index when
// it has them.
func (s *Store) List(scene string) ([]VersionInfo, error) {
	if err := checkSceneKey(scene); err != nil {
		return nil, err
	}

	dir := s.sceneDir(scene)
	numbers, err := versionNumbers(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: scene %s has no prompt directory", ErrNotFound, scene)
		}
		return nil, err
	}

	index, _ := s.loadIndex()
	meta := make(map[string]VersionInfo)
	if rec, ok := index[scene]; ok {
		for _, v := range rec.Versions {
			meta[v.ID] = v
		}
	}

	out := make([]VersionInfo, 0, len(numbers))
	for i := len(numbers) - 1; i >= 0; i-- {
		id := fmt.Sprintf("v%d", numbers[i])
		if m, ok := meta[id]; ok {
			out = append(out, m)
			continue
		}
		out = append(out, VersionInfo{ID: id})
	}
	return out, nil
}

// Get resolves a prompt. An explicit version must exist; with no
// version, default.md wins if present, otherwise the highest numbered
// version.
func (s *Store) Get(scene, version string) (*Prompt, error) {
	if err := checkSceneKey(scene); err != nil {
		return nil, err
	}
	dir := s.sceneDir(scene)

	if version != "" {
		return s.readPrompt(scene, version, filepath.Join(dir, version+".md"))
	}

	defaultPath := filepath.Join(dir, "default.md")
	if _, err := os.Stat(defaultPath); err == nil {
		return s.readPrompt(scene, "default", defaultPath)
	}

	numbers, err := versionNumbers(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: scene %s has no prompt directory", ErrNotFound, scene)
		}
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, fmt.Errorf("%w: scene %s has no prompt versions", ErrNotFound, scene)
	}
	id := fmt.Sprintf("v%d", numbers[len(numbers)-1])
	return s.readPrompt(scene, id, filepath.Join(dir, id+".md"))
}

// Download copies a resolved prompt's content verbatim to dest.
func (s *Store) Download(scene, version, dest string) (*Prompt, error) {
	p, err := s.Get(scene, version)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dest, []byte(p.Content), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", dest, err)
	}
	return p, nil
}

// readPrompt loads one prompt file, consulting the content cache first.
// default.md is not cached: unlike numbered versions it can be edited
// in place.
func (s *Store) readPrompt(scene, version, path string) (*Prompt, error) {
	key := scene + "@" + version
	cacheable := version != "default"

	if cacheable {
		if content, ok := s.cache.Get(key); ok {
			return &Prompt{Scene: scene, Version: version, Content: content, Path: path}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: scene %s version %s", ErrNotFound, scene, version)
		}
		return nil, fmt.Errorf("read prompt: %w", err)
	}

	content := string(data)
	if cacheable {
		s.cache.Add(key, content)
	}
	return &Prompt{Scene: scene, Version: version, Content: content, Path: path}, nil
}

// Index returns the whole index file; scenes missing from it simply
// have no metadata yet.
func (s *Store) Index() (map[string]SceneIndex, error) {
	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	out := make(map[string]SceneIndex, len(index))
	for k, v := range index {
		out[k] = *v
	}
	return out, nil
}

func (s *Store) sceneDir(scene string) string {
	return filepath.Join(s.root, filepath.FromSlash(scene))
}

func (s *Store) sceneMutex(scene string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.scenes[scene]
	if !ok {
		mu = &sync.Mutex{}
		s.scenes[scene] = mu
	}
	return mu
}

func (s *Store) indexPath() string {
	return filepath.Join(s.root, metaDir, indexName)
}

// loadIndex reads the index file; a missing file is an empty index.
func (s *Store) loadIndex() (map[string]*SceneIndex, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*SceneIndex), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	index := make(map[string]*SceneIndex)
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return index, nil
}

// updateIndex appends a version to a scene's record and replaces the
// index file via temp-and-rename so readers never see a partial write.
func (s *Store) updateIndex(scene string, info VersionInfo) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	rec := index[scene]
	if rec == nil {
		rec = &SceneIndex{}
		index[scene] = rec
	}
	rec.Versions = append(rec.Versions, info)
	rec.CurrentVersion = info.ID

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.indexPath()), indexName+".*")
	if err != nil {
		return fmt.Errorf("create index temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close index temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.indexPath()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// versionNumbers lists the canonical v<N>.md files in a directory,
// sorted ascending by N. Non-canonical names (v01.md, vfinal.md,
// default.md) are ignored.
func versionNumbers(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var numbers []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := parseVersionName(e.Name())
		if !ok {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}

// parseVersionName accepts exactly v<N>.md with N in canonical decimal
// form.
func parseVersionName(name string) (int, bool) {
	if !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".md") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".md")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	if name != fmt.Sprintf("v%d.md", n) {
		return 0, false
	}
	return n, true
}

// checkSceneKey rejects keys that are not a plain category/subtype
// pair, which also keeps every path inside the store root.
func checkSceneKey(scene string) error {
	parts := strings.Split(scene, "/")
	if len(parts) != 2 {
		return fmt.Errorf("invalid scene key %q: want category/subtype", scene)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `\`) {
			return fmt.Errorf("invalid scene key %q: want category/subtype", scene)
		}
	}
	if parts[0] == metaDir {
		return fmt.Errorf("invalid scene key %q: %s is reserved", scene, metaDir)
	}
	return nil
}
