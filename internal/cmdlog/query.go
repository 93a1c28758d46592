package cmdlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Filter narrows a Query. Zero fields match everything; Limit <= 0
// means unlimited.
type Filter struct {
	Command string
	Status  string
	From    time.Time
	To      time.Time
	Limit   int
}

// Stats are the aggregate counters for a command stream.
type Stats struct {
	TotalCommands int   `json:"total_commands"`
	SuccessCount  int   `json:"success_count"`
	ErrorCount    int   `json:"error_count"`
	AvgDurationMS int64 `json:"avg_duration_ms"`
}

// Query scans the command streams and returns matching entries, oldest
// first. Files are visited in name order; since names embed the date,
// each command's stream reads back chronologically. With a Limit the
// result is the trailing slice, the most recent entries.
func (s *Store) Query(filter Filter) ([]Entry, error) {
	files, err := s.commandFiles(filter.Command)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, name := range files {
		entries := s.readEntries(filepath.Join(s.commandsDir, name))
		for _, e := range entries {
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
			if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
				continue
			}
			out = append(out, e)
		}
	}

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// Stats rescans the last days files of a command stream (all commands
// when command is empty) and recomputes the counters. No files means
// all-zero stats. days <= 0 scans the whole stream.
func (s *Store) Stats(command string, days int) (Stats, error) {
	files, err := s.commandFiles(command)
	if err != nil {
		return Stats{}, err
	}
	if days > 0 && len(files) > days {
		files = files[len(files)-days:]
	}

	var stats Stats
	var totalDuration int64
	for _, name := range files {
		for _, e := range s.readEntries(filepath.Join(s.commandsDir, name)) {
			stats.TotalCommands++
			if e.Status == StatusSuccess {
				stats.SuccessCount++
			} else {
				stats.ErrorCount++
			}
			if e.Output != nil {
				totalDuration += e.Output.DurationMS
			}
		}
	}
	if stats.TotalCommands > 0 {
		stats.AvgDurationMS = totalDuration / int64(stats.TotalCommands)
	}
	return stats, nil
}

// QueryEvaluations returns the scorecards from the last days evaluation
// files, oldest first. days <= 0 reads them all.
func (s *Store) QueryEvaluations(days int) ([]EvaluationRecord, error) {
	dirEntries, err := os.ReadDir(s.evaluationsDir)
	if err != nil {
		return nil, fmt.Errorf("read evaluations directory: %w", err)
	}

	var files []string
	for _, de := range dirEntries {
		if !de.IsDir() && strings.HasSuffix(de.Name(), ".jsonl") {
			files = append(files, de.Name())
		}
	}
	if days > 0 && len(files) > days {
		files = files[len(files)-days:]
	}

	var out []EvaluationRecord
	for _, name := range files {
		path := filepath.Join(s.evaluationsDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable evaluation file", "file", name, "error", err)
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			var rec EvaluationRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				s.logger.Warn("skipping malformed evaluation line", "file", name, "error", err)
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// commandFiles lists the .jsonl files of one command stream (or all
// streams) in name order, which for date-suffixed names is also
// chronological order within a command.
func (s *Store) commandFiles(command string) ([]string, error) {
	dirEntries, err := os.ReadDir(s.commandsDir)
	if err != nil {
		return nil, fmt.Errorf("read commands directory: %w", err)
	}

	var files []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		if command != "" && !strings.HasPrefix(name, command+"_") {
			continue
		}
		files = append(files, name)
	}
	return files, nil
}

// readEntries parses one command file, skipping lines that fail to
// parse. A missing or unreadable file yields no entries.
func (s *Store) readEntries(path string) []Entry {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("skipping unreadable log file", "file", filepath.Base(path), "error", err)
		return nil
	}
	defer f.Close()

	var out []Entry
	scanner := bufio.NewScanner(f)
	// Generated summaries riding in entry data can push a line well past
	// the scanner's default limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			s.logger.Warn("skipping malformed log line", "file", filepath.Base(path), "error", err)
			continue
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("log file scan aborted", "file", filepath.Base(path), "error", err)
	}
	return out
}
