// Package store provides the filesystem-backed JSON document store shared
// by every coordination component. Records live one-per-file under
// category directories; append-only NDJSON logs live under logs/.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SchemaVersion is stamped into every persisted entity.
const SchemaVersion = 1

// ErrNotFound is returned when a record does not exist in its category.
var ErrNotFound = errors.New("record not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Store is a category-partitioned JSON document store rooted at a single
// data directory. Categories are slash-separated relative paths, e.g.
// "messages/researcher/inbox" or "threads".
type Store struct {
	root string
	log  *slog.Logger
}

// New creates a store rooted at dir, creating it if absent.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("store: data root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data root: %w", err)
	}
	return &Store{root: dir, log: slog.Default()}, nil
}

// Root returns the data root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) recordPath(category, id string) string {
	return filepath.Join(s.root, filepath.FromSlash(category), id+".json")
}

// Put writes or overwrites the record for id under category, creating the
// category directory if needed. The write is a temp-file + rename so a
// crashed writer never leaves a half-written record behind.
func (s *Store) Put(category, id string, v any) error {
	dir := filepath.Join(s.root, filepath.FromSlash(category))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create category %s: %w", category, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s/%s: %w", category, id, err)
	}
	tmp, err := os.CreateTemp(dir, "."+id+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: temp file for %s/%s: %w", category, id, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write %s/%s: %w", category, id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close %s/%s: %w", category, id, err)
	}
	if err := os.Rename(tmpName, s.recordPath(category, id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace %s/%s: %w", category, id, err)
	}
	return nil
}

// Get reads the record for id under category into v.
// Returns ErrNotFound if the record does not exist.
func (s *Store) Get(category, id string, v any) error {
	data, err := os.ReadFile(s.recordPath(category, id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("store: %s/%s: %w", category, id, ErrNotFound)
		}
		return fmt.Errorf("store: read %s/%s: %w", category, id, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s/%s: %w", category, id, err)
	}
	return nil
}

// Exists reports whether a record is present without decoding it.
func (s *Store) Exists(category, id string) bool {
	_, err := os.Stat(s.recordPath(category, id))
	return err == nil
}

// List returns the raw JSON of every parseable record in a category,
// ordered by id. Files that fail to read or parse are skipped and logged,
// never fatal; a missing category is an empty result.
func (s *Store) List(category string) ([]json.RawMessage, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(category))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list %s: %w", category, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]json.RawMessage, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.log.Warn("store: skipping unreadable record", "category", category, "file", name, "error", err)
			continue
		}
		if !json.Valid(data) {
			s.log.Warn("store: skipping corrupt record", "category", category, "file", name)
			continue
		}
		out = append(out, json.RawMessage(data))
	}
	return out, nil
}

// Count returns the number of record files in a category.
func (s *Store) Count(category string) int {
	dir := filepath.Join(s.root, filepath.FromSlash(category))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n
}

// Move relocates a record between categories, creating the destination
// directory if needed. Returns ErrNotFound if the source is absent.
func (s *Store) Move(fromCategory, toCategory, id string) error {
	src := s.recordPath(fromCategory, id)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("store: %s/%s: %w", fromCategory, id, ErrNotFound)
		}
		return fmt.Errorf("store: stat %s/%s: %w", fromCategory, id, err)
	}
	dstDir := filepath.Join(s.root, filepath.FromSlash(toCategory))
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("store: create category %s: %w", toCategory, err)
	}
	if err := os.Rename(src, filepath.Join(dstDir, id+".json")); err != nil {
		return fmt.Errorf("store: move %s/%s to %s: %w", fromCategory, id, toCategory, err)
	}
	return nil
}

// Remove deletes a record. Returns ErrNotFound if the record is absent.
func (s *Store) Remove(category, id string) error {
	err := os.Remove(s.recordPath(category, id))
	if os.IsNotExist(err) {
		return fmt.Errorf("store: %s/%s: %w", category, id, ErrNotFound)
	}
	return err
}

func (s *Store) logPath(name string) string {
	return filepath.Join(s.root, "logs", name)
}

// AppendLog appends one newline-delimited JSON entry to the named log.
// Logs are audit trails only and are never re-read for correctness.
func (s *Store) AppendLog(name string, entry any) error {
	if err := os.MkdirAll(filepath.Join(s.root, "logs"), 0o755); err != nil {
		return fmt.Errorf("store: create logs dir: %w", err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("store: marshal log entry for %s: %w", name, err)
	}
	f, err := os.OpenFile(s.logPath(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open log %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("store: append log %s: %w", name, err)
	}
	return nil
}

// ReadLog returns up to the last max entries of a log, oldest first.
// Unparseable lines are skipped and logged. A missing log is empty.
func (s *Store) ReadLog(name string, max int) ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.logPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read log %s: %w", name, err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	entries := make([]json.RawMessage, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			s.log.Warn("store: skipping corrupt log line", "log", name)
			continue
		}
		entries = append(entries, json.RawMessage(line))
	}
	if max > 0 && len(entries) > max {
		entries = entries[len(entries)-max:]
	}
	return entries, nil
}

// ReplaceLog rewrites a log with the given entries, used for bounded-log
// compaction. The rewrite is atomic via temp file + rename.
func (s *Store) ReplaceLog(name string, entries []json.RawMessage) error {
	dir := filepath.Join(s.root, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create logs dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: temp file for log %s: %w", name, err)
	}
	tmpName := tmp.Name()
	for _, e := range entries {
		if _, err := tmp.Write(append([]byte(e), '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("store: rewrite log %s: %w", name, err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close log %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.logPath(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace log %s: %w", name, err)
	}
	return nil
}

// SweepLogs deletes log files not modified within maxAge and returns the
// number removed. Invoked by a periodic sweep, never inline on writes.
// A non-positive maxAge means retention is disabled and nothing is
// removed.
func (s *Store) SweepLogs(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	dir := filepath.Join(s.root, "logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: sweep logs: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				s.log.Warn("store: sweep could not remove log", "file", e.Name(), "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
