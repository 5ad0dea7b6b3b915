package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch merges approvals written to the file by other processes into the in-memory
// document until ctx ends. Approvals are only ever added this way; nothing already
// in memory is dropped. The parent directory is watched because writes replace the
// file by rename.
func (s *FileTrustStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create trust store watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create trust store directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	name := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || !ev.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
			if added, err := s.merge(); err != nil {
				s.logger.Warn("failed to reload trust store", slog.Any("error", err))
			} else if added > 0 {
				s.logger.Info("merged external certificate approvals", slog.Int("added", added))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Debug("trust store watcher error", slog.Any("error", err))
		}
	}
}

// merge adds every approval in the file that is missing from memory.
func (s *FileTrustStore) merge() (int, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		// A partially written file from a writer without atomic rename; the next event retries.
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for scope, bucket := range doc {
		target, ok := s.doc[scope]
		if !ok {
			target = map[string]string{}
			s.doc[scope] = target
		}
		for thumb, subject := range bucket {
			if _, ok := target[thumb]; !ok {
				target[thumb] = subject
				added++
			}
		}
	}
	s.migrateScopes()
	return added, nil
}
