//go:build !windows

// Package fsutil holds the file helpers shared by the key manager and the JSON stores.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// EnsureDir creates the parent directory of path with owner-only permissions.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteFileAtomic replaces path with data so readers observe either the previous
// content or the new content in full. The file ends up with exactly perm, whatever
// the umask or the mode of the file it replaces. The parent directory is created
// when missing.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithStaticPermissions(perm))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
