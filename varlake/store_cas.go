package varlake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// CompareAndSwap atomically replaces the content at path if and only if
// the current content matches expected. See ConditionalWriter for
// semantics.
//
// Uses advisory locking on a companion .lock file and temp-file+rename
// for the replacement write under the lock, so concurrent committers on
// the same filesystem serialize instead of clobbering each other.
func (f *fsStore) CompareAndSwap(_ context.Context, path, expected, replacement string) error {
	fullPath, err := f.safePathForFile(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	lock := flock.New(fullPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("varlake: lock %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	// Under lock: read current content and compare.
	current, err := os.ReadFile(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	fileExists := err == nil

	switch {
	case !fileExists && expected == "":
		// First commit: create via temp-file + rename.
	case !fileExists:
		return ErrCommitConflict
	case string(current) == expected:
		// Content matches: replace via temp-file + rename.
	default:
		return ErrCommitConflict
	}

	tmp, err := os.CreateTemp(dir, ".varlake-cas-*")
	if err != nil {
		return fmt.Errorf("varlake: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(replacement); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}
