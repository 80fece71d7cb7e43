// Package store is the durable key/value home of the timer. Values are
// JSON-encoded; every backend survives process restarts except Memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// ErrCorrupt is returned when a backend's document cannot be decoded.
var ErrCorrupt = errors.New("stored document is corrupt")

// Keys of the persisted layout.
const (
	KeyTimerState          = "timerState"
	KeyDefaultWorkSeconds  = "defaultWorkSeconds"
	KeyDefaultBreakSeconds = "defaultBreakSeconds"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Store persists JSON values by key.
type Store interface {
	// Get decodes the value stored under key into v. Returns ErrNotFound if
	// the key is absent.
	Get(ctx context.Context, key string, v any) error
	Set(ctx context.Context, key string, v any) error
	Close() error
}

// Open returns the backend named by backend rooted at dataDir.
func Open(ctx context.Context, backend, dataDir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(filepath.Join(dataDir, "state.json"))
	case BackendSQLite:
		return NewSQLiteStore(ctx, filepath.Join(dataDir, "state.db"))
	case BackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown state backend %q", backend)
}

// Files returns the on-disk paths a backend writes under dataDir, for
// callers that want to watch them.
func Files(backend, dataDir string) []string {
	switch backend {
	case BackendFile, "":
		return []string{filepath.Join(dataDir, "state.json")}
	case BackendSQLite:
		db := filepath.Join(dataDir, "state.db")
		return []string{db, db + "-wal"}
	}
	return nil
}
