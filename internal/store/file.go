package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every key in a single JSON object on disk.
type FileStore struct {
	mu   sync.Mutex
	path string // full path to state.json
}

// NewFileStore returns a FileStore writing to path, creating its directory.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// Get reads the file and decodes the value stored under key.
func (f *FileStore) Get(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	records, err := f.read()
	f.mu.Unlock()
	if err != nil {
		return err
	}
	raw, ok := records[key]
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w: %w", key, ErrCorrupt, err)
	}
	return nil
}

// Set replaces the value under key and rewrites the file atomically. A file
// that no longer parses is replaced by a document holding only key.
func (f *FileStore) Set(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.read()
	if errors.Is(err, ErrCorrupt) {
		records = map[string]json.RawMessage{}
	} else if err != nil {
		return err
	}
	records[key] = data
	return f.write(records)
}

func (f *FileStore) Close() error { return nil }

// read returns an empty map when the file does not exist yet.
func (f *FileStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	records := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w: %w", ErrCorrupt, err)
	}
	return records, nil
}

// write marshals records and writes them via a temp file + os.Rename.
func (f *FileStore) write(records map[string]json.RawMessage) (err error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}

	// Same directory so the rename stays atomic.
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist state: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	if err = os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}
