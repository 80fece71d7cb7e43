// Package watch reports changes to the files that hold persisted timer state.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher follows a fixed set of files. It watches their parent directories
// so atomic rename-into-place writes are seen as well as in-place writes.
type Watcher struct {
	watcher *fsnotify.Watcher
	targets map[string]bool
}

// New starts watching paths. Missing parent directories are created so the
// watch can begin before the daemon first writes its state.
func New(paths []string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{watcher: watcher, targets: make(map[string]bool, len(paths))}
	dirs := map[string]bool{}
	for _, p := range paths {
		p = filepath.Clean(p)
		w.targets[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			watcher.Close() //nolint:errcheck
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close() //nolint:errcheck
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run calls onChange for every write to, or creation of, a watched file
// until ctx is cancelled or onChange fails.
func (w *Watcher) Run(ctx context.Context, onChange func(path string) error) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.targets[filepath.Clean(event.Name)] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := onChange(event.Name); err != nil {
					return err
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}

// Close stops the watcher without running it.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
