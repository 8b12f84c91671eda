package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of file events (an unzip, an editor save) into one change.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes under a plugin directory and its immediate subdirectories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration

	// OnChange is called once per debounced burst of events.
	OnChange func()
	// OnError receives watcher errors.
	OnError func(err error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for dir. The directory is created if missing.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plugin dir: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsWatcher,
		dir:      dir,
		debounce: DefaultDebounce,
	}
	if err := w.add(dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to read plugin dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := w.add(filepath.Join(dir, entry.Name())); err != nil {
				fsWatcher.Close()
				return nil, err
			}
		}
	}
	return w, nil
}

// SetDebounce changes the debounce interval. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

func (w *Watcher) add(path string) error {
	if err := w.watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return nil
}

// Run starts the watch loop. Blocks until context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			// New plugin directories are watched so a manifest written into them is seen.
			if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == filepath.Clean(w.dir) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.add(event.Name); err != nil && w.OnError != nil {
						w.OnError(err)
					}
				}
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.OnChange != nil {
			w.OnChange()
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
