// Package watcher monitors configuration files for changes and invokes a
// callback after a debounce window, so a burst of editor writes produces one
// reload.
package watcher

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors files for changes
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)
	paths    []string
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	pending  bool
	lastPath string
}

// New creates a watcher that calls onChange after debounce quiet time
func New(debounce time.Duration, onChange func(path string)) *Watcher {
	return &Watcher{
		debounce: debounce,
		onChange: onChange,
		paths:    make([]string, 0),
		stopCh:   make(chan struct{}),
	}
}

// AddPath adds a file path to watch
func (w *Watcher) AddPath(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paths = append(w.paths, path)

	if w.watcher != nil && w.running {
		_ = w.watcher.Add(filepath.Dir(path))
	}
}

// Start begins watching for file changes
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	var err error
	w.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}

	// Watch the containing directory; editors often replace the file
	// rather than writing it in place
	for _, path := range w.paths {
		_ = w.watcher.Add(filepath.Dir(path))
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	go w.run()
	return nil
}

// Stop stops watching for file changes
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)

	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

// IsRunning returns whether the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run() {
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.isWatchedPath(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.mu.Lock()
			w.pending = true
			w.lastPath = event.Name
			w.mu.Unlock()

			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			w.mu.Lock()
			pending := w.pending
			path := w.lastPath
			w.pending = false
			w.mu.Unlock()

			if pending && w.onChange != nil {
				w.onChange(path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %v", err)
		}
	}
}

// isWatchedPath checks if the given path matches any watched file
func (w *Watcher) isWatchedPath(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, _ := filepath.Abs(path)
	for _, watched := range w.paths {
		absWatched, _ := filepath.Abs(watched)
		if absPath == absWatched {
			return true
		}
		if filepath.Base(path) == filepath.Base(watched) {
			return true
		}
	}
	return false
}
