package auth

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/reportpull/sfauth/pkg/logging"
)

// DefaultWatchInterval is the fallback polling interval when fsnotify is not
// available.
const DefaultWatchInterval = 30 * time.Second

// DefaultDebounceInterval is the time to wait after the last detected change
// before notifying, so a save that rewrites the file in several steps fires
// once.
const DefaultDebounceInterval = 500 * time.Millisecond

// StoreWatcherConfig holds configuration for the token file watcher.
type StoreWatcherConfig struct {
	// Path is the token file to watch.
	Path string

	// WatchInterval is the fallback polling interval when fsnotify is not
	// available.
	WatchInterval time.Duration

	// OnChange is called when the token file is written, replaced, or
	// removed by another process.
	OnChange func()
}

// StoreWatcher monitors the fallback token file so a login or logout
// performed by another process invalidates this process's cached view. It
// uses fsnotify with a polling fallback for filesystems where inotify is
// unavailable.
type StoreWatcher struct {
	mu sync.Mutex

	config StoreWatcherConfig

	// fsWatcher is nil when running in polling mode.
	fsWatcher *fsnotify.Watcher

	stopCh  chan struct{}
	running bool

	// lastModTime and lastExists track polling state.
	lastModTime time.Time
	lastExists  bool

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewStoreWatcher creates a watcher for the given token file.
func NewStoreWatcher(config StoreWatcherConfig) *StoreWatcher {
	if config.WatchInterval == 0 {
		config.WatchInterval = DefaultWatchInterval
	}
	return &StoreWatcher{config: config}
}

// Start begins watching. The token file itself may not exist yet; the watch
// is placed on its directory so creation is observed too.
func (w *StoreWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.stopCh = make(chan struct{})
	w.running = true

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("StoreWatcher", "fsnotify not available, falling back to polling: %v", err)
		go w.pollForChanges()
		return nil
	}

	w.fsWatcher = watcher

	dir := filepath.Dir(w.config.Path)
	if err := w.fsWatcher.Add(dir); err != nil {
		logging.Warn("StoreWatcher", "Failed to watch directory %s, falling back to polling: %v", dir, err)
		w.fsWatcher.Close()
		w.fsWatcher = nil
		go w.pollForChanges()
		return nil
	}

	// Capture channels before releasing the lock to avoid racing Stop.
	eventsCh := w.fsWatcher.Events
	errorsCh := w.fsWatcher.Errors

	go w.processEvents(eventsCh, errorsCh)

	logging.Debug("StoreWatcher", "Watching %s for external credential changes", w.config.Path)
	return nil
}

func (w *StoreWatcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("StoreWatcher", err, "fsnotify error")
		}
	}
}

func (w *StoreWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != filepath.Base(w.config.Path) {
		return
	}

	// Removal matters here: an external logout deletes the file.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	logging.Debug("StoreWatcher", "Token file changed externally (%s)", event.Op)
	w.notifyDebounced()
}

// notifyDebounced schedules the OnChange callback after the debounce window,
// resetting the window on every further change.
func (w *StoreWatcher) notifyDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(DefaultDebounceInterval, func() {
		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

// pollForChanges implements fallback polling when fsnotify is not available.
func (w *StoreWatcher) pollForChanges() {
	ticker := time.NewTicker(w.config.WatchInterval)
	defer ticker.Stop()

	w.recordState()

	for {
		select {
		case <-w.stopCh:
			return

		case <-ticker.C:
			if w.stateChanged() {
				logging.Debug("StoreWatcher", "Token file change detected via polling")
				w.notifyDebounced()
			}
		}
	}
}

func (w *StoreWatcher) recordState() {
	info, err := os.Stat(w.config.Path)
	if err != nil {
		w.lastExists = false
		w.lastModTime = time.Time{}
		return
	}
	w.lastExists = true
	w.lastModTime = info.ModTime()
}

func (w *StoreWatcher) stateChanged() bool {
	info, err := os.Stat(w.config.Path)
	if err != nil {
		changed := w.lastExists
		w.lastExists = false
		w.lastModTime = time.Time{}
		return changed
	}

	changed := !w.lastExists || info.ModTime().After(w.lastModTime)
	w.lastExists = true
	w.lastModTime = info.ModTime()
	return changed
}

// Stop gracefully stops the watcher.
func (w *StoreWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn("StoreWatcher", "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}

	logging.Debug("StoreWatcher", "Stopped token file watcher")
	return nil
}

// IsRunning returns whether the watcher is currently active.
func (w *StoreWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
