package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/devproxy/internal/observability"
)

// ChangeCallback is called after a debounced burst of changes with the
// watched paths that changed, sorted.
type ChangeCallback func(changed []string)

// ErrorCallback is called when the file system watcher reports an error.
type ErrorCallback func(error)

// Watcher watches files and directories and calls back after changes settle.
// A watched file is observed through its parent directory so that editors
// replacing the file by rename are picked up. A watched directory reports
// changes to any entry directly inside it.
type Watcher struct {
	files         map[string]bool
	dirs          map[string]bool
	watcher       *fsnotify.Watcher
	callback      ChangeCallback
	errorCallback ErrorCallback
	logger        observability.Logger
	debounceDelay time.Duration
	mu            sync.Mutex
	stopCh        chan struct{}
	stoppedCh     chan struct{}
	running       bool
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		if delay > 0 {
			w.debounceDelay = delay
		}
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets the error callback for the watcher.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.errorCallback = callback
	}
}

// NewWatcher creates a watcher for paths. Each path must exist.
func NewWatcher(paths []string, callback ChangeCallback, opts ...WatcherOption) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("no paths to watch")
	}

	w := &Watcher{
		files:         make(map[string]bool),
		dirs:          make(map[string]bool),
		callback:      callback,
		debounceDelay: DefaultDebounce,
		logger:        observability.NopLogger(),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}

	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			w.dirs[absPath] = true
		} else {
			w.files[absPath] = true
		}
	}

	for _, opt := range opts {
		opt(w)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.watcher = fsWatcher

	return w, nil
}

// Start begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	for _, dir := range w.watchedDirs() {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.running = true

	w.logger.Info("started watching",
		observability.Strings("paths", w.Paths()),
	)

	go w.watch(ctx)

	return nil
}

// Stop stops watching and releases the file system watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh

	return w.watcher.Close()
}

// Paths returns the watched paths, sorted.
func (w *Watcher) Paths() []string {
	paths := make([]string, 0, len(w.files)+len(w.dirs))
	for p := range w.files {
		paths = append(paths, p)
	}
	for p := range w.dirs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (w *Watcher) watchedDirs() []string {
	set := make(map[string]bool, len(w.files)+len(w.dirs))
	for p := range w.files {
		set[filepath.Dir(p)] = true
	}
	for p := range w.dirs {
		set[p] = true
	}
	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			owner, relevant := w.owner(event)
			if !relevant {
				continue
			}
			w.logger.Debug("watched path changed",
				observability.String("path", event.Name),
				observability.String("op", event.Op.String()),
			)
			pending[owner] = true
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.debounceDelay)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			if w.callback != nil {
				w.callback(changed)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", observability.Error(err))
			if w.errorCallback != nil {
				w.errorCallback(err)
			}
		}
	}
}

// owner maps an event to the watched path it belongs to.
func (w *Watcher) owner(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	name := filepath.Clean(event.Name)
	if w.files[name] {
		return name, true
	}
	dir := filepath.Dir(name)
	if w.dirs[dir] && !strings.HasPrefix(filepath.Base(name), ".") {
		return dir, true
	}
	return "", false
}
