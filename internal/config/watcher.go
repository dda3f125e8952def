package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback is called when the watchlist file is successfully
// reloaded. Errors from the callback are logged; the watcher keeps going.
type ReloadCallback func(wl *WatchlistFile) error

// WatcherConfig holds configuration for the WatchlistWatcher.
type WatcherConfig struct {
	// FilePath is the watchlist YAML file to watch.
	FilePath string

	// DebounceMillis coalesces bursts of file change events into one
	// reload. Defaults to 500ms.
	DebounceMillis int
}

// WatchlistWatcher watches the watchlist file and triggers reload
// callbacks with debouncing. An invalid file during reload is logged and
// the previous valid watchlist stays in effect.
type WatchlistWatcher struct {
	config   WatcherConfig
	callback ReloadCallback
	logger   *slog.Logger
	cancel   context.CancelFunc
	stopped  chan struct{}
	ready    chan struct{}
	mu       sync.Mutex

	debounceTimer *time.Timer
}

// NewWatchlistWatcher creates a watcher for the given file.
func NewWatchlistWatcher(config WatcherConfig, callback ReloadCallback, logger *slog.Logger) (*WatchlistWatcher, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("FilePath cannot be empty")
	}
	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}
	if config.DebounceMillis == 0 {
		config.DebounceMillis = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchlistWatcher{
		config:   config,
		callback: callback,
		logger:   logger,
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}, nil
}

// Start loads the initial watchlist, invokes the callback with it, then
// watches for changes in the background. Fails fast if the initial load or
// callback fails.
func (w *WatchlistWatcher) Start(ctx context.Context) error {
	initial, err := LoadWatchlist(w.config.FilePath)
	if err != nil {
		return fmt.Errorf("loading initial watchlist: %w", err)
	}
	if err := w.callback(initial); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}
	w.logger.Info("watchlist loaded", "path", w.config.FilePath, "companies", len(initial.Companies))

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.watchLoop(watchCtx)

	// Block until the fsnotify watch is registered so changes right after
	// Start are not missed.
	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for file watcher to initialize")
	}
	return nil
}

func (w *WatchlistWatcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *WatchlistWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("creating file watcher", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.FilePath); err != nil {
		w.logger.Error("watching file", "path", w.config.FilePath, "error", err)
		return
	}
	w.logger.Debug("watching watchlist for changes",
		"path", w.config.FilePath, "debounce_ms", w.config.DebounceMillis)
	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// Atomic writes unlink and replace the file, which invalidates
			// the watch on the old inode.
			if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				time.Sleep(50 * time.Millisecond)
				if err := watcher.Add(w.config.FilePath); err != nil {
					w.logger.Warn("re-adding watch", "op", event.Op.String(), "error", err)
				}
			}
			w.handleFileChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// handleFileChange debounces by resetting a timer on each event.
func (w *WatchlistWatcher) handleFileChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(
		time.Duration(w.config.DebounceMillis)*time.Millisecond,
		w.reload,
	)
}

func (w *WatchlistWatcher) reload() {
	wl, err := LoadWatchlist(w.config.FilePath)
	if err != nil {
		w.logger.Warn("watchlist reload failed, keeping previous", "error", err)
		return
	}
	if err := w.callback(wl); err != nil {
		w.logger.Warn("watchlist reload callback failed", "error", err)
		return
	}
	w.logger.Info("watchlist reloaded", "path", w.config.FilePath, "companies", len(wl.Companies))
}

// Stop cancels the watch loop and waits for it to exit.
func (w *WatchlistWatcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	select {
	case <-w.stopped:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for watcher to stop")
	}
}
