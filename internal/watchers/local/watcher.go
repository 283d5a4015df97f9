// Package local watches the data directory for changes
package local

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fakturo/fakturo/pkg/errors"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatcherConfig holds watcher configuration
type WatcherConfig struct {
	// DebounceDelay is how long to wait after the last event before
	// firing the change callback
	DebounceDelay time.Duration
}

// DefaultWatcherConfig returns the default watcher configuration
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		DebounceDelay: 2 * time.Second,
	}
}

// FakturoLocalWatcher watches the data directory tree and invokes a
// callback once per burst of filesystem events. Edits from the invoice
// app arrive as clusters of writes, so events are debounced rather than
// forwarded one by one.
type FakturoLocalWatcher struct {
	root     string
	onChange func()
	config   *WatcherConfig
	logger   *zap.Logger

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewFakturoLocalWatcher creates a watcher over root. onChange runs on
// the watcher goroutine after each debounced burst.
func NewFakturoLocalWatcher(root string, config *WatcherConfig, onChange func()) (*FakturoLocalWatcher, error) {
	if root == "" {
		return nil, errors.NewConfigError("watch root is required", nil)
	}
	if onChange == nil {
		return nil, errors.NewConfigError("change callback is required", nil)
	}
	if config == nil {
		config = DefaultWatcherConfig()
	}

	return &FakturoLocalWatcher{
		root:     root,
		onChange: onChange,
		config:   config,
		logger:   fklogger.Get().With(zap.String("component", "local_watcher")),
	}, nil
}

// Start begins watching. Idempotent.
func (w *FakturoLocalWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewStorageError("failed to create filesystem watcher", err)
	}

	if err := addRecursive(watcher, w.root); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.isRunning = true
	w.stopChan = make(chan struct{})

	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("Local watcher started", zap.String("root", w.root))
	return nil
}

// Stop stops watching and waits for the event loop to exit. Idempotent.
func (w *FakturoLocalWatcher) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	close(w.stopChan)
	w.mu.Unlock()

	w.wg.Wait()
	w.watcher.Close()
	w.logger.Info("Local watcher stopped")
}

func (w *FakturoLocalWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event) {
				continue
			}
			// New subdirectories join the watch set as they appear
			if event.Op.Has(fsnotify.Create) {
				if err := addRecursive(w.watcher, event.Name); err == nil {
					w.logger.Debug("Watching new path", zap.String("path", event.Name))
				}
			}
			if debounce == nil {
				debounce = time.NewTimer(w.config.DebounceDelay)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(w.config.DebounceDelay)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			w.logger.Debug("Change burst settled")
			w.onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// shouldIgnore filters editor temp files, hidden files and bare chmods
func (w *FakturoLocalWatcher) shouldIgnore(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return true
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch {
	case strings.HasSuffix(name, ".tmp"),
		strings.HasSuffix(name, ".swp"),
		strings.HasSuffix(name, "~"):
		return true
	}
	return false
}

// addRecursive adds path and every directory below it to the watch set.
// Non-directories are skipped silently so it is safe to call with the
// path from a file creation event.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), ".") && path != root {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return errors.NewStorageError("failed to watch "+path, err)
		}
		return nil
	})
}
