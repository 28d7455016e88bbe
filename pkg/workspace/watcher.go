package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-tags source files under a root as they change.
//
//	watcher, err := NewWatcher(runner, opts, DefaultWatchOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := watcher.Start(root); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
type Watcher struct {
	fs     *fsnotify.Watcher
	runner *Runner
	opts   Options
	watch  WatchOptions
	logger *slog.Logger
	root   string

	timers  map[string]*time.Timer
	timerMu sync.Mutex

	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex

	rewrites atomic.Int64
	failures atomic.Int64
}

// NewWatcher creates a watcher. Nothing is watched until Start.
func NewWatcher(runner *Runner, opts Options, watch WatchOptions, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	if watch.Debounce <= 0 {
		watch.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts = opts.withDefaults()
	if err := validatePatterns(opts.Include); err != nil {
		fsw.Close()
		return nil, err
	}
	if err := validatePatterns(opts.Exclude); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		fs:       fsw,
		runner:   runner,
		opts:     opts,
		watch:    watch,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		stopChan: make(chan struct{}),
	}, nil
}

// Start watches root and every non-excluded directory below it.
func (w *Watcher) Start(root string) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return errors.New("watcher already stopped")
	}
	w.root = root
	if w.opts.OutDir != "" {
		w.opts.Exclude = append(w.opts.Exclude, outDirExclusion(root, w.opts.OutDir)...)
	}
	w.mu.Unlock()

	if err := w.addTree(root); err != nil {
		return err
	}

	w.logger.Info("file watcher started", "root", root)

	go w.eventLoop()
	return nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.opts.excludesDir(w.root, path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Stop stops the watcher and cancels pending rewrites. Safe to call more
// than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopChan)

	w.timerMu.Lock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.timerMu.Unlock()

	err := w.fs.Close()
	w.logger.Info("file watcher stopped",
		"rewrites", w.rewrites.Load(),
		"failures", w.failures.Load())
	return err
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.opts.excludesDir(w.root, path) {
				if err := w.addTree(path); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if !w.opts.Matches(w.root, path) {
		return
	}

	w.logger.Debug("file event", "op", event.Op.String(), "file", path)

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		w.schedule(path)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.runner.Index().Remove(path)
	}
}

// schedule rewrites path once events for it stop arriving for the debounce
// interval.
func (w *Watcher) schedule(path string) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if timer, exists := w.timers[path]; exists {
		timer.Stop()
	}

	w.timers[path] = time.AfterFunc(w.watch.Debounce, func() {
		w.timerMu.Lock()
		delete(w.timers, path)
		w.timerMu.Unlock()

		w.rewrite(path)
	})
}

func (w *Watcher) rewrite(path string) {
	outcome, err := w.runner.RewriteFile(path, w.runner.fileOptions(w.root, path, w.opts))
	if err != nil {
		w.failures.Add(1)
		w.logger.Warn("failed to rewrite file", "file", path, "error", err)
	} else if outcome.Written {
		w.rewrites.Add(1)
		w.logger.Info("tagged file", "file", path, "tags", len(outcome.Tags))
	}

	if w.watch.OnRewrite != nil {
		w.watch.OnRewrite(outcome, err)
	}
}

// GetStats returns watcher statistics.
func (w *Watcher) GetStats() WatcherStats {
	w.timerMu.Lock()
	pending := len(w.timers)
	w.timerMu.Unlock()

	w.mu.Lock()
	running := !w.stopped
	w.mu.Unlock()

	return WatcherStats{
		PendingRewrites: pending,
		Rewrites:        w.rewrites.Load(),
		Failures:        w.failures.Load(),
		IsRunning:       running,
	}
}

// WatcherStats contains watcher statistics.
type WatcherStats struct {
	PendingRewrites int
	Rewrites        int64
	Failures        int64
	IsRunning       bool
}
