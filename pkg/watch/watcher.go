// Package watch reloads event-log sources when they change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses editor save bursts into one reload.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc is invoked with the absolute path of a changed source.
type ReloadFunc func(ctx context.Context, path string) error

// Watcher monitors source files and triggers reloads.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]*fileState
	mu       sync.RWMutex
	debounce time.Duration
	logger   zerolog.Logger

	OnReload ReloadFunc
}

type fileState struct {
	lastModified time.Time
	size         int64
	reloading    bool
	// pending records a change seen while a reload was running.
	pending bool
}

// NewWatcher creates a watcher with the default debounce.
func NewWatcher(logger zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:  fsWatcher,
		files:    make(map[string]*fileState),
		debounce: DefaultDebounce,
		logger:   logger.With().Str("component", "watch").Logger(),
	}, nil
}

// SetDebounce overrides the debounce interval.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Watch adds a file. Its directory is watched so atomic renames by
// editors are seen.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	w.mu.Lock()
	w.files[absPath] = &fileState{
		lastModified: stat.ModTime(),
		size:         stat.Size(),
	}
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	w.logger.Info().Str("path", absPath).Msg("watching source")
	return nil
}

// Run blocks until ctx is canceled, reloading watched files as they change.
func (w *Watcher) Run(ctx context.Context) error {
	timers := make(map[string]*time.Timer)
	var timerMu sync.Mutex

	defer func() {
		timerMu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		timerMu.Unlock()
		w.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}

			w.mu.RLock()
			state, watched := w.files[absPath]
			w.mu.RUnlock()
			if !watched {
				continue
			}

			timerMu.Lock()
			if t, exists := timers[absPath]; exists {
				t.Stop()
			}
			timers[absPath] = time.AfterFunc(w.debounce, func() {
				w.handleChange(ctx, absPath, state)
			})
			timerMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// handleChange reloads path if it changed. A change arriving during a
// reload is run again once that reload returns.
func (w *Watcher) handleChange(ctx context.Context, path string, state *fileState) {
	w.mu.Lock()
	if state.reloading {
		state.pending = true
		w.mu.Unlock()
		return
	}
	state.reloading = true
	w.mu.Unlock()

	for {
		w.reloadIfChanged(ctx, path, state)

		w.mu.Lock()
		if !state.pending || ctx.Err() != nil {
			state.pending = false
			state.reloading = false
			w.mu.Unlock()
			return
		}
		state.pending = false
		w.mu.Unlock()
	}
}

func (w *Watcher) reloadIfChanged(ctx context.Context, path string, state *fileState) {
	stat, err := os.Stat(path)
	if err != nil {
		// Mid-rename; the following Create event retriggers us
		w.logger.Debug().Err(err).Str("path", path).Msg("source not readable yet")
		return
	}

	w.mu.Lock()
	unchanged := stat.ModTime().Equal(state.lastModified) && stat.Size() == state.size
	state.lastModified = stat.ModTime()
	state.size = stat.Size()
	w.mu.Unlock()
	if unchanged {
		return
	}

	if w.OnReload == nil {
		return
	}
	if err := w.OnReload(ctx, path); err != nil {
		// The previously loaded log stays active
		w.logger.Error().Err(err).Str("path", path).Msg("reload failed")
		return
	}
	w.logger.Info().Str("path", path).Msg("source reloaded")
}

// Close stops the watcher without running Run's cleanup.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
