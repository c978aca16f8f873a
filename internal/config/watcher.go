package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 500 * time.Millisecond

// Watcher watches for configuration changes.
type Watcher struct {
	path     string
	onReload func(*Config, error)
	current  *Config
	mu       sync.RWMutex
	reloads  atomic.Uint32
	fsw      *fsnotify.Watcher
	done     chan struct{}
	closed   sync.Once
}

// NewWatcher loads the config at path and reloads it whenever the file is written.
// onReload is called after every reload attempt with either the new config or the error.
func NewWatcher(path string, onReload func(*Config, error)) (*Watcher, error) {
	watcher := &Watcher{
		path:     filepath.Clean(ExpandPath(path)),
		onReload: onReload,
		done:     make(chan struct{}),
	}

	cfg, err := LoadAndValidate(watcher.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}
	ApplyEnv(cfg)
	watcher.current = cfg

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so editors that replace the file by rename are still seen.
	if err := fsw.Add(filepath.Dir(watcher.path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}
	watcher.fsw = fsw

	go watcher.watch()

	return watcher, nil
}

// watch watches for configuration changes.
func (cw *Watcher) watch() {
	var timer *time.Timer

	for {
		select {
		case <-cw.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-cw.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if timer != nil {
					timer.Stop()
				}

				timer = time.AfterFunc(debounce, func() {
					cw.reload()
				})
			}

		case err, ok := <-cw.fsw.Errors:
			if !ok {
				return
			}

			slog.Error("Watcher error", "error", err)
		}
	}
}

// reload reloads the config file.
func (cw *Watcher) reload() {
	select {
	case <-cw.done:
		return
	default:
	}

	count := cw.reloads.Add(1)
	slog.Info("Reloading config file", "path", cw.path, "count", count)

	cfg, err := LoadAndValidate(cw.path)
	if err != nil {
		slog.Error("Failed to reload config", "error", err)
		if cw.onReload != nil {
			cw.onReload(nil, err)
		}
		return
	}
	ApplyEnv(cfg)

	cw.mu.Lock()
	cw.current = cfg
	cw.mu.Unlock()

	slog.Info("Config reloaded successfully", "count", count)
	if cw.onReload != nil {
		cw.onReload(cfg, nil)
	}
}

// Snapshot returns the current config snapshot (thread-safe).
func (cw *Watcher) Snapshot() *Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()

	return cw.current
}

// ReloadCount returns the number of times the config has been reloaded.
func (cw *Watcher) ReloadCount() uint32 {
	return cw.reloads.Load()
}

// Close stops watching. It is safe to call more than once.
func (cw *Watcher) Close() error {
	var err error
	cw.closed.Do(func() {
		close(cw.done)
		err = cw.fsw.Close()
	})
	return err
}
