// Package watcher monitors the local database file and triggers a pending
// sync after writes settle, so changes made by other processes reach the
// remote tree without polling.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"todosync/internal/utils"
)

const (
	// DefaultDebounceDuration batches rapid change bursts.
	DefaultDebounceDuration = 500 * time.Millisecond

	// DefaultQuietPeriod is how long the file must stay untouched before a
	// sync fires. Avoids syncing mid-transaction.
	DefaultQuietPeriod = 2 * time.Second
)

// Config holds file watcher configuration.
type Config struct {
	// DBPath is the database file to monitor. The parent directory is
	// watched so journal and WAL sibling files count as activity too.
	DBPath           string
	DebounceDuration time.Duration
	QuietPeriod      time.Duration
	// OnChange is called after changes settle. Runs on the watcher's
	// event goroutine.
	OnChange func()
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dbPath string, onChange func()) *Config {
	return &Config{
		DBPath:           dbPath,
		DebounceDuration: DefaultDebounceDuration,
		QuietPeriod:      DefaultQuietPeriod,
		OnChange:         onChange,
	}
}

// Watcher monitors database file changes and triggers sync operations.
type Watcher struct {
	cfg     *Config
	fsw     *fsnotify.Watcher
	logger  *utils.Logger
	stopCh  chan struct{}
	stopped bool
	mu      sync.Mutex
}

// New creates a new Watcher instance.
func New(cfg *Config) (*Watcher, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = DefaultDebounceDuration
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		logger: utils.GetLogger(),
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins watching the database directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher has been stopped and cannot be restarted")
	}
	w.mu.Unlock()

	// Watch the directory, not the file: sqlite replaces and creates
	// sibling files during commits, and a watched inode goes stale on
	// rename.
	dir := filepath.Dir(w.cfg.DBPath)
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	go w.eventLoop()
	utils.Debugf("watcher: monitoring %s", w.cfg.DBPath)
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	_ = w.fsw.Close()
}

// relevant reports whether an event touches the database or one of its
// journal siblings (tasks.db-wal, tasks.db-journal, ...).
func (w *Watcher) relevant(name string) bool {
	return strings.HasPrefix(filepath.Clean(name), filepath.Clean(w.cfg.DBPath))
}

// eventLoop processes fsnotify events with debouncing and a quiet period.
func (w *Watcher) eventLoop() {
	var debounceTimer *time.Timer
	var quietTimer *time.Timer

	debounceCh := make(chan struct{}, 1)
	quietCh := make(chan struct{}, 1)

	resetDebounce := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(w.cfg.DebounceDuration, func() {
			select {
			case debounceCh <- struct{}{}:
			default:
			}
		})
	}

	resetQuiet := func() {
		if quietTimer != nil {
			quietTimer.Stop()
		}
		if w.cfg.QuietPeriod > 0 {
			quietTimer = time.AfterFunc(w.cfg.QuietPeriod, func() {
				select {
				case quietCh <- struct{}{}:
				default:
				}
			})
		}
	}

	pendingSync := false

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			if quietTimer != nil {
				quietTimer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}

			if w.cfg.QuietPeriod > 0 {
				// Sync fires only after the quiet period elapses
				// without new writes.
				pendingSync = true
				resetQuiet()
			} else {
				resetDebounce()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: %v", err)

		case <-debounceCh:
			if w.cfg.OnChange != nil {
				w.cfg.OnChange()
			}

		case <-quietCh:
			if pendingSync && w.cfg.OnChange != nil {
				w.cfg.OnChange()
				pendingSync = false
			}
		}
	}
}
