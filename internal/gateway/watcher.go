package gateway

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"parley/internal/config"
	"parley/pkg/logger"
)

const debounceDelay = 100 * time.Millisecond

// Watcher monitors the config file and applies reloadable settings
// without a restart. Only the log level is hot-reloaded; everything
// else requires a restart.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	stopCh   chan struct{}
	debounce *time.Timer
	mu       sync.Mutex
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: w,
		path:    path,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for config changes.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.path); err != nil {
		return err
	}

	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Editors often replace the file, which shows up as create.
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("Config watcher error")
		}
	}
}

// scheduleReload debounces bursts of file events into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := config.Reload()
	if err != nil {
		logger.Warn().Err(err).Str("path", w.path).Msg("Config reload failed, keeping current settings")
		return
	}

	logger.SetLevel(cfg.Log.Level)
	logger.Info().Str("level", cfg.Log.Level).Msg("Config reloaded")
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)

	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()

	w.watcher.Close()
}
