package server

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ModuleWatcher monitors the loaded module file and fires onChange after
// writes settle. Editors produce bursts of events, so changes are
// debounced before the reload runs.
type ModuleWatcher struct {
	watcher    *fsnotify.Watcher
	modulePath string
	debounce   time.Duration
	onChange   func()
	logger     zerolog.Logger

	timerMu sync.Mutex
	timer   *time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// NewModuleWatcher creates a watcher for the module at path.
func NewModuleWatcher(path string, debounce time.Duration, onChange func(), logger zerolog.Logger) (*ModuleWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	return &ModuleWatcher{
		watcher:    watcher,
		modulePath: abs,
		debounce:   debounce,
		onChange:   onChange,
		logger:     logger,
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching the module's directory. The directory rather
// than the file is watched because editors replace files on save.
func (w *ModuleWatcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.modulePath)); err != nil {
		return fmt.Errorf("failed to watch module directory: %w", err)
	}

	go w.eventLoop()

	w.logger.Info().Str("module", w.modulePath).Msg("Module watcher started")
	return nil
}

// Stop stops the watcher.
func (w *ModuleWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *ModuleWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Module watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *ModuleWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.modulePath {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
		default:
			w.logger.Debug().Str("module", w.modulePath).Msg("Module changed, reloading")
			w.onChange()
		}
	})
}
