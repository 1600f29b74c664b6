package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/vigil/errors"
)

// ReloadCallback receives the re-read configuration after the watched
// file changes.
type ReloadCallback func(*Config) error

// Watcher watches a config file and invokes reload callbacks with a
// debounce, so editors that write in several bursts trigger one reload.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	log     *zap.SugaredLogger

	mu            sync.Mutex
	callbacks     []ReloadCallback
	debounceTimer *time.Timer

	debouncePeriod time.Duration
	done           chan struct{}
}

// NewWatcher starts watching the given config file.
func NewWatcher(path string, log *zap.SugaredLogger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch config file %s", path)
	}

	w := &Watcher{
		path:           path,
		watcher:        fsw,
		log:            log,
		debouncePeriod: 500 * time.Millisecond,
		done:           make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// OnReload registers a callback invoked after each reload.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, cb)
	w.mu.Unlock()
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnw("config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces rapid successive writes into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := LoadFromFile(w.path)
	if err != nil {
		w.log.Errorw("config reload failed", "file", w.path, "error", err)
		return
	}

	w.mu.Lock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			w.log.Errorw("config reload callback failed", "error", err)
		}
	}
	w.log.Infow("configuration reloaded", "file", w.path)
}
