package manifest

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/autoblog/autoblog-procman/pkg/errors"
	"github.com/autoblog/autoblog-procman/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

const DefaultReloadDebounce = 1500 * time.Millisecond

// Watcher reloads a manifest file when it changes and hands every
// successfully loaded manifest to the registered handlers.
// A failed reload keeps the previous manifest.
type Watcher struct {
	path        string
	debounce    time.Duration
	loadOptions []LoadOption
	onError     func(error)
	logger      logging.Logger

	mu       sync.RWMutex
	current  *Manifest
	handlers []func(*Manifest)

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must stay quiet before a reload
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithErrorHandler is called with every failed reload
func WithErrorHandler(handler func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = handler
	}
}

// WithLoadOptions forwards options to every LoadManifest call
func WithLoadOptions(opts ...LoadOption) WatcherOption {
	return func(w *Watcher) {
		w.loadOptions = append(w.loadOptions, opts...)
	}
}

func NewWatcher(path string, logger logging.Logger, opts ...WatcherOption) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:     path,
		debounce: DefaultReloadDebounce,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload registers a handler and returns a function removing it
func (w *Watcher) OnReload(handler func(*Manifest)) func() {
	w.mu.Lock()
	w.handlers = append(w.handlers, handler)
	idx := len(w.handlers) - 1
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.handlers[idx] = nil
	}
}

// Current returns the last manifest that loaded successfully
func (w *Watcher) Current() *Manifest {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start loads the manifest once and begins watching. The initial load must
// succeed, otherwise there is nothing to fall back to.
func (w *Watcher) Start() error {
	if w.watcher != nil {
		return errors.NewInternalError("manifest watcher already started", nil).WithContext("filename", w.path)
	}

	initial, err := LoadManifest(w.path, w.loadOptions...)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = initial
	w.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternalError("failed to create file watcher", err)
	}

	// Watch the directory: editors often replace the file, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return errors.NewIOError("failed to watch manifest directory", err).WithContext("filename", w.path)
	}
	w.watcher = watcher

	w.logger.Infof("Manifest watcher started, file: %s, debounce: %v", w.path, w.debounce)
	go w.watch()
	return nil
}

// Stop ends watching and waits for the watch loop to exit
func (w *Watcher) Stop() error {
	w.cancel()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) watch() {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time
	target := filepath.Clean(w.path)

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Debugf("Manifest watcher stopped, file: %s", w.path)
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debugf("Manifest change detected, file: %s, op: %s", w.path, event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("Manifest watcher error, file: %s, error: %v", w.path, err)
		}
	}
}

func (w *Watcher) reload() {
	manifest, err := LoadManifest(w.path, w.loadOptions...)
	if err != nil {
		w.logger.Warnf("Manifest reload failed, keeping previous manifest, file: %s, error: %v", w.path, err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	w.current = manifest
	handlers := make([]func(*Manifest), 0, len(w.handlers))
	for _, h := range w.handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	w.mu.Unlock()

	w.logger.Infof("Manifest reloaded, file: %s, processes: %d", w.path, manifest.Len())
	for _, handler := range handlers {
		handler(manifest)
	}
}
