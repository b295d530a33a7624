package preset

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	mu       *sync.Mutex
	path     string
	onChange func(*Preset)
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
	done     chan struct{}
}

// Watcher reloads a preset file whenever it changes on disk.
type Watcher interface {
	// Start begins watching. onChange runs on the watcher goroutine for every successful reload.
	//
	// Parameters:
	//   - ctx: stops the watcher when cancelled
	//
	// Returns:
	//   - error: error if the directory cannot be watched
	Start(ctx context.Context) error

	// Stop stops watching and waits for the watcher goroutine.
	Stop() error
}

var _ Watcher = &watcher{}

// NewWatcher creates a Watcher for the preset file at path.
//
// Parameters:
//   - path: the preset file
//   - onChange: called with every reloaded preset
//   - options: functional options to configure the watcher
//
// Returns:
//   - Watcher: the watcher, not yet started
//   - error: error if the file system watcher cannot be created
func NewWatcher(path string, onChange func(*Preset), options ...WatcherBuilderOption) (Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}
	w := &watcher{
		mu:       &sync.Mutex{},
		path:     filepath.Clean(path),
		onChange: onChange,
		fs:       fs,
		debounce: 200 * time.Millisecond,
	}
	for _, opt := range options {
		opt(w)
	}
	if w.logger == nil {
		w.logger = common.Logger().Named("preset")
	}
	return w, nil
}

func (w *watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return nil
	}

	// Editors replace files by rename, so the directory is watched instead of the file.
	dir := filepath.Dir(w.path)
	if err := w.fs.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	w.done = make(chan struct{})
	w.logger.Info("watching preset", zap.String("path", w.path))

	timer := time.NewTimer(0)
	<-timer.C

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-w.fs.Events:
				if !ok {
					return
				}
				if w.relevant(event) {
					timer.Reset(w.debounce)
				}
			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				w.logger.Error("watcher error", zap.Error(err))
			case <-timer.C:
				w.reload()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (w *watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}

func (w *watcher) reload() {
	p, err := Load(w.path)
	if err != nil {
		w.logger.Warn("preset reload failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("preset reloaded", zap.String("path", w.path))
	if w.onChange != nil {
		w.onChange(p)
	}
}

func (w *watcher) Stop() error {
	err := w.fs.Close()
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}
	return err
}
