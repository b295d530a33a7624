package preset

import (
	"time"

	"go.uber.org/zap"
)

// WatcherBuilderOption is a functional option applied to a watcher during construction via NewWatcher.
type WatcherBuilderOption func(*watcher)

// WithDebounce sets how long the watcher waits after the last change before reloading.
//
// Parameters:
//   - d: the debounce interval
//
// Returns:
//   - WatcherBuilderOption: a function that applies the debounce option to a watcher
func WithDebounce(d time.Duration) WatcherBuilderOption {
	return func(w *watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger of the watcher.
func WithLogger(l *zap.Logger) WatcherBuilderOption {
	return func(w *watcher) {
		if l != nil {
			w.logger = l.Named("preset")
		}
	}
}
