package checklist

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher invalidates cached checklist payloads when their backing files
// change, so edits to the data directory take effect without a restart.
// Rapid save bursts are debounced before the cache entry is dropped.
type Watcher struct {
	mu      sync.Mutex
	store   *Store
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	pending map[string]time.Time
	settle  time.Duration
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher builds a watcher over the store's data directory. Call
// Start to begin watching.
func NewWatcher(store *Store, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		store:   store,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]time.Time),
		settle:  500 * time.Millisecond,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching the data directory. Watch registration failure
// is logged and tolerated so a missing directory does not block startup.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.store.Dir()); err != nil {
		w.logger.Warn("checklist watch registration failed",
			zap.String("dir", w.store.Dir()), zap.Error(err))
	} else {
		w.logger.Info("watching checklist directory", zap.String("dir", w.store.Dir()))
	}

	go w.run(ctx)
}

// Stop halts the watcher and waits for its loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("error closing checklist watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("checklist watcher error", zap.Error(err))
		case <-ticker.C:
			w.flushSettled(ctx)
		}
	}
}

// handleEvent records a change to one of the checklist files for
// debounced processing. Other files and chmod-only events are ignored.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if _, ok := cacheKeyForFile(name); !ok {
		return
	}
	w.mu.Lock()
	w.pending[name] = time.Now()
	w.mu.Unlock()
}

// flushSettled invalidates cache entries for files whose last change is
// older than the settle window.
func (w *Watcher) flushSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for name, last := range w.pending {
		if now.Sub(last) >= w.settle {
			settled = append(settled, name)
			delete(w.pending, name)
		}
	}
	w.mu.Unlock()

	for _, name := range settled {
		w.logger.Info("checklist file changed", zap.String("file", name))
		w.store.InvalidateFile(ctx, name)
	}
}
