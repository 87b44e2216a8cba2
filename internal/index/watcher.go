package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// #region watcher
// Watcher invalidates a Cache when either snapshot file is rewritten.
type Watcher struct {
	watcher *fsnotify.Watcher
	cache   *Cache
	logger  *slog.Logger
}

// NewWatcher watches the directories holding the cache's files.
func NewWatcher(cache *Cache, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	paths := cache.Paths()
	dirs := map[string]bool{
		filepath.Dir(paths.Vectors): true,
		filepath.Dir(paths.Mapping): true,
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return &Watcher{watcher: w, cache: cache, logger: logger}, nil
}

// Run blocks, invalidating the cache on relevant events, until ctx is done
// or the watcher is closed. invalidated, if non-nil, receives the changed
// file name after each invalidation.
func (w *Watcher) Run(ctx context.Context, invalidated chan<- string) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.cache.Invalidate()
			w.logger.Info("index file changed", "file", event.Name, "op", event.Op.String())
			if invalidated != nil {
				select {
				case invalidated <- event.Name:
				case <-ctx.Done():
					return
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("index watcher error", "err", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	paths := w.cache.Paths()
	name := filepath.Clean(event.Name)
	return name == filepath.Clean(paths.Vectors) || name == filepath.Clean(paths.Mapping)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// #endregion watcher
