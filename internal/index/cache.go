package index

import (
	"context"
	"log/slog"
	"sync"
)

// #region cache
// Cache is the process-wide holder of the current snapshot. It loads lazily
// on first use and reloads only when the path pair changes or Invalidate is
// called. Readers get the snapshot pointer under a read lock; a reload
// builds the new snapshot outside the lock and swaps it in, so in-flight
// requests keep using the snapshot they acquired.
type Cache struct {
	mu    sync.RWMutex
	paths Paths
	snap  *Snapshot
	gen   uint64 // bumped by SetPaths and Invalidate

	loadMu sync.Mutex
	load   func(Paths) (*Snapshot, error)
	logger *slog.Logger
	loads  int
}

// NewCache creates an empty cache for the given file pair.
func NewCache(paths Paths, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{paths: paths, load: Load, logger: logger}
}

// Acquire implements Provider.
func (c *Cache) Acquire(context.Context) (Index, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the current snapshot, loading it if needed.
func (c *Cache) Snapshot() (*Snapshot, error) {
	if s := c.current(); s != nil {
		return s, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if s := c.current(); s != nil {
		return s, nil
	}

	c.mu.RLock()
	paths, gen := c.paths, c.gen
	c.mu.RUnlock()

	s, err := c.load(paths)
	if err != nil {
		return nil, err
	}
	s.paths = paths

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	if c.gen != gen {
		// Paths moved or the files were invalidated while loading; hand this
		// snapshot to the caller but do not cache it.
		return s, nil
	}
	c.snap = s
	c.logger.Info("evidence index loaded", "vectors", paths.Vectors, "mapping", paths.Mapping, "passages", s.Len())
	return s, nil
}

func (c *Cache) current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap != nil && c.snap.paths == c.paths {
		return c.snap
	}
	return nil
}

// SetPaths points the cache at a new file pair. The old snapshot is dropped
// only when the pair actually changes.
func (c *Cache) SetPaths(paths Paths) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paths == paths {
		return
	}
	c.paths = paths
	c.snap = nil
	c.gen++
}

// Paths returns the configured file pair.
func (c *Cache) Paths() Paths {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paths
}

// Invalidate forces the next Acquire to reload from disk.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.gen++
	c.mu.Unlock()
	c.logger.Info("evidence index invalidated")
}

// Loads returns how many times the cache has read from disk.
func (c *Cache) Loads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loads
}

// #endregion cache
