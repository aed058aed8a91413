package tts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ModelCache lazily loads one model instance per variant and keeps it for
// the lifetime of the process. There is no eviction policy: entries leave
// the cache only through Clear. Construction cost dominates everything
// else this package does, so the cache exists purely to amortize it.
//
// A cache has an explicit lifecycle: constructed once at process start,
// injected into the dispatcher, cleared or abandoned at teardown.
type ModelCache struct {
	load LoadFunc
	log  *slog.Logger

	mu     sync.RWMutex
	models map[Variant]Model

	group singleflight.Group
}

// NewModelCache returns an empty cache that constructs models via load.
func NewModelCache(load LoadFunc, log *slog.Logger) *ModelCache {
	if log == nil {
		log = slog.Default()
	}
	return &ModelCache{
		load:   load,
		log:    log,
		models: make(map[Variant]Model),
	}
}

// Get returns the loaded model for v, constructing it on first use.
// Concurrent first callers for the same variant share a single
// construction; callers for different variants load independently. A
// failed construction leaves the cache untouched and returns a *LoadError
// carrying the cause.
func (c *ModelCache) Get(ctx context.Context, v Variant) (Model, error) {
	c.mu.RLock()
	m, ok := c.models[v]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	res, err, _ := c.group.Do(string(v), func() (any, error) {
		// A racing caller may have finished the load while this one was
		// queued behind the flight group.
		c.mu.RLock()
		m, ok := c.models[v]
		c.mu.RUnlock()
		if ok {
			return m, nil
		}

		c.log.Info("loading model", slog.String("variant", string(v)))
		start := time.Now()

		m, err := c.load(ctx, v)
		if err != nil {
			c.log.Error("model load failed",
				slog.String("variant", string(v)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		c.mu.Lock()
		c.models[v] = m
		c.mu.Unlock()

		c.log.Info("model loaded",
			slog.String("variant", string(v)),
			slog.Int64("load_ms", time.Since(start).Milliseconds()),
		)
		return m, nil
	})
	if err != nil {
		return nil, &LoadError{Variant: v, Err: err}
	}

	return res.(Model), nil
}

// Clear removes every entry, closes the models, and returns the number of
// entries removed. Safe to call on an empty cache. Close failures are
// logged and otherwise ignored; the memory reclaim is best effort.
func (c *ModelCache) Clear() int {
	c.mu.Lock()
	removed := c.models
	c.models = make(map[Variant]Model)
	c.mu.Unlock()

	for v, m := range removed {
		if err := m.Close(); err != nil {
			c.log.Warn("closing model",
				slog.String("variant", string(v)),
				slog.String("error", err.Error()),
			)
		}
	}

	return len(removed)
}

// Status reports, for every known variant, whether a model is currently
// loaded. It never triggers a load.
func (c *ModelCache) Status() map[Variant]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := make(map[Variant]bool, len(Variants()))
	for _, v := range Variants() {
		_, loaded := c.models[v]
		status[v] = loaded
	}
	return status
}
