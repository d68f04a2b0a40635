// Package matchcache holds one Matcher per catalog version and builds it at
// most once, however many requests ask for it concurrently.
package matchcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/garyellow/region-matcher/internal/logger"
	"github.com/garyellow/region-matcher/internal/matcher"
	"github.com/garyellow/region-matcher/internal/metrics"
	"github.com/garyellow/region-matcher/internal/region"
)

const cacheName = "matcher"

// binding ties a source to the catalog version it last produced.
type binding struct {
	version     string
	fingerprint string
	loadedAt    time.Time
}

// Cache maps catalog sources to built matchers. Matchers are shared by
// catalog version, so two sources with identical content share one Matcher.
type Cache struct {
	group singleflight.Group

	mu        sync.RWMutex
	sources   map[string]binding
	byVersion map[string]*matcher.Matcher

	opts    []matcher.Option
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New creates an empty cache. opts are passed to every matcher.New call.
func New(log *logger.Logger, m *metrics.Metrics, opts ...matcher.Option) *Cache {
	if log == nil {
		log = logger.Discard()
	}
	return &Cache{
		sources:   make(map[string]binding),
		byVersion: make(map[string]*matcher.Matcher),
		opts:      opts,
		log:       log.WithModule("matchcache"),
		metrics:   m,
	}
}

// Get returns the matcher for src, loading the catalog and building the
// matcher on first use.
//
// Concurrent callers for the same source wait on one build. The build runs
// detached from ctx so that a caller giving up does not fail the others;
// ctx only bounds how long this caller waits.
func (c *Cache) Get(ctx context.Context, src region.Source) (*matcher.Matcher, error) {
	if m, ok := c.lookup(src.Name()); ok {
		if c.metrics != nil {
			c.metrics.RecordCacheHit(cacheName)
		}
		return m, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(cacheName)
	}

	ch := c.group.DoChan(src.Name(), func() (any, error) {
		return c.build(context.WithoutCancel(ctx), src)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared && c.metrics != nil {
			c.metrics.RecordSingleflightDedup(cacheName)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*matcher.Matcher), nil
	}
}

func (c *Cache) lookup(name string) (*matcher.Matcher, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.sources[name]
	if !ok {
		return nil, false
	}
	m, ok := c.byVersion[b.version]
	return m, ok
}

func (c *Cache) build(ctx context.Context, src region.Source) (*matcher.Matcher, error) {
	if m, ok := c.lookup(src.Name()); ok {
		return m, nil
	}

	start := time.Now()
	log := c.log.WithField("source", src.Name())

	var fingerprint string
	if fp, ok := src.(region.Fingerprinter); ok {
		var err error
		if fingerprint, err = fp.Fingerprint(ctx); err != nil {
			log.WithError(err).Warn("Catalog fingerprint unavailable")
		}
	}

	catalog, err := src.Load(ctx)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordCatalogLoad(src.Name(), "error", 0)
		}
		return nil, fmt.Errorf("matchcache: load %s: %w", src.Name(), err)
	}
	if c.metrics != nil {
		c.metrics.RecordCatalogLoad(src.Name(), "success", len(catalog.Dropped))
	}

	version := catalog.Version()

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.byVersion[version]
	if !ok {
		m, err = matcher.New(catalog, append([]matcher.Option{matcher.WithLogger(c.log)}, c.opts...)...)
		if err != nil {
			return nil, fmt.Errorf("matchcache: build matcher: %w", err)
		}
		c.byVersion[version] = m
	}
	c.sources[src.Name()] = binding{
		version:     version,
		fingerprint: fingerprint,
		loadedAt:    time.Now(),
	}
	c.prune()

	log.WithFields(map[string]any{
		"version":     version,
		"addresses":   len(catalog.Addresses()),
		"dropped":     len(catalog.Dropped),
		"reused":      ok,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Catalog loaded")

	return m, nil
}

// prune drops matchers no source refers to. Caller holds c.mu.
func (c *Cache) prune() {
	live := make(map[string]struct{}, len(c.sources))
	for _, b := range c.sources {
		live[b.version] = struct{}{}
	}
	for v := range c.byVersion {
		if _, ok := live[v]; !ok {
			delete(c.byVersion, v)
		}
	}
}

// Invalidate forgets src so the next Get reloads it. Requests holding the
// old matcher keep using it.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.sources, name)
	c.prune()
	c.mu.Unlock()
	c.group.Forget(name)
	c.log.WithField("source", name).Info("Catalog invalidated")
}

// Refresh reloads src when its fingerprint changed since the last load.
// Sources without a fingerprint, or not yet loaded, are left alone.
// It reports whether a reload happened.
func (c *Cache) Refresh(ctx context.Context, src region.Source) (bool, error) {
	fp, ok := src.(region.Fingerprinter)
	if !ok {
		return false, nil
	}

	c.mu.RLock()
	b, loaded := c.sources[src.Name()]
	c.mu.RUnlock()
	if !loaded {
		return false, nil
	}

	current, err := fp.Fingerprint(ctx)
	if err != nil {
		return false, fmt.Errorf("matchcache: fingerprint %s: %w", src.Name(), err)
	}
	if current == b.fingerprint {
		return false, nil
	}

	c.Invalidate(src.Name())
	if _, err := c.Get(ctx, src); err != nil {
		return true, err
	}
	return true, nil
}

// Status describes a loaded source.
type Status struct {
	Source   string    `json:"source"`
	Version  string    `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Loaded lists the sources currently bound to a matcher.
func (c *Cache) Loaded() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Status, 0, len(c.sources))
	for name, b := range c.sources {
		out = append(out, Status{Source: name, Version: b.version, LoadedAt: b.loadedAt})
	}
	return out
}
