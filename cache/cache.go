// Package cache memoizes recognition results keyed by submission
// fingerprint. Identical content recognized with identical options is
// served from memory instead of being recognized again.
//
// Concurrent requests for the same fingerprint are coalesced into a
// single computation. A bypass request supersedes any computation
// already in flight for its fingerprint: the running computation is
// canceled and a fresh one starts, and every waiter, including those
// that attached before the bypass arrived, receives the fresh result.
package cache

import (
	"context"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/submission"
)

const (
	// DefaultMaxEntries bounds the store when Config.MaxEntries is zero.
	DefaultMaxEntries = 1024

	// DefaultTTL is applied when Config.TTL is zero. Entries older than
	// the TTL are treated as absent.
	DefaultTTL = 24 * time.Hour
)

// ComputeFunc produces the result for a fingerprint that is not cached.
// Job-level failures travel inside the returned result; the error return
// is reserved for infrastructure refusals that produced no result at
// all, and is delivered identically to every attached waiter.
type ComputeFunc func(ctx context.Context) (submission.RecognitionResult, error)

// Config controls cache capacity and lifetime.
type Config struct {
	// MaxEntries caps the number of stored results. Least recently
	// used entries are evicted beyond it.
	MaxEntries int

	// TTL is the maximum age of a stored result.
	TTL time.Duration

	Logger  observability.Logger
	Metrics observability.Metrics
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Bypasses  int64
	Evictions int64
	Entries   int
}

// flight is one in-progress computation. All fields except done are
// guarded by the cache mutex. done is closed exactly once, after result
// and err have been written, and never reopened; a superseding bypass
// replaces the computation behind the flight but keeps the same done
// channel so earlier waiters see the superseding outcome.
type flight struct {
	done     chan struct{}
	result   submission.RecognitionResult
	err      error
	run      int
	cancel   context.CancelFunc
	waiters  int
	bypassed bool
}

// Cache is a bounded, TTL-aware result store with request coalescing.
type Cache struct {
	cfg     Config
	log     observability.Logger
	metrics observability.Metrics

	store *expirable.LRU[string, submission.RecognitionResult]

	mu      sync.Mutex
	flights map[submission.Fingerprint]*flight

	hits      atomic.Int64
	misses    atomic.Int64
	bypasses  atomic.Int64
	evictions atomic.Int64
}

// New builds a Cache. Zero config fields fall back to defaults.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NopMetrics{}
	}
	c := &Cache{
		cfg:     cfg,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		flights: make(map[submission.Fingerprint]*flight),
	}
	c.store = expirable.NewLRU(cfg.MaxEntries, c.onEvict, cfg.TTL)
	return c
}

// onEvict runs under the store's internal lock and must not touch c.mu.
func (c *Cache) onEvict(key string, _ submission.RecognitionResult) {
	c.evictions.Add(1)
	c.metrics.Count(observability.MetricCacheEvictions, 1)
	c.log.Debug("cache entry evicted", observability.String("fingerprint", key))
}

// GetOrCompute returns the result for fp, computing it at most once per
// concurrent burst of callers. With bypass set, the stored entry is
// ignored and any in-flight computation for fp is superseded; the
// recomputed result overwrites the stored one.
//
// A non-nil error is either ctx expiring while waiting or the
// computation's own error. The computation keeps running while any
// waiter remains attached; the last waiter to detach cancels it.
func (c *Cache) GetOrCompute(ctx context.Context, fp submission.Fingerprint, bypass bool, compute ComputeFunc) (submission.RecognitionResult, error) {
	if err := ctx.Err(); err != nil {
		return submission.RecognitionResult{}, err
	}

	c.mu.Lock()
	if !bypass {
		if res, ok := c.store.Get(string(fp)); ok {
			c.mu.Unlock()
			c.hits.Add(1)
			c.metrics.Count(observability.MetricCacheHits, 1)
			res.FromCache = true
			return res, nil
		}
	}

	f := c.flights[fp]
	switch {
	case f == nil:
		f = &flight{done: make(chan struct{}), bypassed: bypass}
		c.flights[fp] = f
		c.startCompute(ctx, fp, f, compute)
	case bypass:
		// Supersede: abort the running computation and start over.
		// Waiters stay attached to the same done channel and receive
		// the superseding outcome.
		f.cancel()
		f.run++
		f.bypassed = true
		c.startCompute(ctx, fp, f, compute)
	}
	f.waiters++
	c.mu.Unlock()

	if bypass {
		c.bypasses.Add(1)
		c.metrics.Count(observability.MetricCacheBypass, 1)
	} else {
		c.misses.Add(1)
		c.metrics.Count(observability.MetricCacheMisses, 1)
	}

	select {
	case <-f.done:
		c.mu.Lock()
		f.waiters--
		res, err := f.result, f.err
		c.mu.Unlock()
		return res, err
	case <-ctx.Done():
		c.detach(fp, f)
		return submission.RecognitionResult{}, ctx.Err()
	}
}

// startCompute launches the computation for the flight's current run.
// Caller holds c.mu. The computation context carries the values of the
// triggering caller's context but not its cancellation, so one waiter
// going away cannot kill a computation others depend on.
func (c *Cache) startCompute(ctx context.Context, fp submission.Fingerprint, f *flight, compute ComputeFunc) {
	computeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	run := f.run

	go func() {
		res, err := compute(computeCtx)
		cancel()

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.flights[fp] != f || f.run != run {
			// Superseded by a bypass, or abandoned after the last
			// waiter detached. A newer run owns the flight now.
			return
		}
		delete(c.flights, fp)
		f.result = res
		f.err = err
		close(f.done)

		switch {
		case err == nil && !res.Failed():
			c.store.Add(string(fp), res)
		case f.bypassed:
			// An explicit refresh that failed must not leave stale
			// data behind to be served as if it were current.
			c.store.Remove(string(fp))
		}
	}()
}

// detach removes one waiter from a flight. The last waiter to leave an
// unfinished flight cancels its computation and clears the slot so a
// later caller starts fresh.
func (c *Cache) detach(fp submission.Fingerprint, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	select {
	case <-f.done:
	default:
		f.cancel()
		if c.flights[fp] == f {
			delete(c.flights, fp)
		}
	}
}

// Get returns the stored result for fp without triggering computation.
func (c *Cache) Get(fp submission.Fingerprint) (submission.RecognitionResult, bool) {
	res, ok := c.store.Get(string(fp))
	if !ok {
		return submission.RecognitionResult{}, false
	}
	res.FromCache = true
	return res, true
}

// Clear removes stored entries whose hex fingerprint matches pattern
// (path.Match syntax) and reports how many were removed. An empty
// pattern clears everything. In-flight computations are unaffected.
func (c *Cache) Clear(pattern string) int {
	if pattern == "" {
		n := c.store.Len()
		c.store.Purge()
		c.log.Info("cache cleared", observability.Int("entries", n))
		return n
	}
	removed := 0
	for _, key := range c.store.Keys() {
		ok, err := path.Match(pattern, key)
		if err != nil {
			// Malformed pattern matches nothing.
			break
		}
		if ok && c.store.Remove(key) {
			removed++
		}
	}
	c.log.Info("cache cleared by pattern",
		observability.String("pattern", pattern),
		observability.Int("entries", removed))
	return removed
}

// Len reports the number of stored entries.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Stats returns a snapshot of cache counters. Evictions counts entries
// removed for any reason, including capacity, age and Clear.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Bypasses:  c.bypasses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.store.Len(),
	}
}
