// Package proofcache memoizes verification outcomes keyed by proof
// fingerprint, the (proofID, method) pair. Entries expire after a TTL and
// are evicted least-used-first when the cache exceeds capacity, so a proof
// that is polled often stays resident while one-off lookups are discarded
// under pressure.
package proofcache

import (
	"sort"
	"sync"
	"time"

	"github.com/zkgate/proof-verification-gateway/pkg/clock"
)

const (
	// DefaultMaxSize bounds the cache when no capacity is configured.
	DefaultMaxSize = 1000

	// DefaultTTL is the default entry lifetime.
	DefaultTTL = time.Hour

	// DefaultSweepInterval is the minimum spacing between lazy expiry
	// sweeps triggered by Set.
	DefaultSweepInterval = 10 * time.Minute
)

// Config holds cache limits.
type Config struct {
	MaxSize       int
	TTL           time.Duration
	SweepInterval time.Duration
}

// Outcome is the cached verification outcome. Immutable once stored; owned
// by the cache entry until evicted.
type Outcome struct {
	Verified bool
	Method   string
	Details  map[string]any
}

// Stats is an observability snapshot of the cache.
type Stats struct {
	Size      int           `json:"size"`
	MaxSize   int           `json:"max_size"`
	TTL       time.Duration `json:"ttl"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	HitRate   float64       `json:"hit_rate"`
	OldestAge time.Duration `json:"oldest_age"`
	TopKey    string        `json:"top_key,omitempty"`
	TopHits   uint64        `json:"top_hits"`
}

type cacheKey struct {
	proofID string
	method  string
}

type entry struct {
	outcome   Outcome
	createdAt time.Time
	hitCount  uint64
}

// Cache is a thread-safe, size-bounded, TTL-aware result cache. None of its
// operations fail; absence is a miss, not an error.
type Cache struct {
	mu        sync.Mutex
	entries   map[cacheKey]*entry
	cfg       Config
	clk       clock.Clock
	hits      uint64
	misses    uint64
	lastSweep time.Time
}

// New creates a cache. Zero or negative config fields fall back to the
// package defaults; a nil clock falls back to the system clock.
func New(cfg Config, clk clock.Clock) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Cache{
		entries:   make(map[cacheKey]*entry),
		cfg:       cfg,
		clk:       clk,
		lastSweep: clk.Now(),
	}
}

// Set inserts or overwrites the outcome for (proofID, method), stamped with
// the current time and zero hits. If the sweep interval has elapsed since
// the last sweep, expired entries are removed first; if the cache is still
// over capacity afterwards, least-used entries are evicted.
func (c *Cache) Set(proofID, method string, outcome Outcome) {
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= c.cfg.SweepInterval {
		c.sweepLocked(now)
	}

	c.entries[cacheKey{proofID, method}] = &entry{
		outcome:   outcome,
		createdAt: now,
	}

	if len(c.entries) > c.cfg.MaxSize {
		c.evictLocked()
	}
}

// Get returns the cached outcome for (proofID, method). An entry older than
// the TTL is deleted and reported as a miss. Hits increment the entry's hit
// count; every call updates the global hit/miss counters.
func (c *Cache) Get(proofID, method string) (Outcome, bool) {
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	k := cacheKey{proofID, method}
	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return Outcome{}, false
	}
	if now.Sub(e.createdAt) > c.cfg.TTL {
		delete(c.entries, k)
		c.misses++
		return Outcome{}, false
	}

	e.hitCount++
	c.hits++
	return e.outcome, true
}

// Has reports whether a live entry exists for (proofID, method). It applies
// the same expiry check as Get but mutates no hit counters.
func (c *Cache) Has(proofID, method string) bool {
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	k := cacheKey{proofID, method}
	e, ok := c.entries[k]
	if !ok {
		return false
	}
	if now.Sub(e.createdAt) > c.cfg.TTL {
		delete(c.entries, k)
		return false
	}
	return true
}

// Delete removes the entry for (proofID, method) if present.
func (c *Cache) Delete(proofID, method string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := cacheKey{proofID, method}
	if _, ok := c.entries[k]; !ok {
		return false
	}
	delete(c.entries, k)
	return true
}

// Clear removes every entry and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[cacheKey]*entry)
	c.hits = 0
	c.misses = 0
}

// Len returns the number of retained entries, including any that have
// expired but not yet been swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() Stats {
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:    len(c.entries),
		MaxSize: c.cfg.MaxSize,
		TTL:     c.cfg.TTL,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}

	var oldest time.Time
	for k, e := range c.entries {
		// Expired entries awaiting a sweep are not live; they count
		// toward Size but not toward age or hit leaders.
		if now.Sub(e.createdAt) > c.cfg.TTL {
			continue
		}
		if oldest.IsZero() || e.createdAt.Before(oldest) {
			oldest = e.createdAt
		}
		if e.hitCount > s.TopHits {
			s.TopHits = e.hitCount
			s.TopKey = k.proofID + ":" + k.method
		}
	}
	if !oldest.IsZero() {
		s.OldestAge = now.Sub(oldest)
	}
	return s
}

// sweepLocked removes expired entries. Caller must hold c.mu.
func (c *Cache) sweepLocked(now time.Time) {
	for k, e := range c.entries {
		if now.Sub(e.createdAt) > c.cfg.TTL {
			delete(c.entries, k)
		}
	}
	c.lastSweep = now
}

// evictLocked brings the cache back down to capacity by removing the
// least-used entries, ties broken by oldest first. Linear sort is fine at
// the entry counts proof-verification workloads produce; the tie-break
// order is observable behavior and must not change. Caller must hold c.mu.
func (c *Cache) evictLocked() {
	over := len(c.entries) - c.cfg.MaxSize
	if over <= 0 {
		return
	}

	type kv struct {
		k cacheKey
		e *entry
	}
	all := make([]kv, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, kv{k, e})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].e.hitCount != all[j].e.hitCount {
			return all[i].e.hitCount < all[j].e.hitCount
		}
		return all[i].e.createdAt.Before(all[j].e.createdAt)
	})

	for i := 0; i < over; i++ {
		delete(c.entries, all[i].k)
	}
}
