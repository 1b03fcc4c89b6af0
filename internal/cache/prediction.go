package cache

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/miradorstack/mirador-predict/internal/metrics"
	"github.com/miradorstack/mirador-predict/internal/models"
)

const (
	// DefaultTTL is used when NewPredictionCache receives a non-positive ttl.
	DefaultTTL = 300 * time.Second
	// DefaultMaxEntries bounds the cache between expiry sweeps.
	DefaultMaxEntries = 10000
)

// PredictionCache memoises prediction results for identical metric snapshots.
type PredictionCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	data       map[uint64]entry
	lastSweep  time.Time
	now        func() time.Time
}

type entry struct {
	results    []models.PredictionResult
	insertedAt time.Time
}

// NewPredictionCache creates an empty cache.
func NewPredictionCache(ttl time.Duration) *PredictionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PredictionCache{
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		data:       make(map[uint64]entry),
		now:        time.Now,
	}
}

// WithMaxEntries changes the entry bound; non-positive values keep the default.
func (c *PredictionCache) WithMaxEntries(n int) *PredictionCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		c.maxEntries = n
	}
	return c
}

// WithClock swaps the time source; used by tests.
func (c *PredictionCache) WithClock(now func() time.Time) *PredictionCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// TTL returns the configured entry lifetime.
func (c *PredictionCache) TTL() time.Duration { return c.ttl }

// Key digests the prediction kind together with the metric snapshot. Metric
// names are hashed in sorted order so map iteration order never matters.
func Key(kind models.PredictionKind, snapshot models.MetricMap) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(string(kind))
	var buf [8]byte
	for _, name := range snapshot.SortedNames() {
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(name)
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(snapshot[name]))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Get returns a copy of the cached results while they are younger than the TTL.
func (c *PredictionCache) Get(key uint64) ([]models.PredictionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if ok && c.now().Sub(e.insertedAt) >= c.ttl {
		delete(c.data, key)
		ok = false
	}
	metrics.ObserveCacheLookup(ok)
	if !ok {
		return nil, false
	}
	return models.CloneResults(e.results), true
}

// Put stores a copy of results under key. Expired entries are swept at most
// once per TTL; when the cache is still full the oldest entry is dropped.
func (c *PredictionCache) Put(key uint64, results []models.PredictionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.ttl {
		c.purgeLocked(now)
		c.lastSweep = now
	}
	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxEntries {
		c.purgeLocked(now)
		if len(c.data) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}
	c.data[key] = entry{results: models.CloneResults(results), insertedAt: now}
}

// Purge drops expired entries and returns how many were removed.
func (c *PredictionCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(c.now())
}

func (c *PredictionCache) purgeLocked(now time.Time) int {
	removed := 0
	for key, e := range c.data {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

func (c *PredictionCache) evictOldestLocked() {
	var oldestKey uint64
	var oldest time.Time
	first := true
	for key, e := range c.data {
		if first || e.insertedAt.Before(oldest) {
			oldestKey, oldest, first = key, e.insertedAt, false
		}
	}
	if !first {
		delete(c.data, oldestKey)
	}
}

// Clear drops every entry.
func (c *PredictionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[uint64]entry)
}

// Len reports the number of stored entries, expired or not.
func (c *PredictionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
