package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxEntries bounds the cache size.
	DefaultMaxEntries = 1000

	// DefaultTTL is how long a cached record (or cached miss) stays fresh.
	DefaultTTL = time.Hour

	// lookupConcurrency bounds parallel store fetches during enrichment.
	lookupConcurrency = 8
)

// Recorder receives cache events. Implemented by the observability collector;
// a nil Recorder is valid and records nothing.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheEvictions(n int)
}

// entry is one cached lookup result. rec == nil is a cached "not found":
// misses are remembered too, so a burst of flights with no registry entry
// does not hammer the store.
type entry struct {
	rec       *AircraftRecord
	fetchedAt time.Time
}

// Cache is the on-demand aircraft record cache. Access patterns are bursty
// and locality-free (whatever happens to fly past), so eviction is
// approximate: when a new key would push the cache past capacity, the oldest
// tenth of entries by fetch time is dropped in one sweep.
type Cache struct {
	store      ObjectStore
	maxEntries int
	ttl        time.Duration
	recorder   Recorder

	mu      sync.Mutex
	entries map[string]entry

	// now is a test hook; defaults to time.Now
	now func() time.Time
}

// NewCache creates a record cache over the given store. Zero maxEntries or
// ttl select the defaults.
func NewCache(store ObjectStore, maxEntries int, ttl time.Duration, recorder Recorder) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:      store,
		maxEntries: maxEntries,
		ttl:        ttl,
		recorder:   recorder,
		entries:    make(map[string]entry),
		now:        time.Now,
	}
}

// Get returns the record for an aircraft, or nil if the registry has no entry
// for it. Fresh cached values (including cached misses) are served without a
// store fetch. A store failure is returned as an error so the caller can
// degrade that one aircraft's enrichment without caching the failure.
func (c *Cache) Get(ctx context.Context, icao24 string) (*AircraftRecord, error) {
	key := strings.ToLower(icao24)

	c.mu.Lock()
	e, ok := c.entries[key]
	fresh := ok && c.now().Sub(e.fetchedAt) < c.ttl
	c.mu.Unlock()

	if fresh {
		if c.recorder != nil {
			c.recorder.RecordCacheHit()
		}
		return e.rec, nil
	}
	if c.recorder != nil {
		c.recorder.RecordCacheMiss()
	}

	rec, err := c.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	c.insert(key, rec)
	return rec, nil
}

// LookupAll enriches a page of flights in one shot: lookups are issued in
// parallel and joined, so total added latency is bounded by the slowest
// single fetch. Individual failures degrade to a missing record for that
// aircraft; they never fail the batch and are not retried.
func (c *Cache) LookupAll(ctx context.Context, icao24s []string) map[string]*AircraftRecord {
	results := make(map[string]*AircraftRecord, len(icao24s))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for _, icao := range icao24s {
		g.Go(func() error {
			rec, err := c.Get(ctx, icao)
			if err != nil {
				return nil
			}
			mu.Lock()
			results[icao] = rec
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) fetch(ctx context.Context, key string) (*AircraftRecord, error) {
	data, err := c.store.Get(ctx, ObjectKey(key))
	if errors.Is(err, ErrNotFound) {
		return nil, nil // cacheable miss
	}
	if err != nil {
		return nil, fmt.Errorf("record lookup %s: %w", key, err)
	}

	var rec AircraftRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("record parse %s: %w", key, err)
	}
	if rec.ICAO24 == "" {
		rec.ICAO24 = key
	}
	return &rec, nil
}

func (c *Cache) insert(key string, rec *AircraftRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = entry{rec: rec, fetchedAt: c.now()}
}

// evictOldestLocked drops the oldest 10% of entries by fetch timestamp.
// Caller holds c.mu.
func (c *Cache) evictOldestLocked() {
	n := c.maxEntries / 10
	if n < 1 {
		n = 1
	}

	type aged struct {
		key string
		at  time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, at: e.fetchedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
	if c.recorder != nil {
		c.recorder.RecordCacheEvictions(n)
	}
}
