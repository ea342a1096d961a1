package records

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory ObjectStore with call counting and error
// injection.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    map[string]int
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		gets:    make(map[string]int),
	}
}

func (s *fakeStore) put(icao24 string, rec AircraftRecord) {
	data, _ := json.Marshal(rec)
	s.mu.Lock()
	s.objects[ObjectKey(icao24)] = data
	s.mu.Unlock()
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets[key]++
	if s.failing {
		return nil, fmt.Errorf("store unavailable")
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *fakeStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for k := range s.objects {
		names = append(names, k)
	}
	return names, nil
}

func (s *fakeStore) getCount(icao24 string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[ObjectKey(icao24)]
}

// TestCacheGet tests hits, misses, negative caching, and expiry.
func TestCacheGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Fetches then serves from cache", func(t *testing.T) {
		store := newFakeStore()
		store.put("abc123", AircraftRecord{ICAO24: "abc123", Registration: "N12345", Model: "737-800"})
		cache := NewCache(store, 10, time.Hour, nil)

		rec, err := cache.Get(ctx, "ABC123")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if rec == nil || rec.Registration != "N12345" {
			t.Fatalf("Expected record N12345, got %+v", rec)
		}

		// Second lookup must not touch the store
		if _, err := cache.Get(ctx, "abc123"); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if store.getCount("abc123") != 1 {
			t.Errorf("Expected 1 store fetch, got %d", store.getCount("abc123"))
		}
	})

	t.Run("Caches not-found sentinel", func(t *testing.T) {
		store := newFakeStore()
		cache := NewCache(store, 10, time.Hour, nil)

		rec, err := cache.Get(ctx, "nosuch")
		if err != nil {
			t.Fatalf("Expected no error for missing record, got: %v", err)
		}
		if rec != nil {
			t.Errorf("Expected nil for missing record, got %+v", rec)
		}

		// The miss is cached: no second store fetch within the TTL
		cache.Get(ctx, "nosuch")
		if store.getCount("nosuch") != 1 {
			t.Errorf("Expected cached miss to prevent refetch, got %d fetches", store.getCount("nosuch"))
		}
	})

	t.Run("Expired entry refetches", func(t *testing.T) {
		store := newFakeStore()
		store.put("abc123", AircraftRecord{ICAO24: "abc123", Registration: "N12345"})
		cache := NewCache(store, 10, time.Hour, nil)

		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		cache.now = func() time.Time { return base }
		cache.Get(ctx, "abc123")

		cache.now = func() time.Time { return base.Add(61 * time.Minute) }
		cache.Get(ctx, "abc123")

		if store.getCount("abc123") != 2 {
			t.Errorf("Expected refetch after expiry, got %d fetches", store.getCount("abc123"))
		}
	})

	t.Run("Store failure is returned, not cached", func(t *testing.T) {
		store := newFakeStore()
		store.failing = true
		cache := NewCache(store, 10, time.Hour, nil)

		if _, err := cache.Get(ctx, "abc123"); err == nil {
			t.Fatal("Expected error from failing store")
		}
		if cache.Len() != 0 {
			t.Errorf("Expected failure not cached, got %d entries", cache.Len())
		}

		// Store recovers; next lookup succeeds
		store.failing = false
		store.put("abc123", AircraftRecord{ICAO24: "abc123"})
		if rec, err := cache.Get(ctx, "abc123"); err != nil || rec == nil {
			t.Errorf("Expected recovery after store failure, got rec=%v err=%v", rec, err)
		}
	})

	t.Run("Record without icao24 field gets the key filled in", func(t *testing.T) {
		store := newFakeStore()
		store.put("abc123", AircraftRecord{Registration: "N777"})
		cache := NewCache(store, 10, time.Hour, nil)

		rec, err := cache.Get(ctx, "abc123")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if rec.ICAO24 != "abc123" {
			t.Errorf("Expected icao24 backfilled, got %q", rec.ICAO24)
		}
	})
}

// TestCacheEviction tests the oldest-10% sweep at capacity.
func TestCacheEviction(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	cache := NewCache(store, 1000, time.Hour, nil)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	cache.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	// Fill to capacity with distinct keys (all cached misses; that's fine,
	// a miss is an entry too).
	for i := 0; i < 1000; i++ {
		cache.Get(ctx, fmt.Sprintf("%06x", i))
	}
	if cache.Len() != 1000 {
		t.Fatalf("Expected 1000 entries, got %d", cache.Len())
	}

	// The 1001st distinct key triggers the sweep before insertion.
	cache.Get(ctx, "fffffe")

	if cache.Len() != 901 {
		t.Errorf("Expected 1000 - 100 + 1 = 901 entries after sweep, got %d", cache.Len())
	}

	// The oldest keys were dropped, the newest survived.
	if _, err := cache.Get(ctx, "000000"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if store.getCount("000000") != 2 {
		t.Errorf("Expected oldest key evicted (refetched), got %d fetches", store.getCount("000000"))
	}
	if store.getCount(fmt.Sprintf("%06x", 999)) != 1 {
		t.Errorf("Expected newest key retained, got %d fetches", store.getCount(fmt.Sprintf("%06x", 999)))
	}
}

// TestLookupAll tests parallel batch enrichment.
func TestLookupAll(t *testing.T) {
	ctx := context.Background()

	t.Run("Resolves all keys", func(t *testing.T) {
		store := newFakeStore()
		store.put("aaa111", AircraftRecord{ICAO24: "aaa111", Registration: "N1"})
		store.put("bbb222", AircraftRecord{ICAO24: "bbb222", Registration: "N2"})
		cache := NewCache(store, 10, time.Hour, nil)

		results := cache.LookupAll(ctx, []string{"aaa111", "bbb222", "ccc333"})

		if len(results) != 3 {
			t.Fatalf("Expected 3 results, got %d", len(results))
		}
		if results["aaa111"] == nil || results["aaa111"].Registration != "N1" {
			t.Errorf("Expected record for aaa111, got %+v", results["aaa111"])
		}
		if results["ccc333"] != nil {
			t.Errorf("Expected nil for unknown aircraft, got %+v", results["ccc333"])
		}
	})

	t.Run("Individual failures degrade silently", func(t *testing.T) {
		store := newFakeStore()
		store.failing = true
		cache := NewCache(store, 10, time.Hour, nil)

		results := cache.LookupAll(ctx, []string{"aaa111", "bbb222"})

		// Failed lookups are simply absent; the batch itself succeeds.
		if len(results) != 0 {
			t.Errorf("Expected no results from failing store, got %d", len(results))
		}
	})
}
