package gateway

import (
	"math"
	"sync"
	"time"

	"github.com/unklstewy/skyfence/pkg/geo"
)

const (
	// SnapshotMaxAge is the staleness ceiling for serving the fallback
	// snapshot. Favoring visual continuity over freshness is bounded here.
	SnapshotMaxAge = 30 * time.Second

	// BoundsSimilarityDeg is how far (per edge, in degrees) a requested
	// viewport may differ from the snapshot's viewport and still be served
	// from it.
	BoundsSimilarityDeg = 1.0
)

// snapshotCache holds the last good multi-flight response so a rate-limited
// or failing upstream never produces a spurious "nothing found".
// Single global entry.
type snapshotCache struct {
	mu      sync.Mutex
	flights []Flight
	bounds  *geo.Bounds
	takenAt time.Time
	valid   bool
}

// store replaces the snapshot with a successful response and the bounds it
// was computed for.
func (s *snapshotCache) store(flights []Flight, bounds *geo.Bounds, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flights = flights
	s.takenAt = now
	s.valid = true
	if bounds != nil {
		b := *bounds
		s.bounds = &b
	} else {
		s.bounds = nil
	}
}

// get returns the cached flights when the snapshot is fresh and its stored
// bounds are similar to the requested ones.
func (s *snapshotCache) get(now time.Time, requested *geo.Bounds) ([]Flight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fresh(now) || !boundsSimilar(s.bounds, requested) {
		return nil, false
	}
	return s.flights, true
}

// latest returns the cached flights when fresh, regardless of bounds. Used
// by the single-flight fallback, which has no viewport of its own.
func (s *snapshotCache) latest(now time.Time) ([]Flight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fresh(now) {
		return nil, false
	}
	return s.flights, true
}

func (s *snapshotCache) fresh(now time.Time) bool {
	return s.valid && now.Sub(s.takenAt) < SnapshotMaxAge
}

// boundsSimilar reports whether two viewports agree within
// BoundsSimilarityDeg on every edge. Two absent viewports agree; an absent
// viewport never matches a present one.
func boundsSimilar(a, b *geo.Bounds) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(a.North-b.North) <= BoundsSimilarityDeg &&
		math.Abs(a.South-b.South) <= BoundsSimilarityDeg &&
		math.Abs(a.East-b.East) <= BoundsSimilarityDeg &&
		math.Abs(a.West-b.West) <= BoundsSimilarityDeg
}
