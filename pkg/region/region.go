// Package region holds the monitoring region singleton: the circular geofence
// that defines "in range" for flight alerts. The region is replaced atomically
// on update; invalid input is rejected without mutating state.
package region

import (
	"fmt"
	"math"
	"sync"

	"github.com/unklstewy/skyfence/pkg/geo"
)

// Store owns the current monitoring region. All reads and writes go through
// its methods so the single-writer assumption is enforced by the mutex rather
// than implied.
type Store struct {
	mu     sync.RWMutex
	region geo.Region
}

// ValidationError describes why a region update was rejected. The handler
// maps it to a 400 response with the message intact.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewStore creates a region store with the given initial region.
// Panics if the initial region is invalid; a bad default is a programming
// error, not a runtime condition.
func NewStore(initial geo.Region) *Store {
	if !geo.ValidRegion(initial) {
		panic(fmt.Sprintf("invalid initial region: %+v", initial))
	}
	return &Store{region: initial}
}

// Get returns the current monitoring region.
func (s *Store) Get() geo.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.region
}

// Set validates and replaces the monitoring region. On validation failure the
// previous region remains authoritative and a ValidationError is returned.
func (s *Store) Set(r geo.Region) (geo.Region, error) {
	if err := validate(r); err != nil {
		return geo.Region{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.region = r
	return s.region, nil
}

func validate(r geo.Region) error {
	if math.IsNaN(r.Center.Lat) || r.Center.Lat < -90 || r.Center.Lat > 90 {
		return &ValidationError{Message: fmt.Sprintf("latitude must be between -90 and 90, got %v", r.Center.Lat)}
	}
	if math.IsNaN(r.Center.Lon) || r.Center.Lon < -180 || r.Center.Lon > 180 {
		return &ValidationError{Message: fmt.Sprintf("longitude must be between -180 and 180, got %v", r.Center.Lon)}
	}
	if !(r.RadiusMiles > 0) || r.RadiusMiles > 100 {
		return &ValidationError{Message: fmt.Sprintf("radiusMiles must be between 0 (exclusive) and 100, got %v", r.RadiusMiles)}
	}
	return nil
}
