package gateway

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/unklstewy/skyfence/pkg/geo"
	"github.com/unklstewy/skyfence/pkg/opensky"
)

const (
	degreesToRadians = math.Pi / 180.0
	radiansToDegrees = 180.0 / math.Pi
	earthRadiusM     = 6371000.0
)

// synthAircraft is the starting state of one simulated aircraft. Positions
// are dead-reckoned forward from here, so the feed stays deterministic for
// a given elapsed time.
type synthAircraft struct {
	icao24       string
	callsign     string
	latitude     float64
	longitude    float64
	baroAltitude float64
	onGround     bool
	velocity     float64 // meters per second
	track        float64 // degrees, 0 = north
	verticalRate float64 // meters per second
}

// SyntheticSource emits simulated state vectors around a center point when
// no upstream credentials are configured. It satisfies the same source
// contract as the live client, so the rest of the pipeline is unaware it is
// running on canned traffic.
type SyntheticSource struct {
	mu       sync.Mutex
	aircraft []synthAircraft
	start    time.Time
	now      func() time.Time
}

// NewSyntheticSource builds a deterministic fleet spread around center.
// One aircraft starts near the center itself so proximity checks have
// something to find, a few more orbit the edges, and one sits on the ground
// to exercise airborne filtering.
func NewSyntheticSource(center geo.Point) *SyntheticSource {
	s := &SyntheticSource{
		start: time.Now().UTC(),
		now:   func() time.Time { return time.Now().UTC() },
	}

	// Offsets in degrees from center, tracks chosen so traffic drifts
	// through the area rather than away from it.
	seeds := []struct {
		dLat, dLon   float64
		callsign     string
		altitude     float64
		velocity     float64
		track        float64
		verticalRate float64
		onGround     bool
	}{
		{0.01, -0.01, "SYN001", 2900.0, 120.0, 45.0, 0.0, false},
		{0.20, 0.15, "SYN002", 10600.0, 230.0, 250.0, 2.1, false},
		{-0.25, 0.30, "SYN003", 11500.0, 240.0, 310.0, 0.0, false},
		{0.35, -0.40, "SYN004", 1800.0, 90.0, 170.0, -3.4, false},
		{-0.05, -0.30, "SYN005", 7300.0, 195.0, 80.0, 1.2, false},
		{0.02, 0.02, "SYN006", 0.0, 4.0, 270.0, 0.0, true},
	}
	for i, seed := range seeds {
		s.aircraft = append(s.aircraft, synthAircraft{
			icao24:       fmt.Sprintf("ae%04x", i+1),
			callsign:     seed.callsign,
			latitude:     center.Lat + seed.dLat,
			longitude:    center.Lon + seed.dLon,
			baroAltitude: seed.altitude,
			onGround:     seed.onGround,
			velocity:     seed.velocity,
			track:        seed.track,
			verticalRate: seed.verticalRate,
		})
	}
	return s
}

// FetchStates returns the fleet advanced to the current time. The bounds
// argument is accepted for interface compatibility and ignored; callers
// filter the result the same way they filter live data.
func (s *SyntheticSource) FetchStates(ctx context.Context, bounds *geo.Bounds) ([]opensky.StateVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	elapsed := s.now().Sub(s.start).Seconds()
	aircraft := make([]synthAircraft, len(s.aircraft))
	copy(aircraft, s.aircraft)
	s.mu.Unlock()

	states := make([]opensky.StateVector, 0, len(aircraft))
	for _, ac := range aircraft {
		lat, lon := advancePosition(ac.latitude, ac.longitude, ac.velocity, ac.track, elapsed)
		states = append(states, opensky.StateVector{
			ICAO24:        ac.icao24,
			Callsign:      ac.callsign,
			OriginCountry: "United States",
			Latitude:      lat,
			Longitude:     lon,
			BaroAltitude:  ac.baroAltitude + ac.verticalRate*elapsed,
			OnGround:      ac.onGround,
			Velocity:      ac.velocity,
			TrueTrack:     ac.track,
			VerticalRate:  ac.verticalRate,
		})
	}
	return states, nil
}

// advancePosition moves a point along a great circle path using the forward
// azimuth formula. Speed is in meters per second, track in degrees.
func advancePosition(lat, lon, speedMS, trackDeg, deltaT float64) (float64, float64) {
	latRad := lat * degreesToRadians
	lonRad := lon * degreesToRadians
	trackRad := trackDeg * degreesToRadians

	angularDistance := speedMS * deltaT / earthRadiusM

	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(angularDistance) +
			math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(trackRad),
	)
	newLonRad := lonRad + math.Atan2(
		math.Sin(trackRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	newLon := newLonRad * radiansToDegrees
	// Normalize longitude to [-180, 180]
	for newLon > 180.0 {
		newLon -= 360.0
	}
	for newLon < -180.0 {
		newLon += 360.0
	}
	return newLatRad * radiansToDegrees, newLon
}
