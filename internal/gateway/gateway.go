package gateway

import (
	"context"
	"log"
	"time"

	"github.com/unklstewy/skyfence/internal/observability"
	"github.com/unklstewy/skyfence/pkg/geo"
	"github.com/unklstewy/skyfence/pkg/opensky"
	"github.com/unklstewy/skyfence/pkg/ratelimit"
	"github.com/unklstewy/skyfence/pkg/records"
	"github.com/unklstewy/skyfence/pkg/region"
)

// DefaultMaxFlights caps how many flights a map response carries.
// Flights beyond the cap are dropped in feed order.
const DefaultMaxFlights = 50

// StatesSource provides a feed of aircraft state vectors, optionally
// restricted to a bounding box. Implemented by the live upstream client and
// by the synthetic simulator.
type StatesSource interface {
	FetchStates(ctx context.Context, bounds *geo.Bounds) ([]opensky.StateVector, error)
}

// Flight is one aircraft as exposed through the API: the live state vector,
// whether it falls inside the configured alert region, and any registry
// record found for it.
type Flight struct {
	ICAO24        string                  `json:"icao24"`
	Callsign      string                  `json:"callsign"`
	OriginCountry string                  `json:"originCountry,omitempty"`
	Latitude      float64                 `json:"latitude"`
	Longitude     float64                 `json:"longitude"`
	BaroAltitude  float64                 `json:"baroAltitude"`
	OnGround      bool                    `json:"onGround"`
	Velocity      float64                 `json:"velocity"`
	TrueTrack     float64                 `json:"trueTrack"`
	VerticalRate  float64                 `json:"verticalRate"`
	InRegion      bool                    `json:"inRegion"`
	Record        *records.AircraftRecord `json:"aircraft,omitempty"`
}

// Gateway ties the upstream feed, the alert region, the rate gate, the
// record cache, and the fallback snapshot together behind two query
// operations. All upstream trouble degrades to empty results rather than
// errors so the caller's UI never flaps.
type Gateway struct {
	regions    *region.Store
	gate       *ratelimit.Gate
	source     StatesSource
	records    *records.Cache
	metrics    *observability.Collector
	synthetic  bool
	maxFlights int
	snap       snapshotCache

	// now is swapped out in tests.
	now func() time.Time
}

// Options configures a Gateway. Regions, Gate, and Source are required;
// Records and Metrics may be nil.
type Options struct {
	Regions    *region.Store
	Gate       *ratelimit.Gate
	Source     StatesSource
	Records    *records.Cache
	Metrics    *observability.Collector
	Synthetic  bool
	MaxFlights int
}

// New creates a Gateway from the given options.
func New(opts Options) *Gateway {
	maxFlights := opts.MaxFlights
	if maxFlights <= 0 {
		maxFlights = DefaultMaxFlights
	}
	return &Gateway{
		regions:    opts.Regions,
		gate:       opts.Gate,
		source:     opts.Source,
		records:    opts.Records,
		metrics:    opts.Metrics,
		synthetic:  opts.Synthetic,
		maxFlights: maxFlights,
		now:        time.Now,
	}
}

// UsingSyntheticData reports whether the gateway is serving simulated
// traffic instead of the live upstream feed.
func (g *Gateway) UsingSyntheticData() bool {
	return g.synthetic
}

// CheckFlights returns the first airborne flight found inside the alert
// region, enriched with its registry record, or nil when none is present.
// When the rate gate is closed or the upstream fails, a fresh snapshot from
// a recent map query is scanned instead.
func (g *Gateway) CheckFlights(ctx context.Context) *Flight {
	reg := g.regions.Get()

	states, ok := g.fetchCycle(ctx, ratelimit.CategorySteady, nil)
	if !ok {
		if flights, fresh := g.snap.latest(g.now()); fresh {
			for i := range flights {
				if flights[i].InRegion {
					g.metrics.RecordSnapshotFallback("served")
					f := flights[i]
					return &f
				}
			}
		}
		return nil
	}

	for _, sv := range states {
		if sv.OnGround {
			continue
		}
		if !geo.PointInCircle(sv.Latitude, sv.Longitude, reg) {
			continue
		}
		flight := toFlight(sv, true)
		if g.records != nil {
			rec, err := g.records.Get(ctx, sv.ICAO24)
			if err != nil {
				log.Printf("aircraft record lookup failed for %s: %v", sv.ICAO24, err)
			} else {
				flight.Record = rec
			}
		}
		return &flight
	}
	return nil
}

// MapFlights returns up to the configured maximum of airborne flights for a
// map view. When bounds are given they select which flights appear; the
// alert region only marks each flight's InRegion flag. Without bounds the
// region itself does the selecting. mapChanged switches the rate gate to
// its faster pan/zoom cadence.
//
// A closed gate or upstream failure falls back to the last snapshot if it
// is fresh and was taken for a similar viewport, and otherwise returns an
// empty list.
func (g *Gateway) MapFlights(ctx context.Context, bounds *geo.Bounds, mapChanged bool) []Flight {
	category := ratelimit.CategorySteady
	if mapChanged {
		category = ratelimit.CategoryMapChange
	}
	reg := g.regions.Get()

	states, ok := g.fetchCycle(ctx, category, bounds)
	if !ok {
		return g.fallback(bounds)
	}

	selected := make([]Flight, 0, g.maxFlights)
	for _, sv := range states {
		if sv.OnGround {
			continue
		}
		inRegion := geo.PointInCircle(sv.Latitude, sv.Longitude, reg)
		keep := inRegion
		if bounds != nil {
			keep = geo.PointInBounds(sv.Latitude, sv.Longitude, *bounds)
		}
		if !keep {
			continue
		}
		selected = append(selected, toFlight(sv, inRegion))
		if len(selected) >= g.maxFlights {
			break
		}
	}

	if g.records != nil && len(selected) > 0 {
		icaos := make([]string, len(selected))
		for i := range selected {
			icaos[i] = selected[i].ICAO24
		}
		recs := g.records.LookupAll(ctx, icaos)
		for i := range selected {
			selected[i].Record = recs[selected[i].ICAO24]
		}
	}

	g.snap.store(selected, bounds, g.now())
	return selected
}

// fetchCycle spends one rate-gate token and, if the gate opens, fetches
// from the upstream. The token is consumed even when the fetch fails.
func (g *Gateway) fetchCycle(ctx context.Context, category string, bounds *geo.Bounds) ([]opensky.StateVector, bool) {
	if !g.gate.Allow(category, g.now()) {
		g.metrics.RecordRateLimitSkip(category)
		return nil, false
	}

	states, err := g.source.FetchStates(ctx, bounds)
	if err != nil {
		outcome := observability.OutcomeError
		if opensky.IsAuthError(err) {
			outcome = observability.OutcomeAuth
		}
		g.metrics.RecordUpstreamFetch(outcome)
		log.Printf("upstream fetch failed: %v", err)
		return nil, false
	}
	g.metrics.RecordUpstreamFetch(observability.OutcomeOK)
	return states, true
}

func (g *Gateway) fallback(bounds *geo.Bounds) []Flight {
	flights, ok := g.snap.get(g.now(), bounds)
	if !ok {
		g.metrics.RecordSnapshotFallback("empty")
		return []Flight{}
	}
	g.metrics.RecordSnapshotFallback("served")
	return flights
}

func toFlight(sv opensky.StateVector, inRegion bool) Flight {
	return Flight{
		ICAO24:        sv.ICAO24,
		Callsign:      sv.Callsign,
		OriginCountry: sv.OriginCountry,
		Latitude:      sv.Latitude,
		Longitude:     sv.Longitude,
		BaroAltitude:  sv.BaroAltitude,
		OnGround:      sv.OnGround,
		Velocity:      sv.Velocity,
		TrueTrack:     sv.TrueTrack,
		VerticalRate:  sv.VerticalRate,
		InRegion:      inRegion,
	}
}
