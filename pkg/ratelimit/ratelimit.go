// Package ratelimit gates outbound calls to the upstream position feed.
//
// Two independent cadences are maintained: a steady interval for normal
// polling (operator-configurable) and a short fixed interval for
// viewport-change bursts. Each category is backed by its own
// golang.org/x/time/rate limiter with a burst of one, which gives exactly the
// min-interval semantics we need: a token is consumed when a call is
// attempted, so a failing upstream is not hammered any faster than a healthy
// one. A closed gate is a designed skip, not an error.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Categories understood by the gate. Additional cadences are a configuration
// change: register another category with its interval.
const (
	// CategorySteady is the normal polling cadence (default 30s, settable 1-300s).
	CategorySteady = "steady"

	// CategoryMapChange is the burst cadence for viewport changes (fixed 3s).
	CategoryMapChange = "mapchange"
)

const (
	DefaultSteadyInterval = 30 * time.Second
	MapChangeInterval     = 3 * time.Second

	// MinSteadySeconds and MaxSteadySeconds bound operator configuration.
	MinSteadySeconds = 1
	MaxSteadySeconds = 300
)

// Gate tracks one limiter per call category.
type Gate struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	intervals map[string]time.Duration
}

// NewGate creates a gate with the steady and map-change categories registered.
func NewGate(steadyInterval time.Duration) *Gate {
	g := &Gate{
		limiters:  make(map[string]*rate.Limiter),
		intervals: make(map[string]time.Duration),
	}
	g.register(CategorySteady, steadyInterval)
	g.register(CategoryMapChange, MapChangeInterval)
	return g
}

func (g *Gate) register(category string, interval time.Duration) {
	g.limiters[category] = rate.NewLimiter(rate.Every(interval), 1)
	g.intervals[category] = interval
}

// Allow reports whether a call in the given category may proceed at time now,
// consuming the category's token if so. The token is spent on attempt, not on
// success; callers must not refund it when the upstream call fails.
// Unknown categories are never allowed.
func (g *Gate) Allow(category string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	lim, ok := g.limiters[category]
	if !ok {
		return false
	}
	return lim.AllowN(now, 1)
}

// SteadyInterval returns the current steady polling interval.
func (g *Gate) SteadyInterval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.intervals[CategorySteady]
}

// SetSteadyInterval updates the steady polling cadence. Seconds must be in
// [MinSteadySeconds, MaxSteadySeconds]. The new interval applies to
// subsequent Allow decisions; already-spent tokens are not refunded.
func (g *Gate) SetSteadyInterval(seconds int) error {
	if seconds < MinSteadySeconds || seconds > MaxSteadySeconds {
		return fmt.Errorf("rateLimitSeconds must be between %d and %d, got %d",
			MinSteadySeconds, MaxSteadySeconds, seconds)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	interval := time.Duration(seconds) * time.Second
	g.intervals[CategorySteady] = interval
	g.limiters[CategorySteady].SetLimit(rate.Every(interval))
	return nil
}
