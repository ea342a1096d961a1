package ratelimit

import (
	"testing"
	"time"
)

// TestAllow tests the min-interval gate semantics for a single category.
func TestAllow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("First call allowed", func(t *testing.T) {
		g := NewGate(30 * time.Second)
		if !g.Allow(CategorySteady, base) {
			t.Error("Expected first call to be allowed")
		}
	})

	t.Run("Closed before interval elapses", func(t *testing.T) {
		g := NewGate(30 * time.Second)
		g.Allow(CategorySteady, base)

		if g.Allow(CategorySteady, base.Add(29*time.Second)) {
			t.Error("Expected gate closed at interval-1s")
		}
		if !g.Allow(CategorySteady, base.Add(30*time.Second)) {
			t.Error("Expected gate open at exactly the interval")
		}
	})

	t.Run("Token spent on attempt regardless of outcome", func(t *testing.T) {
		g := NewGate(30 * time.Second)

		// Simulate a failed upstream call: the gate is still consumed.
		g.Allow(CategorySteady, base)
		if g.Allow(CategorySteady, base.Add(time.Second)) {
			t.Error("Expected gate closed after an attempt, even a failed one")
		}
	})

	t.Run("Unknown category never allowed", func(t *testing.T) {
		g := NewGate(30 * time.Second)
		if g.Allow("bogus", base) {
			t.Error("Expected unknown category to be denied")
		}
	})
}

// TestCategoryIndependence verifies the steady and map-change cadences do not
// interfere with each other.
func TestCategoryIndependence(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := NewGate(30 * time.Second)

	if !g.Allow(CategorySteady, base) {
		t.Fatal("Expected steady call to be allowed")
	}

	// Exhausting steady must not block mapchange
	if !g.Allow(CategoryMapChange, base) {
		t.Error("Expected mapchange to be independent of steady")
	}

	// Mapchange recovers on its own 3s cadence
	if g.Allow(CategoryMapChange, base.Add(2*time.Second)) {
		t.Error("Expected mapchange closed before 3s")
	}
	if !g.Allow(CategoryMapChange, base.Add(3*time.Second)) {
		t.Error("Expected mapchange open at 3s")
	}

	// Steady is still closed on its longer cadence
	if g.Allow(CategorySteady, base.Add(3*time.Second)) {
		t.Error("Expected steady still closed at 3s")
	}
}

// TestSetSteadyInterval tests operator reconfiguration of the polling cadence.
func TestSetSteadyInterval(t *testing.T) {
	t.Run("Valid values accepted", func(t *testing.T) {
		g := NewGate(DefaultSteadyInterval)

		for _, seconds := range []int{1, 30, 300} {
			if err := g.SetSteadyInterval(seconds); err != nil {
				t.Errorf("Expected %ds to be accepted, got: %v", seconds, err)
			}
			if got := g.SteadyInterval(); got != time.Duration(seconds)*time.Second {
				t.Errorf("Expected interval %ds, got %v", seconds, got)
			}
		}
	})

	t.Run("Out-of-range values rejected", func(t *testing.T) {
		g := NewGate(DefaultSteadyInterval)

		for _, seconds := range []int{0, -5, 301} {
			if err := g.SetSteadyInterval(seconds); err == nil {
				t.Errorf("Expected %ds to be rejected", seconds)
			}
		}
		if got := g.SteadyInterval(); got != DefaultSteadyInterval {
			t.Errorf("Expected interval unchanged after rejection, got %v", got)
		}
	})

	t.Run("New cadence applies to later decisions", func(t *testing.T) {
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		g := NewGate(30 * time.Second)

		g.Allow(CategorySteady, base)
		if err := g.SetSteadyInterval(5); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if !g.Allow(CategorySteady, base.Add(30*time.Second)) {
			t.Error("Expected gate open well after the shortened interval")
		}
	})
}
