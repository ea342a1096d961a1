package gateway

import (
	"testing"
	"time"

	"github.com/unklstewy/skyfence/pkg/geo"
)

func TestBoundsSimilar(t *testing.T) {
	base := geo.Bounds{North: 40.0, South: 30.0, East: -100.0, West: -110.0}

	tests := []struct {
		name     string
		a, b     *geo.Bounds
		expected bool
	}{
		{"identical", &base, &base, true},
		{"both absent", nil, nil, true},
		{"one absent", &base, nil, false},
		{
			"within a degree on every edge",
			&base,
			&geo.Bounds{North: 40.9, South: 29.1, East: -99.1, West: -110.9},
			true,
		},
		{
			"one edge out of tolerance",
			&base,
			&geo.Bounds{North: 41.5, South: 30.0, East: -100.0, West: -110.0},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boundsSimilar(tt.a, tt.b); got != tt.expected {
				t.Errorf("boundsSimilar() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestSnapshotFreshness(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var snap snapshotCache

	if _, ok := snap.latest(base); ok {
		t.Error("Expected no snapshot before the first store")
	}

	snap.store([]Flight{{ICAO24: "abc123"}}, nil, base)

	if _, ok := snap.latest(base.Add(29 * time.Second)); !ok {
		t.Error("Expected snapshot fresh at 29s")
	}
	if _, ok := snap.latest(base.Add(SnapshotMaxAge)); ok {
		t.Error("Expected snapshot stale at exactly the max age")
	}
}
