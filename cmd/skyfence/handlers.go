package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/skyfence/internal/gateway"
	"github.com/unklstewy/skyfence/pkg/geo"
	"github.com/unklstewy/skyfence/pkg/region"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	// CORS for browser map clients
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/check-flights", s.handleCheckFlights)
		r.Get("/map-flights", s.handleMapFlights)
		r.Get("/region", s.handleGetRegion)
		r.Post("/region", s.handleSetRegion)
		r.Get("/rate-limit", s.handleGetRateLimit)
		r.Post("/rate-limit", s.handleSetRateLimit)
		r.Get("/stream", s.handleStream)
	})

	r.Handle("/metrics", s.metrics.Handler())
}

// handleHealth reports service status and whether the feed is simulated
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"timestamp":          time.Now().UTC(),
		"usingSyntheticData": s.gw.UsingSyntheticData(),
	})
}

// handleCheckFlights returns the first flight inside the monitoring region,
// or null when nothing is in range
func (s *Server) handleCheckFlights(w http.ResponseWriter, r *http.Request) {
	flight := s.gw.CheckFlights(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flight":             flight,
		"timestamp":          time.Now().UTC(),
		"usingSyntheticData": s.gw.UsingSyntheticData(),
	})
}

// handleMapFlights returns flights for a map viewport. The four bounds
// parameters must be given together; without them the monitoring region
// selects the flights.
func (s *Server) handleMapFlights(w http.ResponseWriter, r *http.Request) {
	bounds, err := parseBounds(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mapChanged := r.URL.Query().Get("mapChanged") == "true"

	flights := s.gw.MapFlights(r.Context(), bounds, mapChanged)
	if flights == nil {
		flights = []gateway.Flight{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flights":            flights,
		"timestamp":          time.Now().UTC(),
		"usingSyntheticData": s.gw.UsingSyntheticData(),
	})
}

// handleGetRegion returns the current monitoring region
func (s *Server) handleGetRegion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"region": s.regions.Get(),
	})
}

// handleSetRegion replaces the monitoring region
func (s *Server) handleSetRegion(w http.ResponseWriter, r *http.Request) {
	var req geo.Region
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := s.regions.Set(req)
	if err != nil {
		var verr *region.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Message, http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to update region", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Region updated",
		"region":  updated,
	})
}

// handleGetRateLimit returns the steady polling cadence in seconds
func (s *Server) handleGetRateLimit(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rateLimitSeconds": int(s.gate.SteadyInterval().Seconds()),
	})
}

// handleSetRateLimit adjusts the steady polling cadence
func (s *Server) handleSetRateLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RateLimitSeconds int `json:"rateLimitSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.gate.SetSteadyInterval(req.RateLimitSeconds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Rate limit updated",
		"rateLimitSeconds": req.RateLimitSeconds,
	})
}

// parseBounds extracts an optional viewport from the query string. All four
// edges must be present together.
func parseBounds(r *http.Request) (*geo.Bounds, error) {
	q := r.URL.Query()
	keys := []string{"north", "south", "east", "west"}

	present := 0
	for _, k := range keys {
		if q.Get(k) != "" {
			present++
		}
	}
	if present == 0 {
		return nil, nil
	}
	if present != len(keys) {
		return nil, errors.New("north, south, east and west must be provided together")
	}

	values := make(map[string]float64, len(keys))
	for _, k := range keys {
		v, err := strconv.ParseFloat(q.Get(k), 64)
		if err != nil {
			return nil, errors.New("invalid " + k + " value")
		}
		values[k] = v
	}

	bounds := &geo.Bounds{
		North: values["north"],
		South: values["south"],
		East:  values["east"],
		West:  values["west"],
	}
	if bounds.South > bounds.North {
		return nil, errors.New("south must not exceed north")
	}
	return bounds, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
