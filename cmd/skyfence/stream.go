package main

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unklstewy/skyfence/pkg/geo"
)

const streamInterval = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The REST API is already open to all origins; the stream matches it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamRequest is what a client sends to move its viewport. A message with
// no bounds switches the stream back to region-based selection.
type streamRequest struct {
	North      *float64 `json:"north"`
	South      *float64 `json:"south"`
	East       *float64 `json:"east"`
	West       *float64 `json:"west"`
	MapChanged bool     `json:"mapChanged"`
}

// handleStream pushes flight updates over a WebSocket. Each tick goes
// through the same gated pipeline as the REST endpoints, so a slow cadence
// simply repeats the last snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var mu sync.Mutex
	var bounds *geo.Bounds
	mapChanged := false

	// Read pump: viewport updates from the client.
	go func() {
		for {
			var req streamRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			mu.Lock()
			if req.North != nil && req.South != nil && req.East != nil && req.West != nil {
				bounds = &geo.Bounds{
					North: *req.North,
					South: *req.South,
					East:  *req.East,
					West:  *req.West,
				}
			} else {
				bounds = nil
			}
			mapChanged = req.MapChanged
			mu.Unlock()
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		mu.Lock()
		b := bounds
		changed := mapChanged
		mapChanged = false
		mu.Unlock()

		flights := s.gw.MapFlights(r.Context(), b, changed)
		msg := map[string]interface{}{
			"flights":            flights,
			"timestamp":          time.Now().UTC(),
			"usingSyntheticData": s.gw.UsingSyntheticData(),
		}

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}
