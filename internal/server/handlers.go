// Package server exposes HTTP handlers: the WebSocket upgrade, health checks,
// and the room directory snapshot.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketHandler returns a handler that upgrades GET requests to
// WebSocket connections and registers them with hub. The hub sends the
// room list and launches the client's pumps.
func WebSocketHandler(hub *Hub, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "err", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		select {
		case hub.register <- client:
		case <-hub.ctx.Done():
			_ = conn.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "cipherrooms relay is running!")
}

type roomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// RoomsHandler serves the current room directory as JSON. Password
// verifiers are never included.
func RoomsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(roomsResponse{Rooms: hub.ListRooms()}); err != nil {
			hub.log.Warn("error writing rooms response", "err", err)
		}
	}
}
