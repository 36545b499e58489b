// Package server wires HTTP handlers into a router for the relay.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes builds the application router around hub. One origin policy
// serves both the CORS headers of the HTTP API and the WebSocket handshake.
func SetupRoutes(hub *Hub) http.Handler {
	api := mux.NewRouter()
	api.HandleFunc("/", HealthHandler).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/healthz", HealthHandler).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/rooms", RoomsHandler(hub)).Methods(http.MethodGet)
	api.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	policy := newOriginPolicy(currentConfig().AllowedOrigins)

	router := mux.NewRouter()
	router.Handle("/ws", WebSocketHandler(hub, newUpgrader(policy)))
	router.PathPrefix("/").Handler(policy.Handler(api))
	return router
}
