package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

// newOriginPolicy builds the CORS policy for the configured origins. The same
// policy gates WebSocket handshakes. An empty allowlist admits nobody.
func newOriginPolicy(origins []string) *cors.Cors {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}
	if len(origins) == 0 {
		opts.AllowOriginFunc = func(string) bool { return false }
	} else {
		opts.AllowedOrigins = origins
	}
	return cors.New(opts)
}

// newUpgrader returns an upgrader that only accepts handshakes carrying an
// Origin the policy allows.
func newUpgrader(policy *cors.Cors) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if r.Header.Get("Origin") != "" && policy.OriginAllowed(r) {
				return true
			}
			slog.Warn("blocked websocket upgrade from disallowed origin",
				"origin", r.Header.Get("Origin"), "addr", r.RemoteAddr)
			return false
		},
	}
}
