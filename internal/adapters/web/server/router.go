package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/airwarden/internal/adapters/web/middleware"
)

// SetupRoutes wires every endpoint. All routes are GET-only.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// API routes live on the root router so a wrong method yields 405.
	limit := middleware.RateLimitMiddleware(s.Limiter)
	api := func(path string, fn http.HandlerFunc) {
		r.Handle("/api"+path, limit(fn)).Methods(http.MethodGet)
	}

	h := s.StatusHandler
	api("/status", h.HandleStatus)
	api("/cards", h.HandleCards)
	api("/networks", h.HandleNetworks)
	api("/networks/{bssid}", h.HandleNetwork)
	api("/queue", h.HandleQueue)
	api("/sessions", h.HandleSessions)

	r.HandleFunc("/ws", s.WSManager.HandleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}
