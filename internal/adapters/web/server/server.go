package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/airwarden/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/airwarden/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/airwarden/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
)

// API requests allowed per client host and minute.
const apiRequestsPerMinute = 120

// Server handles the read-only HTTP and WebSocket surface.
type Server struct {
	Addr          string
	Service       ports.StatusService
	WSManager     *websocket.WSManager
	StatusHandler *handlers.StatusHandler
	Limiter       *middleware.RateLimiter
	srv           *http.Server
}

// NewServer creates a new web server.
func NewServer(addr string, service ports.StatusService) *Server {
	return &Server{
		Addr:          addr,
		Service:       service,
		WSManager:     websocket.NewWSManager(service),
		StatusHandler: handlers.NewStatusHandler(service),
		Limiter:       middleware.NewRateLimiter(apiRequestsPerMinute, time.Minute),
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(SetupRoutes(s), "airwarden-status")
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.WSManager.Start(ctx)
	s.Limiter.StartCleanup(ctx)

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Status server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Status server shutdown error: %v", err)
		}
	}()

	log.Printf("Status server listening on %s", ln.Addr())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
