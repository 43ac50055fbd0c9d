// Package health exposes per-engine serving status over the standard gRPC
// health protocol.
package health

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service names reported by the health server. The empty name is overall health.
const (
	ServiceOverall = ""
	ServiceScan    = "airwarden.scan"
	ServiceAttack  = "airwarden.attack"
	ServiceSync    = "airwarden.sync"
)

const stopTimeout = 5 * time.Second

// Server wraps a grpc.Server carrying only the health service.
type Server struct {
	Addr   string
	grpc   *grpc.Server
	health *health.Server
}

// NewServer registers every known service as NOT_SERVING.
func NewServer(addr string) *Server {
	s := &Server{
		Addr:   addr,
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	for _, svc := range []string{ServiceOverall, ServiceScan, ServiceAttack, ServiceSync} {
		s.health.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// SetServing flips a service between SERVING and NOT_SERVING.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Run listens on Addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		log.Println("gRPC health server shutting down...")
		// watchers see NOT_SERVING before the connection drops
		s.health.Shutdown()

		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(stopTimeout):
			s.grpc.Stop()
		}
	}()

	log.Printf("gRPC health server listening on %s", ln.Addr())
	if err := s.grpc.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
