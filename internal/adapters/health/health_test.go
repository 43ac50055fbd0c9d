package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startHealth(t *testing.T) (*Server, healthpb.HealthClient, context.CancelFunc, <-chan error) {
	t.Helper()
	ln := bufconn.Listen(1 << 20)
	srv := NewServer("bufnet")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ln.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return srv, healthpb.NewHealthClient(conn), cancel, done
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_DefaultsToNotServing(t *testing.T) {
	_, client, cancel, _ := startHealth(t)
	defer cancel()

	for _, svc := range []string{ServiceOverall, ServiceScan, ServiceAttack, ServiceSync} {
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, svc), svc)
	}
}

func TestHealth_SetServing(t *testing.T) {
	srv, client, cancel, _ := startHealth(t)
	defer cancel()

	srv.SetServing(ServiceScan, true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceScan))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceAttack))

	srv.SetServing(ServiceScan, false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceScan))
}

func TestHealth_UnknownService(t *testing.T) {
	_, client, cancel, _ := startHealth(t)
	defer cancel()

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "airwarden.nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealth_StopsOnCancel(t *testing.T) {
	_, _, cancel, done := startHealth(t)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(7 * time.Second):
		t.Fatal("health server did not stop")
	}
}
