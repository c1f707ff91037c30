package health

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
)

func dial(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestProbe_PublishesPerServiceStatus(t *testing.T) {
	var chainDown atomic.Bool
	s := New(map[string]Check{
		"ledger": func(context.Context) error { return nil },
		"chain": func(context.Context) error {
			if chainDown.Load() {
				return errors.New("dial tcp: connection refused")
			}
			return nil
		},
	})
	client := dial(t, s)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ""), "not serving before the first probe")

	require.NoError(t, s.Probe(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, "chain"))

	chainDown.Store(true)
	err := s.Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain: dial tcp")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, "chain"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, "ledger"))
	assert.Equal(t, err, s.Ready(context.Background()))
}

func TestReady_ProbesOnce(t *testing.T) {
	var calls atomic.Int32
	s := New(map[string]Check{"ledger": func(context.Context) error {
		calls.Add(1)
		return nil
	}})
	require.NoError(t, s.Ready(context.Background()))
	require.NoError(t, s.Ready(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestStart_ProbesOnInterval(t *testing.T) {
	mc := clock.NewMockClock(time.Unix(0, 0))
	var calls atomic.Int32
	s := New(map[string]Check{"backend": func(context.Context) error {
		calls.Add(1)
		return nil
	}}, WithClock(mc), WithInterval(time.Second))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return mc.Waiters() == 1 }, time.Second, time.Millisecond)
	mc.Advance(time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	s.Stop()
}
