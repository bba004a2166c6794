package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/hyggen/internal/admin"
	"github.com/cory-johannsen/hyggen/internal/config"
)

func TestCheckHealth(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := admin.NewServer(config.AdminConfig{}, zaptest.NewLogger(t),
		admin.WithCheck("hyggen.Room", func(context.Context) error { return nil }))
	go func() { _ = srv.Serve(context.Background(), ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	require.Eventually(t, func() bool {
		resp, err := checkHealth(context.Background(), ln.Addr().String(), "hyggen.Room", time.Second)
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 3*time.Second, 20*time.Millisecond)

	_, err = checkHealth(context.Background(), ln.Addr().String(), "unknown", time.Second)
	assert.Error(t, err)
}
