package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T) (*HealthService, healthpb.HealthClient) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	log := logger.NewNopLogger()
	health := NewHealthService(log)
	srv := NewGRPCServer(&cfg.GRPCConfig{NetworkMode: "tcp"}, log)
	srv.RegisterServices(health)

	go srv.Serve(lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	return health, healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return res.GetStatus()
}

func TestHealthService_Lifecycle(t *testing.T) {
	health, client := startHealthServer(t)

	for _, service := range []string{"", SearchServiceName} {
		if got := checkStatus(t, client, service); got != healthpb.HealthCheckResponse_NOT_SERVING {
			t.Fatalf("before init %q = %v, want NOT_SERVING", service, got)
		}
	}

	health.SetServing(true)
	if got := checkStatus(t, client, SearchServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("after init = %v, want SERVING", got)
	}

	health.Shutdown()
	health.SetServing(true)
	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("after shutdown = %v, want NOT_SERVING", got)
	}
}
