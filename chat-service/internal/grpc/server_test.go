package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServer(t *testing.T) {
	s, hs, err := StartHealthServer("127.0.0.1:0", zerolog.Nop())
	if err != nil {
		t.Fatalf("StartHealthServer: %v", err)
	}
	defer s.Stop()

	info := s.GetServiceInfo()
	if _, ok := info[healthpb.Health_ServiceDesc.ServiceName]; !ok {
		t.Fatalf("health service not registered: %v", info)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := hs.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", resp.GetStatus())
	}

	hs.Shutdown()
	resp, _ = hs.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status after shutdown = %v", resp.GetStatus())
	}
}
