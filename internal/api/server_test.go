package api

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-predict/internal/config"
	"github.com/miradorstack/mirador-predict/internal/grpc/predictv1"
)

type echoPredictor struct {
	predictv1.UnimplementedPredictorServer
}

func (echoPredictor) HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"status": "SERVING"})
}

func (echoPredictor) PredictMaintenanceNeeds(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	panic("boom")
}

func TestServerServesPredictor(t *testing.T) {
	srv, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0", GracefulTimeout: time.Second}, echoPredictor{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = srv.Start() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), srv.GracefulTimeout())
		defer cancel()
		srv.Shutdown(ctx)
	}()

	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := predictv1.NewPredictorClient(conn)
	resp, err := client.HealthCheck(ctx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetFields()["status"].GetStringValue() != "SERVING" {
		t.Fatalf("unexpected response %v", resp)
	}

	_, err = client.PredictSystemFailure(ctx, &structpb.Struct{})
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected Unimplemented, got %v", err)
	}

	_, err = client.PredictMaintenanceNeeds(ctx, &structpb.Struct{})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal after handler panic, got %v", err)
	}

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: predictv1.ServiceName})
	if err != nil {
		t.Fatalf("grpc health: %v", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected health status %v", health.GetStatus())
	}
}
