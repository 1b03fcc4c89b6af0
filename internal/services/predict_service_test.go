package services

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-predict/internal/config"
	"github.com/miradorstack/mirador-predict/internal/engine"
)

func newTestService(t *testing.T) *PredictService {
	t.Helper()
	eng := engine.New(nil, config.PredictiveConfig{
		WindowSize:          100,
		TrendThreshold:      0.05,
		MinPatternLength:    5,
		MaxPatternLength:    20,
		SimilarityThreshold: 0.8,
		MaxHistoryPoints:    1000,
		CacheTTL:            time.Minute,
	}, engine.Dependencies{})
	return NewPredictService(nil, eng)
}

func metricsRequest(t *testing.T, metrics map[string]any) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{"metrics": metrics})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return req
}

func TestPredictSystemFailure(t *testing.T) {
	service := newTestService(t)

	resp, err := service.PredictSystemFailure(context.Background(), metricsRequest(t, map[string]any{"cpu_usage": 96}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := resp.GetFields()
	if fields["severity"].GetStringValue() != "high" {
		t.Fatalf("expected high severity, got %v", fields["severity"])
	}
	if fields["time_horizon_minutes"].GetNumberValue() != 60 {
		t.Fatalf("expected 60 minute horizon, got %v", fields["time_horizon_minutes"])
	}
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	if _, err := service.PredictSystemFailure(ctx, nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for nil request, got %v", err)
	}
	if _, err := service.PredictMaintenanceNeeds(ctx, metricsRequest(t, map[string]any{"gpu_usage": 5})); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for unknown metric, got %v", err)
	}
	if _, err := service.ComprehensiveForecast(ctx, metricsRequest(t, map[string]any{"cpu_usage": "high"})); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for non-numeric metric, got %v", err)
	}
}

func TestPredictWithoutEngine(t *testing.T) {
	service := NewPredictService(nil, nil)
	_, err := service.PredictResourceExhaustion(context.Background(), metricsRequest(t, map[string]any{"cpu_usage": 50}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestAddDataPointAndHealth(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]any{"metric": "disk_usage", "value": 71.5})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if _, err := service.AddDataPoint(ctx, req); err != nil {
		t.Fatalf("add data point: %v", err)
	}

	bad, _ := structpb.NewStruct(map[string]any{"metric": "unknown_metric", "value": 1})
	if _, err := service.AddDataPoint(ctx, bad); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for unknown metric, got %v", err)
	}

	numericMeta, _ := structpb.NewStruct(map[string]any{"metric": "disk_usage", "value": 70, "metadata": map[string]any{"replicas": 3}})
	if _, err := service.AddDataPoint(ctx, numericMeta); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for numeric metadata, got %v", err)
	}

	health, err := service.HealthCheck(ctx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if health.GetFields()["status"].GetStringValue() != "SERVING" {
		t.Fatalf("unexpected status %v", health.GetFields()["status"])
	}
	if health.GetFields()["metrics_tracked"].GetNumberValue() != 1 {
		t.Fatalf("expected one tracked metric, got %v", health.GetFields()["metrics_tracked"])
	}
	if health.GetFields()["history_capacity"].GetNumberValue() != 1000 {
		t.Fatalf("expected history capacity 1000, got %v", health.GetFields()["history_capacity"])
	}
	if _, ok := health.GetFields()["mean_latency_ms"]; !ok {
		t.Fatalf("expected mean latency in health report")
	}
}

func TestComprehensiveForecast(t *testing.T) {
	service := newTestService(t)

	resp, err := service.ComprehensiveForecast(context.Background(), metricsRequest(t, map[string]any{
		"cpu_usage":    20,
		"memory_usage": 30,
		"disk_usage":   40,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetFields()["risk_level"].GetStringValue() != "minimal" {
		t.Fatalf("expected minimal risk, got %v", resp.GetFields()["risk_level"])
	}
	if resp.GetFields()["id"].GetStringValue() == "" {
		t.Fatalf("expected report id")
	}
}

func TestTrainUnknownModel(t *testing.T) {
	service := newTestService(t)
	req, err := structpb.NewStruct(map[string]any{
		"model":  "missing",
		"rows":   []any{[]any{1}},
		"labels": []any{1},
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if _, err := service.TrainModel(context.Background(), req); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
