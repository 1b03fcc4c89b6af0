package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-predict/internal/api"
	"github.com/miradorstack/mirador-predict/internal/engine"
	"github.com/miradorstack/mirador-predict/internal/grpc/predictv1"
	"github.com/miradorstack/mirador-predict/internal/learning"
	"github.com/miradorstack/mirador-predict/internal/models"
	"github.com/miradorstack/mirador-predict/internal/utils"
)

// PredictService implements the gRPC Predictor service over the engine.
type PredictService struct {
	predictv1.UnimplementedPredictorServer

	logger    *slog.Logger
	engine    *engine.Engine
	latencies *utils.LatencyTracker
}

// NewPredictService constructs the service facade.
func NewPredictService(logger *slog.Logger, eng *engine.Engine) *PredictService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictService{
		logger:    logger,
		engine:    eng,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// AddDataPoint records one metric sample.
func (s *PredictService) AddDataPoint(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	dp, err := api.FromProtoDataPoint(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.engine.AddDataPoint(ctx, dp.Metric, dp.Value, dp.Timestamp, dp.Metadata); err != nil {
		return nil, s.toStatus("add data point", err)
	}
	return structpb.NewStruct(map[string]any{"accepted": true, "metric": dp.Metric})
}

// PredictSystemFailure scores the likelihood of an outage.
func (s *PredictService) PredictSystemFailure(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	snapshot, err := s.snapshot(req)
	if err != nil {
		return nil, err
	}
	res, err := s.timed(func() (models.PredictionResult, error) { return s.engine.PredictSystemFailure(ctx, snapshot) })
	if err != nil {
		return nil, s.toStatus("predict system failure", err)
	}
	return api.ToProtoPrediction(res)
}

// PredictResourceExhaustion estimates time-to-ceiling per resource.
func (s *PredictService) PredictResourceExhaustion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	snapshot, err := s.snapshot(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	results, err := s.engine.PredictResourceExhaustion(ctx, snapshot)
	s.latencies.Observe(time.Since(start))
	if err != nil {
		return nil, s.toStatus("predict resource exhaustion", err)
	}
	return api.ToProtoPredictions(results)
}

// PredictPerformanceDegradation scores latency and throughput risk.
func (s *PredictService) PredictPerformanceDegradation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	snapshot, err := s.snapshot(req)
	if err != nil {
		return nil, err
	}
	res, err := s.timed(func() (models.PredictionResult, error) { return s.engine.PredictPerformanceDegradation(ctx, snapshot) })
	if err != nil {
		return nil, s.toStatus("predict performance degradation", err)
	}
	return api.ToProtoPrediction(res)
}

// PredictMaintenanceNeeds reports components that need attention.
func (s *PredictService) PredictMaintenanceNeeds(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	snapshot, err := s.snapshot(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	results, err := s.engine.PredictMaintenanceNeeds(ctx, snapshot)
	s.latencies.Observe(time.Since(start))
	if err != nil {
		return nil, s.toStatus("predict maintenance needs", err)
	}
	return api.ToProtoPredictions(results)
}

// ComprehensiveForecast runs every prediction and aggregates the outcome.
func (s *PredictService) ComprehensiveForecast(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	snapshot, err := s.snapshot(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	report, err := s.engine.ComprehensiveForecast(ctx, snapshot)
	duration := time.Since(start)
	if err != nil {
		return nil, s.toStatus("comprehensive forecast", err)
	}
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("prediction latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
	return api.ToProtoForecastReport(report)
}

// TrainModel fits and persists a configured model.
func (s *PredictService) TrainModel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	tr, err := api.FromProtoTrainingRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.engine.TrainModel(ctx, tr.Model, tr.Rows, tr.Labels); err != nil {
		return nil, s.toStatus("train model", err)
	}
	return structpb.NewStruct(map[string]any{"model": tr.Model, "trained": true, "samples": len(tr.Rows)})
}

// HealthCheck reports serving state and engine statistics.
func (s *PredictService) HealthCheck(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := map[string]any{"status": "SERVING"}
	if s.engine != nil {
		stats := s.engine.Stats()
		fields["metrics_tracked"] = len(stats.Metrics)
		fields["trained_models"] = toAnyList(stats.TrainedModels)
		fields["cached_entries"] = stats.CachedEntries
		fields["predictions"] = stats.Predictions
		fields["p95_latency_ms"] = float64(stats.P95Latency) / float64(time.Millisecond)
		fields["mean_latency_ms"] = float64(stats.MeanLatency) / float64(time.Millisecond)
		fields["history_capacity"] = stats.HistoryCapacity
	}
	return structpb.NewStruct(fields)
}

// LatencyP95 returns the current p95 request latency.
func (s *PredictService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *PredictService) ready(req *structpb.Struct) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.engine == nil {
		return status.Error(codes.FailedPrecondition, "engine not configured")
	}
	return nil
}

func (s *PredictService) snapshot(req *structpb.Struct) (models.MetricMap, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	snapshot, err := api.FromProtoMetricMap(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return snapshot, nil
}

func (s *PredictService) timed(call func() (models.PredictionResult, error)) (models.PredictionResult, error) {
	start := time.Now()
	res, err := call()
	s.latencies.Observe(time.Since(start))
	return res, err
}

// toStatus maps engine errors onto gRPC codes.
func (s *PredictService) toStatus(op string, err error) error {
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	if _, ok := utils.AsAppError(err); ok {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	switch {
	case errors.Is(err, engine.ErrUnknownModel):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, learning.ErrInvalidTrainingData), errors.Is(err, learning.ErrFeatureMismatch):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Error(op+" failed", slog.Any("error", err))
	return status.Errorf(codes.Internal, "%s failed", op)
}

func toAnyList(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
