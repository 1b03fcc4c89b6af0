package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/mirador-predict/internal/config"
	"github.com/miradorstack/mirador-predict/internal/learning"
	"github.com/miradorstack/mirador-predict/internal/models"
	"github.com/miradorstack/mirador-predict/internal/repo"
	"github.com/miradorstack/mirador-predict/internal/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() config.PredictiveConfig {
	return config.PredictiveConfig{
		WindowSize:          100,
		TrendThreshold:      0.05,
		MinPatternLength:    5,
		MaxPatternLength:    20,
		SimilarityThreshold: 0.8,
		MaxHistoryPoints:    1000,
		CacheTTL:            5 * time.Minute,
	}
}

func newTestEngine(t *testing.T, registry map[string]*learning.Model) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(nil, testConfig(), Dependencies{Models: registry, Clock: clock.Now}), clock
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func assertUnitInterval(t *testing.T, r models.PredictionResult) {
	t.Helper()
	if r.Probability < 0 || r.Probability > 1 {
		t.Fatalf("%s probability %v outside [0,1]", r.Kind, r.Probability)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		t.Fatalf("%s confidence %v outside [0,1]", r.Kind, r.Confidence)
	}
}

func TestSystemFailureHighCPUWithoutHistory(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	result, err := eng.PredictSystemFailure(context.Background(), models.MetricMap{models.MetricCPUUsage: 96})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if result.Probability < 0.4 {
		t.Fatalf("expected probability >= 0.4, got %v", result.Probability)
	}
	if result.Severity != models.SeverityHigh && result.Severity != models.SeverityCritical {
		t.Fatalf("expected HIGH or CRITICAL, got %s", result.Severity)
	}
	if result.TimeHorizon > 60 {
		t.Fatalf("expected horizon <= 60, got %v", result.TimeHorizon)
	}
	if result.Metadata["insufficient_data"] != "true" {
		t.Fatalf("expected insufficient data tag, got %v", result.Metadata)
	}
	if result.ModelUsed != "heuristic" {
		t.Fatalf("expected heuristic model, got %s", result.ModelUsed)
	}
	assertUnitInterval(t, result)
}

func TestResourceExhaustionLinearDiskGrowth(t *testing.T) {
	eng, clock := newTestEngine(t, nil)
	ctx := context.Background()

	start := clock.Now().Add(-10 * time.Minute)
	for i := 0; i < 10; i++ {
		value := 70 + float64(i)*19.0/9.0
		if err := eng.AddDataPoint(ctx, models.MetricDiskUsage, value, start.Add(time.Duration(i)*time.Minute), nil); err != nil {
			t.Fatalf("add point: %v", err)
		}
	}

	results, err := eng.PredictResourceExhaustion(ctx, models.MetricMap{models.MetricDiskUsage: 89})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one at-risk resource, got %d", len(results))
	}
	r := results[0]
	if r.Kind != models.KindResourceExhaustion || r.Metadata["resource"] != models.MetricDiskUsage {
		t.Fatalf("unexpected result %+v", r)
	}
	if r.TimeHorizon <= 0 || r.TimeHorizon > maxExhaustionMinutes {
		t.Fatalf("expected finite positive horizon, got %v", r.TimeHorizon)
	}
	if minutes, ok := r.PredictedValue.Number(); !ok || minutes != r.TimeHorizon {
		t.Fatalf("expected predicted value to carry minutes, got %v", r.PredictedValue)
	}
	if r.Severity != models.SeverityCritical {
		t.Fatalf("expected CRITICAL for a ceiling under a minute away, got %s", r.Severity)
	}
	assertUnitInterval(t, r)
}

func TestResourceExhaustionSkipsStableResources(t *testing.T) {
	eng, clock := newTestEngine(t, nil)
	ctx := context.Background()
	start := clock.Now().Add(-20 * time.Minute)
	for i := 0; i < 20; i++ {
		_ = eng.AddDataPoint(ctx, models.MetricMemoryUsage, 40, start.Add(time.Duration(i)*time.Minute), nil)
	}

	results, err := eng.PredictResourceExhaustion(ctx, models.MetricMap{models.MetricMemoryUsage: 40})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for flat memory, got %+v", results)
	}
}

func TestComprehensiveForecastNominal(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	report, err := eng.ComprehensiveForecast(context.Background(), models.MetricMap{
		models.MetricCPUUsage:    20,
		models.MetricMemoryUsage: 30,
		models.MetricDiskUsage:   25,
		models.MetricErrorRate:   0.1,
	})
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if report.RiskLevel != models.RiskMinimal {
		t.Fatalf("expected MINIMAL risk, got %s (%v)", report.RiskLevel, report.OverallRisk)
	}
	if report.CriticalCount != 0 {
		t.Fatalf("expected zero critical predictions, got %d", report.CriticalCount)
	}
	if report.ID == "" {
		t.Fatalf("expected report id")
	}
	if len(eng.Stats().Metrics) != 4 {
		t.Fatalf("expected snapshot to be recorded, got %v", eng.Stats().Metrics)
	}
	for _, r := range report.AllPredictions() {
		assertUnitInterval(t, r)
	}
}

func TestComprehensiveForecastStressed(t *testing.T) {
	eng, clock := newTestEngine(t, nil)
	ctx := context.Background()

	start := clock.Now().Add(-60 * time.Minute)
	for i := 0; i < 60; i++ {
		_ = eng.AddDataPoint(ctx, models.MetricCPUUsage, 40+float64(i), start.Add(time.Duration(i)*time.Minute), nil)
	}

	report, err := eng.ComprehensiveForecast(ctx, models.MetricMap{
		models.MetricCPUUsage:          99,
		models.MetricMemoryUsage:       97,
		models.MetricDiskUsage:         95,
		models.MetricErrorRate:         40,
		models.MetricPacketLoss:        0.2,
		models.MetricBackupAgeHours:    72,
		models.MetricCacheHitRatio:     0.4,
		models.MetricDBConnectionUsage: 0.95,
	})
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if report.RiskLevel != models.RiskCritical {
		t.Fatalf("expected CRITICAL risk, got %s", report.RiskLevel)
	}
	if report.SystemFailure.Severity != models.SeverityCritical || report.SystemFailure.TimeHorizon != 15 {
		t.Fatalf("unexpected system failure result %+v", report.SystemFailure)
	}
	if report.CriticalCount == 0 || len(report.PriorityActions) == 0 || len(report.PriorityActions) > maxPriorityActions {
		t.Fatalf("unexpected priority summary: critical=%d actions=%v", report.CriticalCount, report.PriorityActions)
	}
	if f, ok := report.Forecasts[models.MetricCPUUsage]; !ok || len(f.Values) != forecastHorizonMinutes {
		t.Fatalf("expected 60-minute cpu forecast, got %+v", report.Forecasts)
	}
	for _, r := range report.AllPredictions() {
		assertUnitInterval(t, r)
	}
}

func TestPredictionCacheIdempotence(t *testing.T) {
	eng, clock := newTestEngine(t, nil)
	ctx := context.Background()
	snapshot := models.MetricMap{models.MetricCPUUsage: 85, models.MetricErrorRate: 6}

	first, err := eng.PredictSystemFailure(ctx, snapshot)
	if err != nil {
		t.Fatalf("first predict: %v", err)
	}
	clock.Advance(time.Minute)
	second, err := eng.PredictSystemFailure(ctx, models.MetricMap{models.MetricErrorRate: 6, models.MetricCPUUsage: 85})
	if err != nil {
		t.Fatalf("second predict: %v", err)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) || first.Probability != second.Probability {
		t.Fatalf("expected identical cached result, got %v vs %v", first.CreatedAt, second.CreatedAt)
	}

	clock.Advance(5 * time.Minute)
	third, err := eng.PredictSystemFailure(ctx, snapshot)
	if err != nil {
		t.Fatalf("third predict: %v", err)
	}
	if third.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected a fresh result after ttl expiry")
	}
}

func TestPredictionCacheDropsExpiredSnapshots(t *testing.T) {
	eng, clock := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		if _, err := eng.PredictSystemFailure(ctx, models.MetricMap{models.MetricCPUUsage: float64(i) / 4}); err != nil {
			t.Fatalf("predict %d: %v", i, err)
		}
	}
	if got := eng.Stats().CachedEntries; got != 200 {
		t.Fatalf("expected 200 cached snapshots, got %d", got)
	}

	clock.Advance(6 * time.Minute)
	if _, err := eng.PredictSystemFailure(ctx, models.MetricMap{models.MetricCPUUsage: 99}); err != nil {
		t.Fatalf("predict after ttl: %v", err)
	}
	if got := eng.Stats().CachedEntries; got != 1 {
		t.Fatalf("expected expired snapshots to be released, got %d cached", got)
	}
}

func TestInvalidMetricMapIsRejected(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	_, err := eng.PredictSystemFailure(context.Background(), models.MetricMap{"cpu_usgae": 96})
	if !errors.Is(err, models.ErrUnknownMetric) {
		t.Fatalf("expected unknown metric error, got %v", err)
	}
	if _, ok := utils.AsAppError(err); !ok {
		t.Fatalf("expected AppError, got %T", err)
	}

	if err := eng.AddDataPoint(context.Background(), models.MetricCPUUsage, math.NaN(), time.Time{}, nil); !errors.Is(err, models.ErrInvalidMetric) {
		t.Fatalf("expected invalid metric error, got %v", err)
	}
}

func TestModelBlendAndTraining(t *testing.T) {
	ctx := context.Background()
	model, err := learning.New(ctx, ModelSystemFailure, learning.Config{
		Kind:     learning.KindClassification,
		Features: []string{models.MetricCPUUsage, models.MetricErrorRate},
	}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	eng, _ := newTestEngine(t, map[string]*learning.Model{ModelSystemFailure: model})
	snapshot := models.MetricMap{models.MetricCPUUsage: 50}

	before, err := eng.PredictSystemFailure(ctx, snapshot)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if before.ModelUsed != "heuristic" {
		t.Fatalf("untrained model should not be blended, got %s", before.ModelUsed)
	}

	rows := [][]float64{{10, 0}, {20, 0.5}, {30, 1}, {90, 8}, {95, 12}, {99, 20}}
	labels := []float64{0, 0, 0, 1, 1, 1}
	if err := eng.TrainModel(ctx, ModelSystemFailure, rows, labels); err != nil {
		t.Fatalf("train: %v", err)
	}

	after, err := eng.PredictSystemFailure(ctx, snapshot)
	if err != nil {
		t.Fatalf("predict after training: %v", err)
	}
	if after.ModelUsed != "heuristic+system_failure" {
		t.Fatalf("expected blended model, got %s", after.ModelUsed)
	}
	assertUnitInterval(t, after)

	pred, err := model.Predict(model.Vector(snapshot))
	if err != nil {
		t.Fatalf("model predict: %v", err)
	}
	wantProbability := clamp01(0.5*before.Probability + 0.5*pred.Score(model.Kind()))
	if math.Abs(after.Probability-wantProbability) > 1e-12 {
		t.Fatalf("expected equal-weight blend %v, got %v", wantProbability, after.Probability)
	}
	wantConfidence := clamp01(0.5*before.Confidence + 0.5*pred.Confidence)
	if math.Abs(after.Confidence-wantConfidence) > 1e-12 {
		t.Fatalf("expected blended confidence %v, got %v", wantConfidence, after.Confidence)
	}

	if err := eng.TrainModel(ctx, "capacity", rows, labels); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected unknown model error, got %v", err)
	}
	if stats := eng.Stats(); !contains(stats.TrainedModels, ModelSystemFailure) {
		t.Fatalf("expected trained model in stats, got %v", stats.TrainedModels)
	}
}

func TestPerformanceDegradationFlagsRecentAnomaly(t *testing.T) {
	eng, clock := newTestEngine(t, nil)
	ctx := context.Background()

	start := clock.Now().Add(-30 * time.Minute)
	for i := 0; i < 30; i++ {
		value := 49.0
		if i%2 == 1 {
			value = 51
		}
		if i == 29 {
			value = 500
		}
		_ = eng.AddDataPoint(ctx, models.MetricLatency, value, start.Add(time.Duration(i)*time.Minute), nil)
	}

	result, err := eng.PredictPerformanceDegradation(ctx, models.MetricMap{models.MetricLatency: 500})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if result.Probability < 0.2 {
		t.Fatalf("expected anomaly to raise risk, got %v", result.Probability)
	}
	if result.Metadata["recent_anomalies"] == "0" {
		t.Fatalf("expected recent anomalies to be counted")
	}
	found := false
	for _, f := range result.ContributingFactors {
		if strings.Contains(f, "latency anomalies") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected latency anomaly factor, got %v", result.ContributingFactors)
	}
	assertUnitInterval(t, result)
}

func TestMaintenanceNeedsPerComponent(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	results, err := eng.PredictMaintenanceNeeds(context.Background(), models.MetricMap{
		models.MetricCacheHitRatio:     0.5,
		models.MetricCacheMemoryUsage:  0.95,
		models.MetricBackupAgeHours:    48,
		models.MetricDBQueryTime:       2000,
		models.MetricDBConnectionUsage: 0.9,
		models.MetricPacketLoss:        0.001,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected database and cache results, got %+v", results)
	}
	byComponent := map[string]models.PredictionResult{}
	for _, r := range results {
		byComponent[r.Metadata["component"]] = r
		assertUnitInterval(t, r)
	}
	db := byComponent["database"]
	if db.Severity != models.SeverityHigh || db.TimeHorizon != 24*60 {
		t.Fatalf("unexpected database result %+v", db)
	}
	cacheResult := byComponent["cache"]
	if cacheResult.Severity != models.SeverityMedium || cacheResult.TimeHorizon != 7*24*60 {
		t.Fatalf("unexpected cache result %+v", cacheResult)
	}
	if !contains(cacheResult.RecommendedActions, "Review cache keys and TTLs") {
		t.Fatalf("expected cache action, got %v", cacheResult.RecommendedActions)
	}
}

type fakeHistory struct {
	points map[string][]repo.MetricPoint
	fail   map[string]bool
}

func (f *fakeHistory) FetchMetricSeries(_ context.Context, _ string, metric string, _, _ time.Time) ([]repo.MetricPoint, error) {
	if f.fail[metric] {
		return nil, errors.New("upstream unavailable")
	}
	return f.points[metric], nil
}

func TestBackfillSeedsHistory(t *testing.T) {
	eng, clock := newTestEngine(t, nil)
	src := &fakeHistory{
		points: map[string][]repo.MetricPoint{
			models.MetricCPUUsage: {
				{Timestamp: clock.Now().Add(-2 * time.Minute), Value: 40},
				{Timestamp: clock.Now().Add(-time.Minute), Value: 42},
			},
		},
		fail: map[string]bool{models.MetricDiskUsage: true},
	}

	n := eng.Backfill(context.Background(), src, "node-1", []string{models.MetricCPUUsage, models.MetricDiskUsage}, time.Hour)
	if n != 2 {
		t.Fatalf("expected 2 backfilled points, got %d", n)
	}
	if got := eng.Trend(models.MetricCPUUsage); !got.Insufficient() {
		t.Fatalf("two points should not be enough for a trend, got %+v", got)
	}
}

func TestForecastAndPatternsOnStoredMetric(t *testing.T) {
	eng, clock := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := eng.Forecast(ctx, models.MetricQueueSize, 30); err == nil {
		t.Fatalf("expected insufficient data error")
	}

	motif := []float64{0, 10, 3, 7, 1}
	start := clock.Now().Add(-time.Hour)
	for i := 0; i < 60; i++ {
		_ = eng.AddDataPoint(ctx, models.MetricQueueSize, motif[i%len(motif)], start.Add(time.Duration(i)*time.Minute), nil)
	}

	forecast, err := eng.Forecast(ctx, models.MetricQueueSize, 30)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(forecast.Values) != 30 {
		t.Fatalf("expected 30 forecast points, got %d", len(forecast.Values))
	}

	found, err := eng.Patterns(ctx, models.MetricQueueSize)
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	if len(found) == 0 {
		t.Fatalf("expected the repeating motif to be found")
	}
}

func TestCloseReleasesStorage(t *testing.T) {
	closer := &countingCloser{}
	eng := New(nil, testConfig(), Dependencies{Storage: closer})
	if err := eng.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if closer.calls != 1 {
		t.Fatalf("expected storage to be closed once, got %d", closer.calls)
	}
}

type countingCloser struct{ calls int }

func (c *countingCloser) Close() error {
	c.calls++
	return nil
}
