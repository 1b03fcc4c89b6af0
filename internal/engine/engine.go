package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/miradorstack/mirador-predict/internal/analysis"
	"github.com/miradorstack/mirador-predict/internal/cache"
	"github.com/miradorstack/mirador-predict/internal/config"
	"github.com/miradorstack/mirador-predict/internal/learning"
	"github.com/miradorstack/mirador-predict/internal/metrics"
	"github.com/miradorstack/mirador-predict/internal/models"
	"github.com/miradorstack/mirador-predict/internal/patterns"
	"github.com/miradorstack/mirador-predict/internal/timeseries"
	"github.com/miradorstack/mirador-predict/internal/utils"
)

// Model names the engine blends into its heuristics when configured.
const (
	ModelSystemFailure          = "system_failure"
	ModelResourceExhaustion     = "resource_exhaustion"
	ModelPerformanceDegradation = "performance_degradation"
)

// ModelUsed values reported on results.
const (
	modelHeuristic = "heuristic"
)

// ErrUnknownModel is returned by TrainModel for names without a configured model.
var ErrUnknownModel = errors.New("unknown model")

// Dependencies are the collaborators an Engine owns besides its analysers.
type Dependencies struct {
	Models map[string]*learning.Model
	Rules  *RuleEngine
	// Storage is closed by Engine.Close.
	Storage io.Closer
	Clock   func() time.Time
}

// Engine produces forward-looking risk assessments from recorded metric history.
type Engine struct {
	logger    *slog.Logger
	store     *timeseries.Store
	trends    *analysis.TrendAnalyzer
	anomalies *analysis.AnomalyDetector
	forecasts *analysis.ForecastExtrapolator
	miner     *patterns.Miner
	cache     *cache.PredictionCache
	models    map[string]*learning.Model
	rules     *RuleEngine
	storage   io.Closer
	latency   *utils.LatencyTracker
	now       func() time.Time
}

// New wires an Engine from the predictive settings.
func New(logger *slog.Logger, cfg config.PredictiveConfig, deps Dependencies) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	trends := analysis.NewTrendAnalyzer(cfg.TrendThreshold)
	modelSet := make(map[string]*learning.Model, len(deps.Models))
	for name, m := range deps.Models {
		if m != nil {
			modelSet[name] = m
		}
	}

	return &Engine{
		logger:    logger,
		store:     timeseries.NewStore(cfg.MaxHistoryPoints).WithClock(now),
		trends:    trends,
		anomalies: analysis.NewAnomalyDetector(),
		forecasts: analysis.NewForecastExtrapolator(trends),
		miner: patterns.NewMiner(logger, patterns.Config{
			MinPatternLength:    cfg.MinPatternLength,
			MaxPatternLength:    cfg.MaxPatternLength,
			SimilarityThreshold: cfg.SimilarityThreshold,
			WindowSize:          cfg.WindowSize,
			SeasonalityPeriods:  cfg.SeasonalityPeriods,
		}),
		cache:   cache.NewPredictionCache(cfg.CacheTTL).WithClock(now).WithMaxEntries(cfg.CacheMaxEntries),
		models:  modelSet,
		rules:   deps.Rules,
		storage: deps.Storage,
		latency: utils.NewLatencyTracker(512),
		now:     now,
	}
}

// AddDataPoint records one sample. A zero at means now.
func (e *Engine) AddDataPoint(ctx context.Context, metric string, value float64, at time.Time, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := (models.MetricMap{metric: value}).Validate(); err != nil {
		return utils.NewAppError("add_data_point", "invalid sample", err)
	}
	e.store.Append(metric, value, at, metadata)
	metrics.SetSeriesPoints(metric, e.store.Len(metric))
	return nil
}

// TrainModel fits the named model and persists it. Cached predictions are
// dropped so the next call reflects the new model.
func (e *Engine) TrainModel(ctx context.Context, name string, rows [][]float64, labels []float64) error {
	model, ok := e.models[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	err := model.Train(ctx, rows, labels)
	metrics.ObserveModelOperation(name, "train", err)
	if err != nil {
		return err
	}
	e.cache.Clear()
	return nil
}

// Forecast projects a stored metric horizonMinutes into the future.
func (e *Engine) Forecast(ctx context.Context, metric string, horizonMinutes int) (models.MetricForecast, error) {
	if err := ctx.Err(); err != nil {
		return models.MetricForecast{}, err
	}
	series, _ := e.store.Get(metric)
	series.MetricName = metric
	return e.forecasts.Predict(series, horizonMinutes)
}

// Patterns mines recurring motifs from a stored metric.
func (e *Engine) Patterns(ctx context.Context, metric string) ([]models.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	series, ok := e.store.Get(metric)
	if !ok {
		return nil, nil
	}
	return e.miner.FindPatterns(series), nil
}

// Trend fits the stored history of metric.
func (e *Engine) Trend(metric string) analysis.Trend {
	series, _ := e.store.Get(metric)
	return e.trends.Analyze(series)
}

// Stats summarises engine state for health reporting.
type Stats struct {
	Metrics         []string
	HistoryCapacity int
	TrainedModels   []string
	CachedEntries   int
	P95Latency      time.Duration
	MeanLatency     time.Duration
	Predictions     int
}

// Stats returns a point-in-time summary. Expired cache entries are dropped
// before they are counted.
func (e *Engine) Stats() Stats {
	trained := make([]string, 0, len(e.models))
	for name, m := range e.models {
		if m.IsTrained() {
			trained = append(trained, name)
		}
	}
	sort.Strings(trained)
	e.cache.Purge()
	return Stats{
		Metrics:         e.store.Metrics(),
		HistoryCapacity: e.store.MaxPoints(),
		TrainedModels:   trained,
		CachedEntries:   e.cache.Len(),
		P95Latency:      e.latency.Percentile(95),
		MeanLatency:     e.latency.Mean(),
		Predictions:     e.latency.Count(),
	}
}

// Close releases model storage.
func (e *Engine) Close() error {
	if e.storage == nil {
		return nil
	}
	if err := e.storage.Close(); err != nil {
		return fmt.Errorf("close model storage: %w", err)
	}
	return nil
}

// cached serves kind from the prediction cache or computes and stores it.
func (e *Engine) cached(ctx context.Context, op string, kind models.PredictionKind, snapshot models.MetricMap, compute func() []models.PredictionResult) ([]models.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := snapshot.Validate(); err != nil {
		return nil, utils.NewAppError(op, "invalid metric map", err)
	}

	key := cache.Key(kind, snapshot)
	if results, ok := e.cache.Get(key); ok {
		return results, nil
	}

	start := time.Now()
	results := compute()
	elapsed := time.Since(start)
	e.latency.Observe(elapsed)
	metrics.ObservePredictionDuration(string(kind), elapsed)
	for _, r := range results {
		metrics.ObservePrediction(string(r.Kind), string(r.Severity))
	}

	e.cache.Put(key, results)
	return models.CloneResults(results), nil
}

// blend averages a heuristic score with the named model's output when the
// model is trained. It returns the heuristic unchanged otherwise.
func (e *Engine) blend(name string, snapshot models.MetricMap, risk, confidence float64) (float64, float64, string) {
	model, ok := e.models[name]
	if !ok || !model.IsTrained() {
		return risk, confidence, modelHeuristic
	}
	pred, err := model.Predict(model.Vector(snapshot))
	metrics.ObserveModelOperation(name, "predict", err)
	if err != nil {
		e.logger.Warn("model prediction failed, using heuristics", slog.String("model", name), slog.Any("error", err))
		return risk, confidence, modelHeuristic
	}
	score := pred.Score(model.Kind())
	return 0.5*risk + 0.5*score, 0.5*confidence + 0.5*pred.Confidence, modelHeuristic + "+" + name
}

func (e *Engine) series(metric string) models.TimeSeriesData {
	series, _ := e.store.Get(metric)
	series.MetricName = metric
	return series
}

func (e *Engine) result(kind models.PredictionKind) models.PredictionResult {
	return models.PredictionResult{
		Kind:      kind,
		CreatedAt: e.now().UTC(),
		ModelUsed: modelHeuristic,
		Metadata:  map[string]string{},
	}
}

// finish clamps the numeric fields and appends rule-pack recommendations.
func (e *Engine) finish(r models.PredictionResult, metric string) models.PredictionResult {
	r.Probability = clamp01(r.Probability)
	r.Confidence = clamp01(r.Confidence)
	r.RecommendedActions = appendUnique(r.RecommendedActions, e.rules.Recommend(r, metric)...)
	if r.ContributingFactors == nil {
		r.ContributingFactors = []string{}
	}
	return r
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
