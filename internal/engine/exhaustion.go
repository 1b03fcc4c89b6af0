package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/miradorstack/mirador-predict/internal/models"
)

var capacityCeilings = []usageMetric{
	{models.MetricCPUUsage, 95},
	{models.MetricMemoryUsage, 95},
	{models.MetricDiskUsage, 90},
	{models.MetricNetworkUsage, 90},
}

const (
	minExhaustionMinutes = 5.0
	maxExhaustionMinutes = 7 * 24 * 60.0
)

// PredictResourceExhaustion estimates time-to-ceiling for every resource
// whose history is trending upward. Resources that are stable, falling or
// lack history are omitted.
func (e *Engine) PredictResourceExhaustion(ctx context.Context, snapshot models.MetricMap) ([]models.PredictionResult, error) {
	return e.cached(ctx, "predict_resource_exhaustion", models.KindResourceExhaustion, snapshot, func() []models.PredictionResult {
		results := make([]models.PredictionResult, 0)
		for _, res := range capacityCeilings {
			if r, ok := e.exhaustion(res, snapshot); ok {
				results = append(results, r)
			}
		}
		return results
	})
}

func (e *Engine) exhaustion(res usageMetric, snapshot models.MetricMap) (models.PredictionResult, bool) {
	series := e.series(res.name)
	trend := e.trends.Analyze(series)
	if !trend.Increasing() || trend.Slope <= 0 {
		return models.PredictionResult{}, false
	}

	current, ok := snapshot.Lookup(res.name)
	if !ok {
		_, current, ok = series.Last()
		if !ok {
			return models.PredictionResult{}, false
		}
	}

	minutes := (res.ceiling - current) / trend.Slope / 60
	if math.IsNaN(minutes) || minutes < minExhaustionMinutes {
		minutes = minExhaustionMinutes
	}
	if math.IsInf(minutes, 1) || minutes > maxExhaustionMinutes {
		minutes = maxExhaustionMinutes
	}

	r := e.result(models.KindResourceExhaustion)
	r.TimeHorizon = minutes
	r.PredictedValue = models.NumberValue(minutes)
	r.Metadata["resource"] = res.name
	r.Metadata["ceiling"] = strconv.FormatFloat(res.ceiling, 'f', -1, 64)
	r.Metadata["slope_per_second"] = strconv.FormatFloat(trend.Slope, 'g', 6, 64)
	r.ContributingFactors = []string{
		fmt.Sprintf("%s at %.1f%% increasing toward %.0f%%", res.name, current, res.ceiling),
		fmt.Sprintf("%s grows %.3f per minute (fit %.2f)", res.name, trend.Slope*60, trend.FitQuality),
	}

	// Shorter time to the ceiling maps to a higher probability on a log scale.
	risk := 1 - math.Log1p(minutes)/math.Log1p(maxExhaustionMinutes)
	risk, confidence, modelUsed := e.blend(ModelResourceExhaustion, snapshot, clamp01(risk), trend.FitQuality)
	r.Probability = risk
	r.Confidence = confidence
	r.ModelUsed = modelUsed

	switch {
	case minutes < 30:
		r.Severity = models.SeverityCritical
		r.RecommendedActions = []string{
			fmt.Sprintf("Free or add %s capacity immediately", resourceLabel(res.name)),
			"Throttle the workloads driving consumption",
		}
	case minutes < 120:
		r.Severity = models.SeverityHigh
		r.RecommendedActions = []string{
			fmt.Sprintf("Provision additional %s capacity", resourceLabel(res.name)),
			"Identify the top consumers",
		}
	case minutes < 1440:
		r.Severity = models.SeverityMedium
		r.RecommendedActions = []string{fmt.Sprintf("Schedule %s capacity expansion", resourceLabel(res.name))}
	default:
		r.Severity = models.SeverityLow
		r.RecommendedActions = []string{fmt.Sprintf("Track %s growth in capacity planning", resourceLabel(res.name))}
	}
	return e.finish(r, res.name), true
}

func resourceLabel(metric string) string {
	switch metric {
	case models.MetricCPUUsage:
		return "CPU"
	case models.MetricMemoryUsage:
		return "memory"
	case models.MetricDiskUsage:
		return "disk"
	case models.MetricNetworkUsage:
		return "network"
	}
	return metric
}
