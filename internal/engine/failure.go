package engine

import (
	"context"
	"fmt"

	"github.com/miradorstack/mirador-predict/internal/models"
)

// usageMetric pairs a usage metric with the level at which it saturates.
type usageMetric struct {
	name    string
	ceiling float64
}

var usageMetrics = []usageMetric{
	{models.MetricCPUUsage, 95},
	{models.MetricMemoryUsage, 95},
	{models.MetricDiskUsage, 90},
}

const (
	usageHighThreshold     = 90.0
	usageElevatedThreshold = 80.0
	errorRateThreshold     = 5.0
	failureTrendQuality    = 0.7
)

// PredictSystemFailure scores the likelihood of an outage from usage and
// error-rate levels and their trends.
func (e *Engine) PredictSystemFailure(ctx context.Context, snapshot models.MetricMap) (models.PredictionResult, error) {
	results, err := e.cached(ctx, "predict_system_failure", models.KindSystemFailure, snapshot, func() []models.PredictionResult {
		return []models.PredictionResult{e.systemFailure(snapshot)}
	})
	if err != nil {
		return models.PredictionResult{}, err
	}
	return results[0], nil
}

func (e *Engine) systemFailure(snapshot models.MetricMap) models.PredictionResult {
	r := e.result(models.KindSystemFailure)
	var risk float64
	var fitSum float64
	fitted := 0

	for _, m := range usageMetrics {
		if v, ok := snapshot.Lookup(m.name); ok {
			switch {
			case v > usageHighThreshold:
				risk += 0.4
				r.ContributingFactors = append(r.ContributingFactors, fmt.Sprintf("%s at %.1f%% exceeds %.0f%%", m.name, v, usageHighThreshold))
			case v > usageElevatedThreshold:
				risk += 0.2
				r.ContributingFactors = append(r.ContributingFactors, fmt.Sprintf("%s at %.1f%% exceeds %.0f%%", m.name, v, usageElevatedThreshold))
			}
			if v >= m.ceiling {
				risk += 0.3
				r.ContributingFactors = append(r.ContributingFactors, fmt.Sprintf("%s at or above saturation ceiling %.0f%%", m.name, m.ceiling))
			}
		}

		trend := e.trends.Analyze(e.series(m.name))
		if trend.Insufficient() {
			continue
		}
		fitted++
		fitSum += trend.FitQuality
		if trend.Increasing() && trend.FitQuality > failureTrendQuality {
			risk += 0.1
			r.ContributingFactors = append(r.ContributingFactors, fmt.Sprintf("%s trending upward (fit %.2f)", m.name, trend.FitQuality))
		}
	}

	if v, ok := snapshot.Lookup(models.MetricErrorRate); ok && v > errorRateThreshold {
		risk += 0.3
		r.ContributingFactors = append(r.ContributingFactors, fmt.Sprintf("error_rate at %.2f%% exceeds %.0f%%", v, errorRateThreshold))
	}
	if trend := e.trends.Analyze(e.series(models.MetricErrorRate)); !trend.Insufficient() {
		fitted++
		fitSum += trend.FitQuality
		if trend.Increasing() {
			risk += 0.2
			r.ContributingFactors = append(r.ContributingFactors, "error_rate trending upward")
		}
	}

	confidence := 0.5
	if fitted > 0 {
		confidence = 0.5 + 0.5*fitSum/float64(fitted)
	} else {
		r.Metadata["insufficient_data"] = "true"
	}

	risk, confidence, r.ModelUsed = e.blend(ModelSystemFailure, snapshot, clamp01(risk), confidence)
	r.Probability = risk
	r.Confidence = confidence
	r.PredictedValue = models.BoolValue(risk > 0.5)

	switch {
	case risk > 0.8:
		r.Severity, r.TimeHorizon = models.SeverityCritical, 15
		r.RecommendedActions = []string{
			"Initiate incident response and prepare failover",
			"Shed non-critical load immediately",
			"Scale out the affected service",
		}
	case risk > 0.6:
		r.Severity, r.TimeHorizon = models.SeverityHigh, 60
		r.RecommendedActions = []string{
			"Scale out the affected service",
			"Investigate the saturated resources",
			"Alert the on-call engineer",
		}
	case risk > 0.4:
		r.Severity, r.TimeHorizon = models.SeverityMedium, 240
		r.RecommendedActions = []string{
			"Review resource usage trends",
			"Plan capacity increase",
		}
	default:
		r.Severity, r.TimeHorizon = models.SeverityLow, 1440
		r.RecommendedActions = []string{"Continue routine monitoring"}
	}
	return e.finish(r, "")
}
