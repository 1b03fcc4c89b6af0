package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/miradorstack/mirador-predict/internal/analysis"
	"github.com/miradorstack/mirador-predict/internal/models"
	"github.com/miradorstack/mirador-predict/internal/patterns"
	"github.com/miradorstack/mirador-predict/internal/utils"
)

// performanceMetric marks which trend direction is adverse for a metric.
type performanceMetric struct {
	name            string
	adverseDecrease bool
}

var performanceMetrics = []performanceMetric{
	{name: models.MetricResponseTime},
	{name: models.MetricThroughput, adverseDecrease: true},
	{name: models.MetricLatency},
	{name: models.MetricQueueSize},
}

const (
	anomalyLookbackSeconds  = 3600.0
	performanceTrendQuality = 0.6
)

// PredictPerformanceDegradation scores recent anomalies and adverse trends
// across latency, throughput and queueing metrics.
func (e *Engine) PredictPerformanceDegradation(ctx context.Context, snapshot models.MetricMap) (models.PredictionResult, error) {
	results, err := e.cached(ctx, "predict_performance_degradation", models.KindPerformanceDegradation, snapshot, func() []models.PredictionResult {
		return []models.PredictionResult{e.performanceDegradation(snapshot)}
	})
	if err != nil {
		return models.PredictionResult{}, err
	}
	return results[0], nil
}

func (e *Engine) performanceDegradation(snapshot models.MetricMap) models.PredictionResult {
	r := e.result(models.KindPerformanceDegradation)
	cutoff := utils.UnixSeconds(e.now()) - anomalyLookbackSeconds

	var risk, fitSum float64
	fitted, anomalyCount := 0, 0
	for _, m := range performanceMetrics {
		series := e.series(m.name)

		recent := analysis.Since(e.anomalies.Detect(series), cutoff)
		if len(recent) > 0 {
			anomalyCount += len(recent)
			risk += 0.2 * float64(len(recent))
			r.ContributingFactors = append(r.ContributingFactors,
				fmt.Sprintf("%d %s anomalies in the last hour (worst %s)", len(recent), m.name, worstSeverity(recent)))
		}

		trend := e.trends.Analyze(series)
		if !trend.Insufficient() {
			fitted++
			fitSum += trend.FitQuality
			adverse := trend.Increasing()
			if m.adverseDecrease {
				adverse = trend.Decreasing()
			}
			if adverse && trend.FitQuality > performanceTrendQuality {
				risk += 0.15
				r.ContributingFactors = append(r.ContributingFactors,
					fmt.Sprintf("%s %s (fit %.2f)", m.name, trend.Direction, trend.FitQuality))
			}
		}

		if found := e.miner.FindPatterns(series); len(found) > 0 {
			top := found[0]
			factor := fmt.Sprintf("%s repeats a %d-sample pattern every %.0fs", m.name, top.Length, top.AverageInterval)
			if next, ok := patterns.NextOccurrence(top); ok {
				factor += ", next around " + utils.FromUnixSeconds(next).UTC().Format("15:04:05")
			}
			r.ContributingFactors = append(r.ContributingFactors, factor)
		}
	}

	confidence := 0.5
	if fitted > 0 {
		confidence = 0.5 + 0.5*fitSum/float64(fitted)
	} else {
		r.Metadata["insufficient_data"] = "true"
	}
	r.Metadata["recent_anomalies"] = strconv.Itoa(anomalyCount)

	risk, confidence, r.ModelUsed = e.blend(ModelPerformanceDegradation, snapshot, clamp01(risk), confidence)
	r.Probability = risk
	r.Confidence = confidence

	switch {
	case risk > 0.7:
		r.Severity, r.TimeHorizon = models.SeverityHigh, 30
		r.PredictedValue = models.StringValue("degrading")
		r.RecommendedActions = []string{
			"Scale out the request path",
			"Review recent deployments for regressions",
			"Check downstream dependency latency",
		}
	case risk > 0.5:
		r.Severity, r.TimeHorizon = models.SeverityMedium, 120
		r.PredictedValue = models.StringValue("degrading")
		r.RecommendedActions = []string{
			"Profile slow endpoints",
			"Review queue consumers",
		}
	case risk > 0.3:
		r.Severity, r.TimeHorizon = models.SeverityLow, 480
		r.PredictedValue = models.StringValue("at_risk")
		r.RecommendedActions = []string{"Watch latency percentiles"}
	default:
		r.Severity, r.TimeHorizon = models.SeverityLow, 1440
		r.PredictedValue = models.StringValue("stable")
		r.RecommendedActions = []string{"Continue routine monitoring"}
	}
	return e.finish(r, "")
}

func worstSeverity(anomalies []analysis.Anomaly) models.Severity {
	worst := models.SeverityLow
	for _, a := range anomalies {
		if a.Severity.Rank() > worst.Rank() {
			worst = a.Severity
		}
	}
	return worst
}
