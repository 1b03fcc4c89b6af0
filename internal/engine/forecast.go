package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-predict/internal/analysis"
	"github.com/miradorstack/mirador-predict/internal/models"
	"github.com/miradorstack/mirador-predict/internal/utils"
)

const (
	forecastHorizonMinutes = 60
	maxPriorityActions     = 5
)

// ComprehensiveForecast records snapshot as the current samples, runs every
// risk operation and aggregates them into a single report.
func (e *Engine) ComprehensiveForecast(ctx context.Context, snapshot models.MetricMap) (models.ForecastReport, error) {
	if err := snapshot.Validate(); err != nil {
		return models.ForecastReport{}, utils.NewAppError("comprehensive_forecast", "invalid metric map", err)
	}

	now := e.now()
	for _, name := range snapshot.SortedNames() {
		if err := e.AddDataPoint(ctx, name, snapshot[name], now, nil); err != nil {
			return models.ForecastReport{}, err
		}
	}

	failure, err := e.PredictSystemFailure(ctx, snapshot)
	if err != nil {
		return models.ForecastReport{}, err
	}
	exhaustion, err := e.PredictResourceExhaustion(ctx, snapshot)
	if err != nil {
		return models.ForecastReport{}, err
	}
	performance, err := e.PredictPerformanceDegradation(ctx, snapshot)
	if err != nil {
		return models.ForecastReport{}, err
	}
	maintenance, err := e.PredictMaintenanceNeeds(ctx, snapshot)
	if err != nil {
		return models.ForecastReport{}, err
	}

	report := models.ForecastReport{
		ID:                     uuid.NewString(),
		GeneratedAt:            now.UTC(),
		SystemFailure:          failure,
		ResourceExhaustion:     exhaustion,
		PerformanceDegradation: performance,
		MaintenanceNeeds:       maintenance,
		Forecasts:              make(map[string]models.MetricForecast),
	}

	all := report.AllPredictions()
	for _, r := range all {
		if r.Probability > report.OverallRisk {
			report.OverallRisk = r.Probability
		}
		switch r.Severity {
		case models.SeverityCritical:
			report.CriticalCount++
		case models.SeverityHigh:
			report.HighCount++
		}
	}
	report.RiskLevel = riskLevel(report.OverallRisk)
	report.PriorityActions = priorityActions(all)

	for _, metric := range e.store.Metrics() {
		forecast, err := e.Forecast(ctx, metric, forecastHorizonMinutes)
		if err != nil {
			var insufficient *analysis.InsufficientDataError
			if !errors.As(err, &insufficient) {
				e.logger.Warn("metric forecast failed", slog.String("metric", metric), slog.Any("error", err))
			}
			continue
		}
		report.Forecasts[metric] = forecast
	}

	e.logger.Debug("comprehensive forecast generated",
		slog.String("id", report.ID),
		slog.Float64("overall_risk", report.OverallRisk),
		slog.String("risk_level", string(report.RiskLevel)),
		slog.Int("critical", report.CriticalCount),
		slog.Int("high", report.HighCount))
	return report, nil
}

func riskLevel(risk float64) models.RiskLevel {
	switch {
	case risk >= 0.8:
		return models.RiskCritical
	case risk >= 0.6:
		return models.RiskHigh
	case risk >= 0.4:
		return models.RiskMedium
	case risk >= 0.2:
		return models.RiskLow
	default:
		return models.RiskMinimal
	}
}

// priorityActions collects the actions of CRITICAL and HIGH results, most
// time-urgent first.
func priorityActions(results []models.PredictionResult) []string {
	urgent := make([]models.PredictionResult, 0, len(results))
	for _, r := range results {
		if r.Severity == models.SeverityCritical || r.Severity == models.SeverityHigh {
			urgent = append(urgent, r)
		}
	}
	sort.SliceStable(urgent, func(i, j int) bool {
		if urgent[i].TimeHorizon != urgent[j].TimeHorizon {
			return urgent[i].TimeHorizon < urgent[j].TimeHorizon
		}
		return urgent[i].Severity.Rank() > urgent[j].Severity.Rank()
	})

	actions := make([]string, 0, maxPriorityActions)
	for _, r := range urgent {
		actions = appendUnique(actions, r.RecommendedActions...)
		if len(actions) >= maxPriorityActions {
			return actions[:maxPriorityActions]
		}
	}
	return actions
}
