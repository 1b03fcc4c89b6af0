package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/mirador-predict/internal/models"
)

const (
	// MinForecastPoints is the minimum history the extrapolator needs.
	MinForecastPoints = 50
	// ConfidenceZ is the two-sided 95% normal quantile.
	ConfidenceZ = 1.96
)

// InsufficientDataError reports that a series is too short for an analysis.
type InsufficientDataError struct {
	Metric   string
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d points, have %d", e.Metric, e.Required, e.Got)
}

// ForecastExtrapolator projects a metric forward one point per minute.
type ForecastExtrapolator struct {
	trends *TrendAnalyzer
}

// NewForecastExtrapolator reuses trends for its slope estimate.
func NewForecastExtrapolator(trends *TrendAnalyzer) *ForecastExtrapolator {
	if trends == nil {
		trends = NewTrendAnalyzer(0)
	}
	return &ForecastExtrapolator{trends: trends}
}

// Predict extrapolates horizonMinutes points from the last observed value.
func (f *ForecastExtrapolator) Predict(series models.TimeSeriesData, horizonMinutes int) (models.MetricForecast, error) {
	n := series.Len()
	if n < MinForecastPoints {
		return models.MetricForecast{}, &InsufficientDataError{Metric: series.MetricName, Required: MinForecastPoints, Got: n}
	}
	if horizonMinutes <= 0 {
		return models.MetricForecast{}, fmt.Errorf("forecast horizon must be positive, got %d", horizonMinutes)
	}

	trend := f.trends.Analyze(series)
	lastTS, lastValue, _ := series.Last()
	interval := ConfidenceZ * stat.PopStdDev(series.Values, nil)

	out := models.MetricForecast{
		Timestamps:         make([]float64, horizonMinutes),
		Values:             make([]float64, horizonMinutes),
		Lower:              make([]float64, horizonMinutes),
		Upper:              make([]float64, horizonMinutes),
		ConfidenceInterval: interval,
	}
	for i := 0; i < horizonMinutes; i++ {
		offset := float64(i+1) * 60
		v := lastValue + trend.Slope*offset
		out.Timestamps[i] = lastTS + offset
		out.Values[i] = v
		out.Lower[i] = v - interval
		out.Upper[i] = v + interval
	}
	return out, nil
}
