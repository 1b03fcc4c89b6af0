package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/mirador-predict/internal/models"
)

// Direction classifies the monotonic tendency of a series.
type Direction string

const (
	DirectionIncreasing       Direction = "increasing"
	DirectionDecreasing       Direction = "decreasing"
	DirectionStable           Direction = "stable"
	DirectionInsufficientData Direction = "insufficient_data"
)

const (
	// MinTrendPoints is the minimum history a trend fit needs.
	MinTrendPoints = 10
	// DefaultTrendThreshold is the per-sample slope below which a series is stable.
	DefaultTrendThreshold = 0.05
)

// Trend is the outcome of a linear fit over a metric's history.
type Trend struct {
	Direction          Direction `json:"direction"`
	Slope              float64   `json:"slope"` // value units per second
	Intercept          float64   `json:"intercept"`
	FitQuality         float64   `json:"fit_quality"`
	PredictionAccuracy float64   `json:"prediction_accuracy"`
	Points             int       `json:"points"`
}

// Insufficient reports whether the fit was skipped for lack of history.
func (t Trend) Insufficient() bool {
	return t.Direction == DirectionInsufficientData
}

// Increasing reports an upward trend.
func (t Trend) Increasing() bool { return t.Direction == DirectionIncreasing }

// Decreasing reports a downward trend.
func (t Trend) Decreasing() bool { return t.Direction == DirectionDecreasing }

// TrendAnalyzer fits first-degree polynomials to metric histories.
type TrendAnalyzer struct {
	threshold float64
}

// NewTrendAnalyzer returns an analyzer using threshold to separate stable from
// moving series; non-positive values fall back to DefaultTrendThreshold.
func NewTrendAnalyzer(threshold float64) *TrendAnalyzer {
	if threshold <= 0 {
		threshold = DefaultTrendThreshold
	}
	return &TrendAnalyzer{threshold: threshold}
}

// Analyze fits value against timestamp by ordinary least squares.
//
// The threshold is compared against the slope scaled to the mean sampling
// step, so the classification does not depend on whether samples arrive
// every second or every hour. Strictly monotonic series are always reported
// by their slope sign.
func (a *TrendAnalyzer) Analyze(series models.TimeSeriesData) Trend {
	n := series.Len()
	if n < MinTrendPoints {
		return Trend{Direction: DirectionInsufficientData, Points: n}
	}

	x, y := series.Timestamps, series.Values
	step := (x[n-1] - x[0]) / float64(n-1)
	if step <= 0 {
		return Trend{Direction: DirectionStable, Points: n}
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return Trend{Direction: DirectionStable, Points: n}
	}

	trend := Trend{
		Slope:              beta,
		Intercept:          alpha,
		FitQuality:         fitQuality(x, y, alpha, beta),
		PredictionAccuracy: predictionAccuracy(x, y, alpha, beta),
		Points:             n,
	}

	switch monotonic(y) {
	case 1:
		trend.Direction = DirectionIncreasing
		return trend
	case -1:
		trend.Direction = DirectionDecreasing
		return trend
	}

	switch perStep := beta * step; {
	case math.Abs(perStep) < a.threshold:
		trend.Direction = DirectionStable
	case perStep > 0:
		trend.Direction = DirectionIncreasing
	default:
		trend.Direction = DirectionDecreasing
	}
	return trend
}

func fitQuality(x, y []float64, alpha, beta float64) float64 {
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0
	}
	return clamp01(r2)
}

// predictionAccuracy is 1 - mean relative error, skipping zero-valued actuals.
func predictionAccuracy(x, y []float64, alpha, beta float64) float64 {
	var sum float64
	var count int
	for i, actual := range y {
		if actual == 0 {
			continue
		}
		fitted := alpha + beta*x[i]
		sum += math.Abs(actual-fitted) / math.Abs(actual)
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Max(0, 1-sum/float64(count))
}

// monotonic returns 1 for strictly increasing, -1 for strictly decreasing, 0 otherwise.
func monotonic(values []float64) int {
	up, down := true, true
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			up = false
		}
		if values[i] >= values[i-1] {
			down = false
		}
		if !up && !down {
			return 0
		}
	}
	switch {
	case up:
		return 1
	case down:
		return -1
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
