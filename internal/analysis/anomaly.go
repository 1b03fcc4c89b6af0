package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/mirador-predict/internal/models"
)

const (
	// MinAnomalyPoints is the minimum history the detector needs.
	MinAnomalyPoints = 20
	// ZScoreThreshold flags values more than three standard deviations out.
	ZScoreThreshold = 3.0
	// IQRMultiplier sets the Tukey fence width.
	IQRMultiplier = 1.5
)

// Detection method labels.
const (
	MethodZScore = "zscore"
	MethodIQR    = "iqr"
)

// Anomaly captures an anomalous metric sample.
type Anomaly struct {
	Index     int             `json:"index"`
	Timestamp float64         `json:"timestamp"`
	Value     float64         `json:"value"`
	ZScore    float64         `json:"z_score"`
	Methods   []string        `json:"methods"`
	Severity  models.Severity `json:"severity"`
}

// AnomalyDetector flags outliers with a z-score test and Tukey IQR fences.
type AnomalyDetector struct {
	zThreshold float64
}

// NewAnomalyDetector creates a detector with the standard thresholds.
func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{zThreshold: ZScoreThreshold}
}

// Detect returns the union of both tests' findings in series order. Each
// point's z-score excludes the point itself so a single outlier cannot
// inflate the spread it is measured against.
func (d *AnomalyDetector) Detect(series models.TimeSeriesData) []Anomaly {
	n := series.Len()
	if n < MinAnomalyPoints {
		return nil
	}

	values := series.Values
	mean, std := stat.PopMeanStdDev(values, nil)

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1
	lower, upper := q1-IQRMultiplier*iqr, q3+IQRMultiplier*iqr

	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}

	anomalies := make([]Anomaly, 0)
	for i, v := range values {
		z := leaveOneOutZ(v-mean, ss, n)
		if z == 0 && std > 0 {
			z = (v - mean) / std
		}

		var methods []string
		if math.Abs(z) > d.zThreshold {
			methods = append(methods, MethodZScore)
		}
		if v < lower || v > upper {
			methods = append(methods, MethodIQR)
		}
		if len(methods) == 0 {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			Index:     i,
			Timestamp: series.Timestamps[i],
			Value:     v,
			ZScore:    z,
			Methods:   methods,
			Severity:  SeverityFromZScore(z),
		})
	}
	return anomalies
}

// leaveOneOutZ scores a point deviating d from the full-series mean against
// the mean and population std of the other n-1 points. ss is the full
// series' sum of squared deviations. It returns 0 when the other points have
// no spread beyond rounding error.
func leaveOneOutZ(d, ss float64, n int) float64 {
	rest := float64(n - 1)
	restSS := ss - d*d*float64(n)/rest
	if restSS <= ss*1e-12 {
		return 0
	}
	restStd := math.Sqrt(restSS / rest)
	return d * float64(n) / rest / restStd
}

// SeverityFromZScore tiers an anomaly by the magnitude of its z-score.
func SeverityFromZScore(z float64) models.Severity {
	switch z = math.Abs(z); {
	case z > 4:
		return models.SeverityCritical
	case z > 3.5:
		return models.SeverityHigh
	case z > 3:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Since filters anomalies to those at or after the given unix-seconds cutoff.
func Since(anomalies []Anomaly, cutoff float64) []Anomaly {
	recent := make([]Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		if a.Timestamp >= cutoff {
			recent = append(recent, a)
		}
	}
	return recent
}
