package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful model operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed model operations (training, load or save).
	OutcomeError = "error"
	// OutcomeNotFound labels a model load that found no stored snapshot.
	OutcomeNotFound = "not_found"

	// CacheHit and CacheMiss label prediction cache lookups.
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_predict",
			Name:      "predictions_total",
			Help:      "Total number of prediction results produced, partitioned by kind and severity.",
		},
		[]string{"kind", "severity"},
	)

	predictionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirador_predict",
			Name:      "prediction_seconds",
			Help:      "Prediction latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"kind"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_predict",
			Name:      "prediction_cache_lookups_total",
			Help:      "Prediction cache lookups, partitioned by hit or miss.",
		},
		[]string{"result"},
	)

	modelOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_predict",
			Name:      "model_operations_total",
			Help:      "Learned model operations, partitioned by model, operation and outcome.",
		},
		[]string{"model", "op", "outcome"},
	)

	seriesPoints = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mirador_predict",
			Name:      "series_points",
			Help:      "Number of points retained per metric history.",
		},
		[]string{"metric"},
	)
)

// Register attaches mirador-predict collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		cacheLookupsTotal,
		modelOperationsTotal,
		seriesPoints,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records one produced result.
func ObservePrediction(kind, severity string) {
	predictionsTotal.WithLabelValues(kind, severity).Inc()
}

// ObservePredictionDuration records how long an operation took.
func ObservePredictionDuration(kind string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a prediction cache hit or miss.
func ObserveCacheLookup(hit bool) {
	label := CacheMiss
	if hit {
		label = CacheHit
	}
	cacheLookupsTotal.WithLabelValues(label).Inc()
}

// ObserveModelOperation counts a train/load/save/predict attempt.
func ObserveModelOperation(model, op string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	ObserveModelOutcome(model, op, outcome)
}

// ObserveModelOutcome counts a model operation with an explicit outcome label.
func ObserveModelOutcome(model, op, outcome string) {
	modelOperationsTotal.WithLabelValues(model, op, outcome).Inc()
}

// SetSeriesPoints publishes the retained history length for metric.
func SetSeriesPoints(metric string, n int) {
	seriesPoints.WithLabelValues(metric).Set(float64(n))
}
