package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-predict/internal/repo"
)

// HistorySource supplies past samples for a metric.
type HistorySource interface {
	FetchMetricSeries(ctx context.Context, source, metric string, start, end time.Time) ([]repo.MetricPoint, error)
}

// Backfill seeds the history of each metric from src over the lookback
// window. Fetch failures are logged and skipped; the count of recorded
// samples is returned.
func (e *Engine) Backfill(ctx context.Context, src HistorySource, source string, metricNames []string, lookback time.Duration) int {
	if src == nil || len(metricNames) == 0 {
		return 0
	}
	end := e.now()
	start := end.Add(-lookback)
	meta := map[string]string{"source": source}

	recorded := 0
	for _, metric := range metricNames {
		points, err := src.FetchMetricSeries(ctx, source, metric, start, end)
		if err != nil {
			e.logger.Warn("history backfill failed", slog.String("metric", metric), slog.Any("error", err))
			continue
		}
		for _, p := range points {
			if err := e.AddDataPoint(ctx, metric, p.Value, p.Timestamp, meta); err != nil {
				e.logger.Warn("skipping backfilled sample", slog.String("metric", metric), slog.Any("error", err))
				break
			}
			recorded++
		}
		e.logger.Info("history backfilled", slog.String("metric", metric), slog.Int("points", len(points)))
	}
	return recorded
}
