package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/miradorstack/mirador-predict/internal/models"
)

// healthCheck is one threshold test contributing to a component score.
type healthCheck struct {
	metric string
	above  bool
	limit  float64
	weight float64
	factor string
	action string
}

type component struct {
	name   string
	checks []healthCheck
}

var maintenanceComponents = []component{
	{name: "database", checks: []healthCheck{
		{models.MetricDBQueryTime, true, 1000, 0.3, "slow database queries", "Analyse and index slow queries"},
		{models.MetricDBConnectionUsage, true, 0.8, 0.3, "database connection pool near capacity", "Raise the connection pool limit or add replicas"},
		{models.MetricBackupAgeHours, true, 24, 0.4, "database backup older than 24h", "Run and verify a database backup"},
	}},
	{name: "cache", checks: []healthCheck{
		{models.MetricCacheHitRatio, false, 0.8, 0.3, "cache hit ratio below 80%", "Review cache keys and TTLs"},
		{models.MetricCacheMemoryUsage, true, 0.9, 0.3, "cache memory above 90%", "Increase cache memory or tune eviction"},
	}},
	{name: "storage", checks: []healthCheck{
		{models.MetricDiskFragmentation, true, 0.3, 0.3, "disk fragmentation above 30%", "Schedule disk defragmentation or compaction"},
		{models.MetricDiskIOWait, true, 0.2, 0.3, "disk I/O wait above 20%", "Move hot data to faster storage"},
		{models.MetricDiskUsage, true, 85, 0.4, "disk usage above 85%", "Clean up or archive old data"},
	}},
	{name: "network", checks: []healthCheck{
		{models.MetricPacketLoss, true, 0.01, 0.4, "packet loss above 1%", "Inspect network interfaces and links"},
		{models.MetricNetworkErrorRate, true, 0.05, 0.3, "network error rate above 5%", "Check NIC errors and switch ports"},
	}},
}

const maintenanceEmitThreshold = 0.2

// PredictMaintenanceNeeds scores database, cache, storage and network health
// and returns one result per component that needs attention.
func (e *Engine) PredictMaintenanceNeeds(ctx context.Context, snapshot models.MetricMap) ([]models.PredictionResult, error) {
	return e.cached(ctx, "predict_maintenance_needs", models.KindMaintenanceNeed, snapshot, func() []models.PredictionResult {
		results := make([]models.PredictionResult, 0)
		for _, c := range maintenanceComponents {
			if r, ok := e.maintenance(c, snapshot); ok {
				results = append(results, r)
			}
		}
		return results
	})
}

func (e *Engine) maintenance(c component, snapshot models.MetricMap) (models.PredictionResult, bool) {
	r := e.result(models.KindMaintenanceNeed)
	var score float64
	supplied := 0
	for _, check := range c.checks {
		v, ok := snapshot.Lookup(check.metric)
		if !ok {
			continue
		}
		supplied++
		breached := v > check.limit
		if !check.above {
			breached = v < check.limit
		}
		if breached {
			score += check.weight
			r.ContributingFactors = append(r.ContributingFactors, fmt.Sprintf("%s (%s=%g)", check.factor, check.metric, v))
			r.RecommendedActions = append(r.RecommendedActions, check.action)
		}
	}
	score = clamp01(score)
	if score <= maintenanceEmitThreshold {
		return models.PredictionResult{}, false
	}

	r.Probability = score
	r.Confidence = 0.5 + 0.5*float64(supplied)/float64(len(c.checks))
	r.PredictedValue = models.StringValue(c.name)
	r.Metadata["component"] = c.name
	r.Metadata["checks_evaluated"] = strconv.Itoa(supplied)

	switch {
	case score > 0.6:
		r.Severity, r.TimeHorizon = models.SeverityHigh, 24*60
	case score > 0.4:
		r.Severity, r.TimeHorizon = models.SeverityMedium, 7*24*60
	default:
		r.Severity, r.TimeHorizon = models.SeverityLow, 30*24*60
	}
	return e.finish(r, c.name), true
}
