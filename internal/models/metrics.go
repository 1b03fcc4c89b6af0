package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Recognised metric names.
const (
	MetricCPUUsage     = "cpu_usage"
	MetricMemoryUsage  = "memory_usage"
	MetricDiskUsage    = "disk_usage"
	MetricNetworkUsage = "network_usage"
	MetricErrorRate    = "error_rate"

	MetricResponseTime = "response_time"
	MetricThroughput   = "throughput"
	MetricLatency      = "latency"
	MetricQueueSize    = "queue_size"

	MetricDBQueryTime       = "db_query_time"
	MetricDBConnectionUsage = "db_connection_usage"
	MetricBackupAgeHours    = "backup_age_hours"
	MetricCacheHitRatio     = "cache_hit_ratio"
	MetricCacheMemoryUsage  = "cache_memory_usage"
	MetricDiskFragmentation = "disk_fragmentation"
	MetricDiskIOWait        = "disk_io_wait"
	MetricPacketLoss        = "packet_loss"
	MetricNetworkErrorRate  = "network_error_rate"
)

var (
	// ErrUnknownMetric flags a metric name outside the schema.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrInvalidMetric flags empty names and non-finite values.
	ErrInvalidMetric = errors.New("invalid metric")
)

// Schema lists the metric names each operation reads.
var Schema = map[PredictionKind][]string{
	KindSystemFailure: {
		MetricCPUUsage, MetricMemoryUsage, MetricDiskUsage, MetricErrorRate,
	},
	KindResourceExhaustion: {
		MetricCPUUsage, MetricMemoryUsage, MetricDiskUsage, MetricNetworkUsage,
	},
	KindPerformanceDegradation: {
		MetricResponseTime, MetricThroughput, MetricLatency, MetricQueueSize,
	},
	KindMaintenanceNeed: {
		MetricDBQueryTime, MetricDBConnectionUsage, MetricBackupAgeHours,
		MetricCacheHitRatio, MetricCacheMemoryUsage,
		MetricDiskFragmentation, MetricDiskIOWait, MetricDiskUsage,
		MetricPacketLoss, MetricNetworkErrorRate,
	},
}

var recognised = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, names := range Schema {
		for _, name := range names {
			set[name] = struct{}{}
		}
	}
	return set
}()

// IsRecognised reports whether name belongs to any operation's schema.
func IsRecognised(name string) bool {
	_, ok := recognised[name]
	return ok
}

// MetricMap is a snapshot of current metric values keyed by name.
type MetricMap map[string]float64

// Validate rejects empty names, non-finite values and names outside the schema.
func (m MetricMap) Validate() error {
	var unknown []string
	for name, value := range m {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty metric name", ErrInvalidMetric)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: %s has non-finite value", ErrInvalidMetric, name)
		}
		if !IsRecognised(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrUnknownMetric, strings.Join(unknown, ", "))
	}
	return nil
}

// Lookup returns the value for name and whether it was supplied.
func (m MetricMap) Lookup(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// SortedNames returns the metric names in lexical order.
func (m MetricMap) SortedNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
