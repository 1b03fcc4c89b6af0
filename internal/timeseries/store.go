package timeseries

import (
	"sort"
	"sync"
	"time"

	"github.com/miradorstack/mirador-predict/internal/models"
	"github.com/miradorstack/mirador-predict/internal/utils"
)

// DefaultMaxHistoryPoints bounds each series when no limit is configured.
const DefaultMaxHistoryPoints = 1000

// Store keeps a bounded, timestamp-ordered history per metric.
type Store struct {
	mu        sync.RWMutex
	series    map[string]*models.TimeSeriesData
	maxPoints int
	now       func() time.Time
}

// NewStore creates a Store holding up to maxPoints samples per metric.
func NewStore(maxPoints int) *Store {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxHistoryPoints
	}
	return &Store{
		series:    make(map[string]*models.TimeSeriesData),
		maxPoints: maxPoints,
		now:       time.Now,
	}
}

// WithClock overrides the time source used for samples without a timestamp.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Append records a sample, creating the series on first use. A zero at means
// now. Samples older than the newest entry are inserted in timestamp order.
// Metadata keys are merged into the series metadata; "source" sets the source tag.
func (s *Store) Append(metric string, value float64, at time.Time, metadata map[string]string) {
	if at.IsZero() {
		at = s.now()
	}
	ts := utils.UnixSeconds(at)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.series[metric]
	if !ok {
		data = &models.TimeSeriesData{
			MetricName: metric,
			Source:     "system",
			Metadata:   make(map[string]string),
		}
		s.series[metric] = data
	}
	for k, v := range metadata {
		if k == "source" {
			data.Source = v
			continue
		}
		data.Metadata[k] = v
	}

	n := len(data.Timestamps)
	if n == 0 || ts >= data.Timestamps[n-1] {
		data.Timestamps = append(data.Timestamps, ts)
		data.Values = append(data.Values, value)
	} else {
		idx := sort.Search(n, func(i int) bool { return data.Timestamps[i] > ts })
		data.Timestamps = insertAt(data.Timestamps, idx, ts)
		data.Values = insertAt(data.Values, idx, value)
	}

	if len(data.Values) > s.maxPoints {
		s.evict(data)
	}
}

// evict drops the oldest fifth of the capacity in one shift.
func (s *Store) evict(data *models.TimeSeriesData) {
	drop := s.maxPoints / 5
	if drop < 1 {
		drop = 1
	}
	if over := len(data.Values) - s.maxPoints; over > drop {
		drop = over
	}
	data.Timestamps = append(data.Timestamps[:0], data.Timestamps[drop:]...)
	data.Values = append(data.Values[:0], data.Values[drop:]...)
}

// Get returns a snapshot of metric's history. ok is false for unknown metrics.
func (s *Store) Get(metric string) (models.TimeSeriesData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.series[metric]
	if !ok {
		return models.TimeSeriesData{MetricName: metric}, false
	}
	snapshot := models.TimeSeriesData{
		MetricName: data.MetricName,
		Source:     data.Source,
		Timestamps: append([]float64(nil), data.Timestamps...),
		Values:     append([]float64(nil), data.Values...),
	}
	if len(data.Metadata) > 0 {
		snapshot.Metadata = make(map[string]string, len(data.Metadata))
		for k, v := range data.Metadata {
			snapshot.Metadata[k] = v
		}
	}
	return snapshot, true
}

// Len returns the number of samples held for metric.
func (s *Store) Len(metric string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.series[metric]; ok {
		return len(data.Values)
	}
	return 0
}

// Metrics lists known metric names in lexical order.
func (s *Store) Metrics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaxPoints returns the per-metric capacity.
func (s *Store) MaxPoints() int {
	return s.maxPoints
}

func insertAt(values []float64, idx int, v float64) []float64 {
	values = append(values, 0)
	copy(values[idx+1:], values[idx:])
	values[idx] = v
	return values
}
