package patterns

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/mirador-predict/internal/models"
)

// Defaults for the motif search.
const (
	DefaultMinPatternLength    = 3
	DefaultMaxPatternLength    = 20
	DefaultSimilarityThreshold = 0.8
	DefaultWindowSize          = 100
	MaxPatterns                = 10
	minMatches                 = 2
)

// Config controls the motif search.
type Config struct {
	MinPatternLength    int
	MaxPatternLength    int
	SimilarityThreshold float64
	// WindowSize bounds the search to the newest samples; zero means all.
	WindowSize int
	// SeasonalityPeriods are extra candidate lengths, in samples.
	SeasonalityPeriods []int
}

// Miner discovers recurring sub-sequences with a normalised cross-correlation scan.
type Miner struct {
	cfg    Config
	logger *slog.Logger
}

// NewMiner constructs a Miner, filling unset config fields with defaults.
func NewMiner(logger *slog.Logger, cfg Config) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinPatternLength < 2 {
		cfg.MinPatternLength = DefaultMinPatternLength
	}
	if cfg.MaxPatternLength < cfg.MinPatternLength {
		cfg.MaxPatternLength = DefaultMaxPatternLength
		if cfg.MaxPatternLength < cfg.MinPatternLength {
			cfg.MaxPatternLength = cfg.MinPatternLength
		}
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.WindowSize < 0 {
		cfg.WindowSize = 0
	}
	return &Miner{cfg: cfg, logger: logger}
}

// FindPatterns returns up to MaxPatterns motifs ordered by confidence.
//
// Every candidate window is compared against the non-overlapping remainder of
// the series, so the scan is O(n²·w) in the analysed window size.
func (m *Miner) FindPatterns(series models.TimeSeriesData) []models.Pattern {
	if m.cfg.WindowSize > 0 {
		series = series.Tail(m.cfg.WindowSize)
	}
	n := series.Len()

	lengths := m.candidateLengths(n)
	if len(lengths) == 0 {
		return nil
	}

	patterns := make([]models.Pattern, 0)
	for _, length := range lengths {
		covered := make(map[int]struct{})
		for start := 0; start+length <= n; start++ {
			if _, ok := covered[start]; ok {
				continue
			}
			pattern, ok := m.match(series, start, length)
			if !ok {
				continue
			}
			for _, pos := range pattern.Occurrences {
				covered[pos] = struct{}{}
			}
			patterns = append(patterns, pattern)
		}
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if len(a.Occurrences) != len(b.Occurrences) {
			return len(a.Occurrences) > len(b.Occurrences)
		}
		return a.Length < b.Length
	})
	if len(patterns) > MaxPatterns {
		patterns = patterns[:MaxPatterns]
	}

	m.logger.Debug("pattern scan complete",
		slog.String("metric", series.MetricName),
		slog.Int("points", n),
		slog.Int("patterns", len(patterns)))
	return patterns
}

func (m *Miner) match(series models.TimeSeriesData, start, length int) (models.Pattern, bool) {
	values := series.Values
	candidate := values[start : start+length]

	occurrences := []int{start}
	var similaritySum float64
	for j := start + length; j+length <= len(values); {
		sim := Similarity(candidate, values[j:j+length])
		if sim > m.cfg.SimilarityThreshold {
			occurrences = append(occurrences, j)
			similaritySum += sim
			j += length
			continue
		}
		j++
	}

	matches := len(occurrences) - 1
	if matches < minMatches {
		return models.Pattern{}, false
	}

	times := make([]float64, len(occurrences))
	for i, pos := range occurrences {
		times[i] = series.Timestamps[pos]
	}
	var gaps float64
	for i := 1; i < len(times); i++ {
		gaps += times[i] - times[i-1]
	}

	return models.Pattern{
		Values:          append([]float64(nil), candidate...),
		Length:          length,
		Occurrences:     occurrences,
		OccurrenceTimes: times,
		AverageInterval: gaps / float64(len(times)-1),
		Confidence:      similaritySum / float64(matches),
	}, true
}

func (m *Miner) candidateLengths(n int) []int {
	limit := n / 2
	seen := make(map[int]struct{})
	lengths := make([]int, 0)
	add := func(l int) {
		if l < 2 || l > limit {
			return
		}
		if _, ok := seen[l]; ok {
			return
		}
		seen[l] = struct{}{}
		lengths = append(lengths, l)
	}
	upper := m.cfg.MaxPatternLength
	if upper > limit {
		upper = limit
	}
	for l := m.cfg.MinPatternLength; l <= upper; l++ {
		add(l)
	}
	for _, p := range m.cfg.SeasonalityPeriods {
		add(p)
	}
	sort.Ints(lengths)
	return lengths
}

// Similarity is the absolute Pearson correlation of two equal-length windows,
// which equals the correlation of their z-normalised forms. Degenerate windows score 0.
func Similarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	corr := stat.Correlation(a, b, nil)
	if math.IsNaN(corr) || math.IsInf(corr, 0) {
		return 0
	}
	return math.Min(1, math.Abs(corr))
}

// NextOccurrence projects the pattern's next appearance as unix seconds.
func NextOccurrence(p models.Pattern) (float64, bool) {
	last, ok := p.LastOccurrence()
	if !ok || p.AverageInterval <= 0 {
		return 0, false
	}
	return last + p.AverageInterval, true
}
