package patterns

import (
	"math"
	"testing"

	"github.com/miradorstack/mirador-predict/internal/models"
)

func repeatedMotif(motif []float64, repeats int, step float64) models.TimeSeriesData {
	data := models.TimeSeriesData{MetricName: "response_time"}
	for r := 0; r < repeats; r++ {
		for _, v := range motif {
			data.Timestamps = append(data.Timestamps, 1_700_000_000+float64(len(data.Values))*step)
			data.Values = append(data.Values, v)
		}
	}
	return data
}

func TestMinerFindsMotifInterval(t *testing.T) {
	motif := []float64{0, 10, 3, 7, 1}
	const step = 12.0
	period := float64(len(motif)) * step

	miner := NewMiner(nil, Config{MinPatternLength: 5, MaxPatternLength: 5})
	found := miner.FindPatterns(repeatedMotif(motif, 8, step))
	if len(found) == 0 {
		t.Fatalf("expected patterns")
	}

	matched := false
	for _, p := range found {
		if math.Abs(p.AverageInterval-period)/period <= 0.05 {
			matched = true
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			t.Fatalf("confidence out of range: %f", p.Confidence)
		}
	}
	if !matched {
		t.Fatalf("no pattern with interval ~%v: %+v", period, found)
	}
}

func TestMinerDefaultConfigFindsPeriod(t *testing.T) {
	motif := []float64{0, 10, 3, 7, 1}
	found := NewMiner(nil, Config{}).FindPatterns(repeatedMotif(motif, 10, 60))
	if len(found) == 0 {
		t.Fatalf("expected patterns")
	}
	if len(found) > MaxPatterns {
		t.Fatalf("expected at most %d patterns, got %d", MaxPatterns, len(found))
	}
	for i := 1; i < len(found); i++ {
		if found[i].Confidence > found[i-1].Confidence {
			t.Fatalf("patterns not sorted by confidence")
		}
	}
}

func TestMinerShortSeries(t *testing.T) {
	data := repeatedMotif([]float64{1, 2}, 1, 1)
	if got := NewMiner(nil, Config{}).FindPatterns(data); len(got) != 0 {
		t.Fatalf("expected no patterns, got %d", len(got))
	}
}

func TestSimilarityDegenerateWindow(t *testing.T) {
	if s := Similarity([]float64{1, 1, 1}, []float64{1, 2, 3}); s != 0 {
		t.Fatalf("expected 0 similarity for constant window, got %f", s)
	}
	if s := Similarity([]float64{1, 2, 3}, []float64{3, 2, 1}); math.Abs(s-1) > 1e-9 {
		t.Fatalf("expected |corr| = 1 for mirrored window, got %f", s)
	}
}

func TestNextOccurrence(t *testing.T) {
	p := models.Pattern{OccurrenceTimes: []float64{100, 160, 220}, AverageInterval: 60}
	next, ok := NextOccurrence(p)
	if !ok || next != 280 {
		t.Fatalf("expected 280, got %v (ok=%v)", next, ok)
	}
	if _, ok := NextOccurrence(models.Pattern{OccurrenceTimes: []float64{5}}); ok {
		t.Fatalf("expected absent next occurrence for zero interval")
	}
}
