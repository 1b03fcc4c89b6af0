package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// isolationForest scores points by how quickly random axis-aligned splits
// isolate them. Trees are stored as flat node slices so they serialise as JSON.
type isolationForest struct {
	Trees      [][]isoNode `json:"trees"`
	SampleSize int         `json:"sample_size"`
	Threshold  float64     `json:"threshold"`
}

type isoNode struct {
	Feature int     `json:"f"`
	Split   float64 `json:"s"`
	Left    int     `json:"l"`
	Right   int     `json:"r"`
	Size    int     `json:"n"`
}

func (n isoNode) leaf() bool { return n.Left < 0 }

func (f *isolationForest) fit(rows [][]float64, _ []float64, hp hyperparameters) (float64, error) {
	estimators := int(hp.get("n_estimators", 100))
	maxSamples := int(hp.get("max_samples", 256))
	contamination := hp.get("contamination", 0.1)
	seed := uint64(hp.get("seed", 42))
	if estimators <= 0 || maxSamples <= 1 {
		return 0, errors.New("n_estimators must be positive and max_samples above 1")
	}
	if contamination <= 0 || contamination >= 0.5 {
		return 0, errors.New("contamination must be in (0, 0.5)")
	}
	if len(rows) < 2 {
		return 0, errors.New("need at least 2 rows")
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	f.SampleSize = min(maxSamples, len(rows))
	heightLimit := int(math.Ceil(math.Log2(float64(f.SampleSize))))

	f.Trees = make([][]isoNode, estimators)
	for t := range f.Trees {
		idx := rng.Perm(len(rows))[:f.SampleSize]
		sample := make([][]float64, len(idx))
		for i, j := range idx {
			sample[i] = rows[j]
		}
		var nodes []isoNode
		buildIsoTree(&nodes, sample, 0, heightLimit, rng)
		f.Trees[t] = nodes
	}

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = f.score(row)
	}
	sort.Float64s(scores)
	f.Threshold = stat.Quantile(1-contamination, stat.Empirical, scores, nil)
	return f.Threshold, nil
}

func buildIsoTree(nodes *[]isoNode, rows [][]float64, depth, limit int, rng *rand.Rand) int {
	at := len(*nodes)
	*nodes = append(*nodes, isoNode{Left: -1, Right: -1, Size: len(rows)})
	if depth >= limit || len(rows) <= 1 {
		return at
	}

	width := len(rows[0])
	var feature int
	var lo, hi float64
	found := false
	for _, candidate := range rng.Perm(width) {
		lo, hi = rows[0][candidate], rows[0][candidate]
		for _, row := range rows[1:] {
			lo = math.Min(lo, row[candidate])
			hi = math.Max(hi, row[candidate])
		}
		if hi > lo {
			feature, found = candidate, true
			break
		}
	}
	if !found {
		return at
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	l := buildIsoTree(nodes, left, depth+1, limit, rng)
	r := buildIsoTree(nodes, right, depth+1, limit, rng)
	n := &(*nodes)[at]
	n.Feature, n.Split, n.Left, n.Right = feature, split, l, r
	return at
}

func (f *isolationForest) pathLength(tree []isoNode, row []float64) float64 {
	var depth float64
	i := 0
	for {
		n := tree[i]
		if n.leaf() {
			return depth + averagePathLength(n.Size)
		}
		if row[n.Feature] < n.Split {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
}

// score maps mean path length to (0,1]; values near 1 are isolated quickly.
func (f *isolationForest) score(row []float64) float64 {
	var total float64
	for _, tree := range f.Trees {
		total += f.pathLength(tree, row)
	}
	mean := total / float64(len(f.Trees))
	c := averagePathLength(f.SampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -mean/c)
}

func (f *isolationForest) predict(features []float64) Prediction {
	s := f.score(features)
	anomalous := s >= f.Threshold
	value := 0.0
	if anomalous {
		value = 1
	}
	return Prediction{
		Value:        value,
		IsAnomaly:    anomalous,
		AnomalyScore: s,
		Confidence:   clamp01(0.5 + math.Abs(s-f.Threshold)),
	}
}

func (f *isolationForest) marshal() ([]byte, error) { return json.Marshal(f) }

func (f *isolationForest) unmarshal(data []byte, width int) error {
	if err := json.Unmarshal(data, f); err != nil {
		return err
	}
	if len(f.Trees) == 0 || f.SampleSize <= 0 {
		return errors.New("isolation forest has no trees")
	}
	for t, tree := range f.Trees {
		if len(tree) == 0 {
			return fmt.Errorf("isolation tree %d is empty", t)
		}
		for i, n := range tree {
			if n.Size < 0 {
				return fmt.Errorf("isolation tree %d node %d has negative size", t, i)
			}
			if n.leaf() {
				continue
			}
			if n.Feature < 0 || n.Feature >= width {
				return fmt.Errorf("isolation tree %d node %d splits on feature %d of %d", t, i, n.Feature, width)
			}
			// Children are appended after their parent, so every path
			// moves to a higher index and terminates.
			if n.Left <= i || n.Right <= i || n.Left >= len(tree) || n.Right >= len(tree) {
				return fmt.Errorf("isolation tree %d node %d has invalid children %d/%d", t, i, n.Left, n.Right)
			}
		}
	}
	return nil
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// binary search tree lookup over n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}
