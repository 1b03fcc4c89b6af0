package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// logisticRegression is a binary classifier trained by batch gradient descent
// on standardised features.
type logisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

func (l *logisticRegression) fit(rows [][]float64, labels []float64, hp hyperparameters) (float64, error) {
	rate := hp.get("learning_rate", 0.1)
	epochs := int(hp.get("epochs", 500))
	l2 := hp.get("l2", 0)
	if rate <= 0 || epochs <= 0 {
		return 0, errors.New("learning_rate and epochs must be positive")
	}

	l.Mean, l.Scale = standardiser(rows)
	x := make([][]float64, len(rows))
	for i, row := range rows {
		x[i] = l.standardise(row)
	}

	width := len(rows[0])
	l.Weights = make([]float64, width)
	l.Bias = 0
	grad := make([]float64, width)
	n := float64(len(rows))

	for epoch := 0; epoch < epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64
		for i, xi := range x {
			residual := sigmoid(floats.Dot(l.Weights, xi)+l.Bias) - labels[i]
			floats.AddScaled(grad, residual, xi)
			gradBias += residual
		}
		floats.Scale(1/n, grad)
		if l2 > 0 {
			floats.AddScaled(grad, l2, l.Weights)
		}
		floats.AddScaled(l.Weights, -rate, grad)
		l.Bias -= rate * gradBias / n
	}

	var correct float64
	for i, xi := range x {
		p := sigmoid(floats.Dot(l.Weights, xi) + l.Bias)
		if (p >= 0.5) == (labels[i] == 1) {
			correct++
		}
	}
	return correct / n, nil
}

func (l *logisticRegression) predict(features []float64) Prediction {
	p := sigmoid(floats.Dot(l.Weights, l.standardise(features)) + l.Bias)
	value := 0.0
	if p >= 0.5 {
		value = 1
	}
	return Prediction{
		Value:       value,
		Probability: p,
		Confidence:  math.Max(p, 1-p),
	}
}

func (l *logisticRegression) standardise(row []float64) []float64 {
	out := make([]float64, len(row))
	floats.SubTo(out, row, l.Mean)
	floats.Div(out, l.Scale)
	return out
}

func (l *logisticRegression) marshal() ([]byte, error) { return json.Marshal(l) }

func (l *logisticRegression) unmarshal(data []byte, width int) error {
	if err := json.Unmarshal(data, l); err != nil {
		return err
	}
	if len(l.Weights) != width || len(l.Mean) != width || len(l.Scale) != width {
		return fmt.Errorf("logistic parameters do not match %d features", width)
	}
	for _, s := range l.Scale {
		if s <= 0 {
			return errors.New("logistic scale must be positive")
		}
	}
	if !finiteAll(l.Weights) || !finiteAll(l.Mean) || !finiteAll(l.Scale) || !finiteAll([]float64{l.Bias}) {
		return errors.New("logistic parameters are not finite")
	}
	return nil
}

// standardiser returns per-column mean and population std. Constant columns
// get unit scale.
func standardiser(rows [][]float64) (mean, scale []float64) {
	width := len(rows[0])
	mean = make([]float64, width)
	scale = make([]float64, width)
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		m, sd := stat.PopMeanStdDev(col, nil)
		mean[j] = m
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		scale[j] = sd
	}
	return mean, scale
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
