package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/sajari/regression"
)

// linearRegression is an ordinary least squares regressor. Only the fitted
// coefficients are kept so the model can be restored without the training set.
type linearRegression struct {
	features []string

	Bias    float64   `json:"bias"`
	Weights []float64 `json:"weights"`
	R2      float64   `json:"r2"`
}

func (l *linearRegression) fit(rows [][]float64, labels []float64, _ hyperparameters) (float64, error) {
	if len(rows) <= len(rows[0]) {
		return 0, fmt.Errorf("need more than %d rows for %d features", len(rows[0]), len(rows[0]))
	}

	var r regression.Regression
	r.SetObserved("target")
	for i := range rows[0] {
		name := fmt.Sprintf("f%d", i)
		if i < len(l.features) {
			name = l.features[i]
		}
		r.SetVar(i, name)
	}
	for i, row := range rows {
		r.Train(regression.DataPoint(labels[i], row))
	}
	if err := r.Run(); err != nil {
		return 0, fmt.Errorf("regression: %w", err)
	}

	coeffs := r.GetCoeffs()
	if len(coeffs) != len(rows[0])+1 {
		return 0, fmt.Errorf("regression returned %d coefficients, want %d", len(coeffs), len(rows[0])+1)
	}
	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return 0, errors.New("regression produced non-finite coefficients")
		}
	}
	l.Bias = coeffs[0]
	l.Weights = append([]float64(nil), coeffs[1:]...)
	l.R2 = r.R2
	if math.IsNaN(l.R2) {
		l.R2 = 0
	}
	return l.R2, nil
}

func (l *linearRegression) predict(features []float64) Prediction {
	value := l.Bias
	for i, w := range l.Weights {
		value += w * features[i]
	}
	return Prediction{
		Value:      value,
		Confidence: clamp01(l.R2),
	}
}

func (l *linearRegression) marshal() ([]byte, error) { return json.Marshal(l) }

func (l *linearRegression) unmarshal(data []byte, width int) error {
	if err := json.Unmarshal(data, l); err != nil {
		return err
	}
	if len(l.Weights) != width {
		return fmt.Errorf("linear parameters have %d weights for %d features", len(l.Weights), width)
	}
	if !finiteAll(l.Weights) || !finiteAll([]float64{l.Bias}) {
		return errors.New("linear parameters are not finite")
	}
	return nil
}
