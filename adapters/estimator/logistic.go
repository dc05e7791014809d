package estimator

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"gocast/ports"
)

// Logistic fits binary logistic regression by gradient descent on
// standardized features. Used for the censored-combiner classifier role.
type Logistic struct {
	LearningRate float64
	Iterations   int
	L2           float64
}

// NewLogistic creates a logistic classifier factory with sane defaults
func NewLogistic() *Logistic {
	return &Logistic{LearningRate: 0.1, Iterations: 500, L2: 1e-4}
}

// Fit trains the classifier. Labels must be 0/1 indicators.
func (l *Logistic) Fit(ctx context.Context, features [][]float64, labels []float64) (ports.ProbPredictor, error) {
	n := len(features)
	if n == 0 || n != len(labels) {
		return nil, fmt.Errorf("logistic: %d feature rows vs %d labels", n, len(labels))
	}
	for _, y := range labels {
		if y != 0 && y != 1 {
			return nil, fmt.Errorf("logistic: label %v is not a 0/1 indicator", y)
		}
	}
	d := len(features[0])
	mean, std := columnStats(features)

	z := make([][]float64, n)
	for i, row := range features {
		if len(row) != d {
			return nil, fmt.Errorf("logistic: ragged feature row %d", i)
		}
		zi := make([]float64, d)
		for j, v := range row {
			zi[j] = (v - mean[j]) / std[j]
		}
		z[i] = zi
	}

	coef := make([]float64, d)
	intercept := 0.0
	grad := make([]float64, d)

	for iter := 0; iter < l.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := range grad {
			grad[j] = 0
		}
		gradB := 0.0
		for i, zi := range z {
			p := sigmoid(floats.Dot(coef, zi) + intercept)
			diff := p - labels[i]
			floats.AddScaled(grad, diff, zi)
			gradB += diff
		}
		scale := l.LearningRate / float64(n)
		for j := range coef {
			coef[j] -= scale * (grad[j] + l.L2*coef[j])
		}
		intercept -= scale * gradB
	}

	return &logisticPredictor{
		coef:      coef,
		intercept: intercept,
		mean:      mean,
		std:       std,
	}, nil
}

type logisticPredictor struct {
	coef      []float64
	intercept float64
	mean      []float64
	std       []float64
}

func (p *logisticPredictor) PredictProbability(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) != len(p.coef) {
			return nil, fmt.Errorf("logistic: row width %d, model expects %d", len(row), len(p.coef))
		}
		v := p.intercept
		for j, x := range row {
			v += p.coef[j] * (x - p.mean[j]) / p.std[j]
		}
		out[i] = sigmoid(v)
	}
	return out, nil
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
