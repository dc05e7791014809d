// Package estimator provides gonum-backed implementations of the regressor
// and classifier capabilities. Every constructor returns a stateless
// factory; fitted predictors are immutable values safe to share.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"gocast/ports"
)

// Ridge fits L2-regularized least squares with an intercept. Features are
// standardized before fitting; the inverse transform is baked into the
// fitted predictor.
type Ridge struct {
	Alpha float64
}

// NewRidge creates a ridge regressor factory. Alpha <= 0 degenerates to
// ordinary least squares.
func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

// NewOLS creates an unregularized least squares factory
func NewOLS() *Ridge {
	return &Ridge{Alpha: 0}
}

// Fit solves (Zᵀ Z + αI) β = Zᵀ y on standardized features Z
func (r *Ridge) Fit(ctx context.Context, features [][]float64, labels []float64) (ports.Predictor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := len(features)
	if n == 0 || n != len(labels) {
		return nil, fmt.Errorf("ridge: %d feature rows vs %d labels", n, len(labels))
	}
	d := len(features[0])
	if d == 0 {
		return nil, errors.New("ridge: empty feature rows")
	}

	mean, std := columnStats(features)

	// Design matrix: standardized features plus intercept column.
	z := mat.NewDense(n, d+1, nil)
	for i, row := range features {
		if len(row) != d {
			return nil, fmt.Errorf("ridge: ragged feature row %d", i)
		}
		for j, v := range row {
			z.Set(i, j, (v-mean[j])/std[j])
		}
		z.Set(i, d, 1)
	}
	y := mat.NewVecDense(n, labels)

	var ztz mat.Dense
	ztz.Mul(z.T(), z)
	if r.Alpha > 0 {
		// Regularize feature coefficients only, not the intercept.
		for j := 0; j < d; j++ {
			ztz.Set(j, j, ztz.At(j, j)+r.Alpha)
		}
	}
	var zty mat.VecDense
	zty.MulVec(z.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&ztz, &zty); err != nil {
		return nil, fmt.Errorf("ridge: singular system: %w", err)
	}

	coef := make([]float64, d)
	for j := 0; j < d; j++ {
		coef[j] = beta.AtVec(j)
	}
	return &linearPredictor{
		coef:      coef,
		intercept: beta.AtVec(d),
		mean:      mean,
		std:       std,
	}, nil
}

type linearPredictor struct {
	coef      []float64
	intercept float64
	mean      []float64
	std       []float64
}

func (p *linearPredictor) Predict(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) != len(p.coef) {
			return nil, fmt.Errorf("ridge: row width %d, model expects %d", len(row), len(p.coef))
		}
		v := p.intercept
		for j, x := range row {
			v += p.coef[j] * (x - p.mean[j]) / p.std[j]
		}
		out[i] = v
	}
	return out, nil
}

// columnStats returns per-column mean and standard deviation, with zero
// deviations clamped to 1 so constant columns stay usable.
func columnStats(features [][]float64) (mean, std []float64) {
	d := len(features[0])
	mean = make([]float64, d)
	std = make([]float64, d)
	col := make([]float64, len(features))
	for j := 0; j < d; j++ {
		for i, row := range features {
			col[i] = row[j]
		}
		m, s := stat.MeanStdDev(col, nil)
		if s == 0 || math.IsNaN(s) {
			s = 1
		}
		mean[j] = m
		std[j] = s
	}
	return mean, std
}
