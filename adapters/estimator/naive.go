package estimator

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"gocast/ports"
)

// Mean predicts the training-label mean regardless of features. Baseline
// model for comparison runs and a convenient deterministic test double.
type Mean struct{}

// NewMean creates a mean-baseline regressor factory
func NewMean() *Mean {
	return &Mean{}
}

// Fit implements ports.Regressor
func (m *Mean) Fit(ctx context.Context, features [][]float64, labels []float64) (ports.Predictor, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("mean: no labels")
	}
	return constPredictor(stat.Mean(labels, nil)), nil
}

type constPredictor float64

func (c constPredictor) Predict(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i := range out {
		out[i] = float64(c)
	}
	return out, nil
}

// SeasonalNaive predicts the lag feature at the seasonal period: with lag
// features ordered most-recent-first, period 1 repeats the last observed
// value. Requires the strategy's lag order to be >= Period.
type SeasonalNaive struct {
	Period int
}

// NewNaive creates a last-value baseline (seasonal period 1)
func NewNaive() *SeasonalNaive {
	return &SeasonalNaive{Period: 1}
}

// NewSeasonalNaive creates a seasonal naive baseline
func NewSeasonalNaive(period int) *SeasonalNaive {
	return &SeasonalNaive{Period: period}
}

// Fit implements ports.Regressor. No parameters are learned; fitting only
// validates that the feature width covers the period.
func (s *SeasonalNaive) Fit(ctx context.Context, features [][]float64, labels []float64) (ports.Predictor, error) {
	if s.Period < 1 {
		return nil, fmt.Errorf("seasonal naive: period %d < 1", s.Period)
	}
	if len(features) == 0 || len(features[0]) < s.Period {
		return nil, fmt.Errorf("seasonal naive: need at least %d lag features", s.Period)
	}
	return naivePredictor(s.Period), nil
}

type naivePredictor int

func (p naivePredictor) Predict(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) < int(p) {
			return nil, fmt.Errorf("seasonal naive: row width %d < period %d", len(row), int(p))
		}
		out[i] = row[int(p)-1]
	}
	return out, nil
}
