package ports

import "context"

// Regressor is the estimator-fitting capability injected per model family.
// Implementations must be stateless factories: concurrent Fit calls across
// distinct entities or backtest windows are required to be safe. The
// returned Predictor is an immutable fitted value; sharing one mutable
// estimator instance across concurrent fits is disallowed.
type Regressor interface {
	Fit(ctx context.Context, features [][]float64, labels []float64) (Predictor, error)
}

// Predictor is a fitted point predictor
type Predictor interface {
	Predict(features [][]float64) ([]float64, error)
}

// Classifier fits a binary probability predictor. Labels are 0/1
// indicators. Required only for the censored-combiner classifier role.
type Classifier interface {
	Fit(ctx context.Context, features [][]float64, labels []float64) (ProbPredictor, error)
}

// ProbPredictor predicts the probability of the positive class
type ProbPredictor interface {
	PredictProbability(features [][]float64) ([]float64, error)
}

// RegressorFunc adapts a fit function to the Regressor interface,
// mirroring curried regressor constructors.
type RegressorFunc func(ctx context.Context, features [][]float64, labels []float64) (Predictor, error)

// Fit implements Regressor
func (f RegressorFunc) Fit(ctx context.Context, features [][]float64, labels []float64) (Predictor, error) {
	return f(ctx, features, labels)
}
