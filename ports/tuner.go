package ports

import (
	"context"
	"time"
)

// Candidate is one point in the joint lag-order x hyperparameter space
type Candidate struct {
	Lags   int
	Params map[string]float64
}

// ParamRange bounds one continuous hyperparameter
type ParamRange struct {
	Min float64
	Max float64
}

// SearchSpace describes the joint space a tuner explores. Lag order and
// hyperparameters are searched together, never sequentially.
type SearchSpace struct {
	MinLags int
	MaxLags int
	Params  map[string]ParamRange

	// InitialPoints are evaluated before any sampled candidates
	InitialPoints []Candidate

	// Budget bounds wall-clock search time; zero means unbounded.
	// MaxEvals bounds candidate count; zero means unbounded. At least one
	// bound must be set.
	Budget   time.Duration
	MaxEvals int
}

// Evaluation records one scored candidate. Err is set when the objective
// failed for that candidate; failed evaluations never become the best.
type Evaluation struct {
	Candidate Candidate
	Score     float64
	Err       error
}

// SearchResult is the outcome of one search run
type SearchResult struct {
	Best      Candidate
	BestScore float64
	Evaluated []Evaluation
}

// Objective scores one candidate; lower is better
type Objective func(ctx context.Context, c Candidate) (float64, error)

// Tuner is the external hyperparameter-search backend. Implementations
// must honor context cancellation at candidate boundaries: an in-flight
// evaluation may be discarded, completed evaluations are always reported.
type Tuner interface {
	Minimize(ctx context.Context, space SearchSpace, objective Objective) (*SearchResult, error)
}
