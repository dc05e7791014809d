// Package automl couples lag-order selection with hyperparameter selection
// through the backtest machinery. The search algorithm itself lives behind
// the Tuner port; this coordinator only supplies the scoring function,
// default search space, and result bookkeeping.
package automl

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gocast/domain/core"
	"gocast/domain/forecast"
	"gocast/domain/panel"
	"gocast/internal/backtest"
	"gocast/internal/strategy"
	"gocast/ports"
)

// RegressorFactory builds an estimator capability from sampled
// hyperparameters. Called once per candidate, never shared across them.
type RegressorFactory func(params map[string]float64) ports.Regressor

// Config describes one coordinated search
type Config struct {
	Base    strategy.Config // Lags and Regressor are overridden per candidate
	Split   backtest.SplitConfig
	Space   ports.SearchSpace
	Factory RegressorFactory
}

// Validate checks the pieces the coordinator itself consumes
func (c Config) Validate() error {
	if c.Factory == nil {
		return core.NewValidationError("factory", "regressor factory is required")
	}
	if c.Space.MinLags < 1 || c.Space.MaxLags < c.Space.MinLags {
		return core.NewValidationError("lags", fmt.Sprintf("invalid range [%d, %d]", c.Space.MinLags, c.Space.MaxLags))
	}
	if c.Space.Budget <= 0 && c.Space.MaxEvals <= 0 {
		return core.NewValidationError("budget", "either a time budget or an evaluation cap is required")
	}
	return c.Split.Validate()
}

// Coordinator runs the joint (lags, hyperparameters) search over one panel
type Coordinator struct {
	cfg   Config
	tuner ports.Tuner

	mu     sync.Mutex
	result *ports.SearchResult
}

// New creates a coordinator delegating the search to the given tuner
func New(cfg Config, tuner ports.Tuner) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tuner == nil {
		return nil, core.NewValidationError("tuner", "search backend is required")
	}
	return &Coordinator{cfg: cfg, tuner: tuner}, nil
}

// Score evaluates one candidate: instantiate the strategy with the
// candidate's lag order and hyperparameters, backtest it, and average RMSE
// across splits. Lower is better. This is the objective handed to the
// external search backend.
func (c *Coordinator) Score(ctx context.Context, p *panel.Panel, x *panel.Exog, cand ports.Candidate) (float64, error) {
	cfg := c.cfg.Base
	cfg.Lags = cand.Lags
	cfg.Regressor = c.cfg.Factory(cand.Params)

	engine, err := strategy.New(cfg)
	if err != nil {
		return math.NaN(), err
	}
	result, err := engine.Backtest(ctx, p, x, c.cfg.Split)
	if err != nil {
		return math.NaN(), err
	}
	score := forecast.MeanRMSEByWindow(result.ResidualsByWindow)
	if math.IsNaN(score) {
		return math.NaN(), fmt.Errorf("candidate lags=%d produced no scorable residuals", cand.Lags)
	}
	return score, nil
}

// Search runs the tuner to completion or to its budget boundary.
// Cancelling ctx stops the search cleanly at the next candidate boundary,
// discarding the in-flight evaluation; completed evaluations are kept.
func (c *Coordinator) Search(ctx context.Context, p *panel.Panel, x *panel.Exog) (*ports.SearchResult, error) {
	objective := func(ctx context.Context, cand ports.Candidate) (float64, error) {
		return c.Score(ctx, p, x, cand)
	}
	result, err := c.tuner.Minimize(ctx, c.cfg.Space, objective)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.result = result
	c.mu.Unlock()
	return result, nil
}

// BestParams returns the best observed (lags, hyperparameters) pair.
// Read-only after the search completes; errors before any search ran.
func (c *Coordinator) BestParams() (ports.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return ports.Candidate{}, core.ErrNotFitted
	}
	return c.result.Best, nil
}

// Evaluations returns the scores of every evaluated candidate
func (c *Coordinator) Evaluations() []ports.Evaluation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil
	}
	out := make([]ports.Evaluation, len(c.result.Evaluated))
	copy(out, c.result.Evaluated)
	return out
}

// DefaultSpace is a reasonable starting search space for an autoregressive
// model: short through seasonal lag orders and a log-spread regularization
// strength, with the midpoint as the initial probe.
func DefaultSpace(minLags, maxLags int, budgetEvals int) ports.SearchSpace {
	mid := (minLags + maxLags) / 2
	return ports.SearchSpace{
		MinLags: minLags,
		MaxLags: maxLags,
		Params: map[string]ports.ParamRange{
			"alpha": {Min: 1e-4, Max: 10},
		},
		InitialPoints: []ports.Candidate{
			{Lags: mid, Params: map[string]float64{"alpha": 1}},
		},
		MaxEvals: budgetEvals,
	}
}
