// Package tuner provides the default search backend behind the Tuner
// port: seeded uniform random search over the joint lag/hyperparameter
// space. Serviceable as a baseline and trivially resumable; swap in a
// smarter external backend through the same port.
package tuner

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"gocast/domain/core"
	"gocast/ports"
)

// RandomSearch samples candidates uniformly from the search space.
// Deterministic for a given seed.
type RandomSearch struct {
	seed int64
}

// NewRandomSearch creates a seeded random search backend
func NewRandomSearch(seed int64) *RandomSearch {
	return &RandomSearch{seed: seed}
}

// Minimize evaluates initial points first, then random samples, until the
// evaluation cap or time budget is hit. Context cancellation stops at the
// next candidate boundary; the evaluations finished so far are returned.
func (r *RandomSearch) Minimize(ctx context.Context, space ports.SearchSpace, objective ports.Objective) (*ports.SearchResult, error) {
	if space.MinLags < 1 || space.MaxLags < space.MinLags {
		return nil, core.NewValidationError("lags", "invalid lag range")
	}
	if space.Budget <= 0 && space.MaxEvals <= 0 {
		return nil, core.NewValidationError("budget", "unbounded search")
	}

	rng := rand.New(rand.NewSource(r.seed))
	deadline := time.Time{}
	if space.Budget > 0 {
		deadline = time.Now().Add(space.Budget)
	}

	result := &ports.SearchResult{BestScore: math.Inf(1)}
	evaluate := func(cand ports.Candidate) bool {
		score, err := objective(ctx, cand)
		ev := ports.Evaluation{Candidate: cand, Score: score, Err: err}
		result.Evaluated = append(result.Evaluated, ev)
		if err == nil && score < result.BestScore {
			result.Best = cand
			result.BestScore = score
		}
		return true
	}

	budgetLeft := func() bool {
		if ctx.Err() != nil {
			return false
		}
		if space.MaxEvals > 0 && len(result.Evaluated) >= space.MaxEvals {
			return false
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return false
		}
		return true
	}

	for _, cand := range space.InitialPoints {
		if !budgetLeft() {
			break
		}
		evaluate(cand)
	}
	for budgetLeft() {
		evaluate(r.sample(rng, space))
	}

	if math.IsInf(result.BestScore, 1) {
		// A cancellation that prevented any evaluation is the caller's
		// doing, not an exhausted search.
		if ctx.Err() != nil && len(result.Evaluated) == 0 {
			return nil, ctx.Err()
		}
		return nil, core.ErrSearchExhausted
	}
	return result, nil
}

func (r *RandomSearch) sample(rng *rand.Rand, space ports.SearchSpace) ports.Candidate {
	cand := ports.Candidate{
		Lags:   space.MinLags + rng.Intn(space.MaxLags-space.MinLags+1),
		Params: make(map[string]float64, len(space.Params)),
	}
	// Sample in sorted name order so a fixed seed replays exactly.
	names := make([]string, 0, len(space.Params))
	for name := range space.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pr := space.Params[name]
		cand.Params[name] = pr.Min + rng.Float64()*(pr.Max-pr.Min)
	}
	return cand
}
