package strategy

import (
	"context"
	"errors"
	"fmt"

	"gocast/domain/core"
	"gocast/domain/forecast"
	"gocast/domain/panel"
	"gocast/internal/features"
	"gocast/ports"
)

// CensoredConfig configures the censored combiner: a binary threshold
// classifier blended with two sub-strategies fit on either side of the
// threshold. Both branches share the Base configuration.
type CensoredConfig struct {
	Threshold  float64
	Base       Config
	Classifier ports.Classifier
}

// Validate checks the configuration
func (c CensoredConfig) Validate() error {
	if c.Classifier == nil {
		return core.NewValidationError("classifier", "classifier capability is required")
	}
	return c.Base.Validate()
}

// Censored produces one point forecast per (entity, time, horizon) for
// targets with structural zeros or a censoring threshold. The final
// forecast is p*above + (1-p)*below, with p the classifier's probability
// that the future target exceeds the threshold.
type Censored struct {
	cfg CensoredConfig

	above *Engine // nil when no entity trains above the threshold
	below *Engine // nil when no entity trains below the threshold
	clf   ports.ProbPredictor
	tails []tailEntry
}

// NewCensored creates a censored combiner
func NewCensored(cfg CensoredConfig) (*Censored, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Censored{cfg: cfg}, nil
}

// NewZeroInflated creates a censored combiner specialized for
// zero-inflated targets: threshold fixed at zero.
func NewZeroInflated(base Config, classifier ports.Classifier) (*Censored, error) {
	return NewCensored(CensoredConfig{Threshold: 0, Base: base, Classifier: classifier})
}

// Fit trains the classifier on indicator(target > threshold) over the full
// panel and one sub-strategy per threshold side. A side with no trainable
// entities is recorded as empty, not fatal.
func (c *Censored) Fit(ctx context.Context, p *panel.Panel, x *panel.Exog) error {
	threshold := c.cfg.Threshold

	// Classifier: same lag features as the sub-strategies, labels are
	// exceedance indicators.
	builder := features.NewBuilder(c.cfg.Base.Lags, c.cfg.Base.Freq)
	built, err := builder.Build(p)
	if err != nil {
		return err
	}
	if len(built.Entities) == 0 {
		return fmt.Errorf("every entity excluded: %w", core.ErrInsufficientHistory)
	}
	var matrix [][]float64
	var labels []float64
	for _, ef := range built.Entities {
		for i := range ef.Y {
			matrix = append(matrix, ef.X[i])
			if ef.Y[i] > threshold {
				labels = append(labels, 1)
			} else {
				labels = append(labels, 0)
			}
		}
	}
	clf, err := c.cfg.Classifier.Fit(ctx, matrix, labels)
	if err != nil {
		return fmt.Errorf("fitting threshold classifier: %w", err)
	}
	c.clf = clf
	c.tails = make([]tailEntry, len(built.Entities))
	for i, ef := range built.Entities {
		c.tails[i] = tailEntry{entity: ef.Entity, values: ef.Tail, lastTime: ef.TailTime}
	}

	c.above, err = c.fitBranch(ctx, p, x, func(v float64) bool { return v > threshold })
	if err != nil {
		return fmt.Errorf("above branch: %w", err)
	}
	c.below, err = c.fitBranch(ctx, p, x, func(v float64) bool { return v <= threshold })
	if err != nil {
		return fmt.Errorf("below branch: %w", err)
	}
	if c.above == nil && c.below == nil {
		return fmt.Errorf("neither branch trainable: %w", core.ErrInsufficientHistory)
	}
	return nil
}

// fitBranch fits one sub-strategy on the observations matching pred.
// Returns nil when the subset cannot train any entity.
func (c *Censored) fitBranch(ctx context.Context, p *panel.Panel, x *panel.Exog, pred func(float64) bool) (*Engine, error) {
	subset, err := p.Lazy().FilterTargets(pred).Collect()
	if err != nil {
		return nil, err
	}
	if subset.NumObservations() == 0 {
		return nil, nil
	}
	engine, err := New(c.cfg.Base)
	if err != nil {
		return nil, err
	}
	if _, err := engine.Fit(ctx, subset, x); err != nil {
		if errors.Is(err, core.ErrInsufficientHistory) {
			return nil, nil
		}
		return nil, err
	}
	return engine, nil
}

// Predict blends the branch forecasts. When an entire branch is empty the
// other branch's forecast is returned unchanged, flagged; when only a
// single entity misses a branch, that branch's value defaults to the
// threshold itself and the point is flagged.
func (c *Censored) Predict(ctx context.Context, fh int, xFuture *panel.Exog) (*forecast.Forecast, error) {
	if c.clf == nil {
		return nil, core.ErrNotFitted
	}
	if fh < 1 {
		return nil, core.NewValidationError("fh", fmt.Sprintf("%d < 1", fh))
	}

	if c.below == nil {
		return c.branchOnly(ctx, c.above, fh, xFuture)
	}
	if c.above == nil {
		return c.branchOnly(ctx, c.below, fh, xFuture)
	}

	aboveFc, err := c.above.Predict(ctx, fh, xFuture)
	if err != nil {
		return nil, err
	}
	belowFc, err := c.below.Predict(ctx, fh, xFuture)
	if err != nil {
		return nil, err
	}
	aboveBy := indexPoints(aboveFc)
	belowBy := indexPoints(belowFc)

	fc := &forecast.Forecast{}
	for _, te := range c.tails {
		probs, err := c.clf.PredictProbability([][]float64{te.values})
		if err != nil {
			return nil, fmt.Errorf("classifying entity %s: %w", te.entity, err)
		}
		p := probs[0]
		for h := 1; h <= fh; h++ {
			t := c.cfg.Base.Freq.Add(te.lastTime, h)
			key := pointKey{te.entity, h}
			var flags []forecast.Flag

			fa, okAbove := aboveBy[key]
			fb, okBelow := belowBy[key]
			if !okAbove {
				fa = c.cfg.Threshold
				flags = append(flags, forecast.FlagEmptyCensorBranch)
			}
			if !okBelow {
				fb = c.cfg.Threshold
				flags = append(flags, forecast.FlagEmptyCensorBranch)
			}
			fc.Points = append(fc.Points, forecast.Point{
				Entity:  te.entity,
				Time:    t,
				Horizon: h,
				Value:   p*fa + (1-p)*fb,
				Flags:   flags,
			})
		}
	}
	return fc, nil
}

// branchOnly returns the sole populated branch's forecast, flagged
func (c *Censored) branchOnly(ctx context.Context, branch *Engine, fh int, xFuture *panel.Exog) (*forecast.Forecast, error) {
	fc, err := branch.Predict(ctx, fh, xFuture)
	if err != nil {
		return nil, err
	}
	for i := range fc.Points {
		fc.Points[i].Flags = append(fc.Points[i].Flags, forecast.FlagEmptyCensorBranch)
	}
	return fc, nil
}

type pointKey struct {
	entity  panel.EntityID
	horizon int
}

func indexPoints(fc *forecast.Forecast) map[pointKey]float64 {
	out := make(map[pointKey]float64, len(fc.Points))
	for _, p := range fc.Points {
		out[pointKey{p.Entity, p.Horizon}] = p.Value
	}
	return out
}
