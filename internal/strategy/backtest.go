package strategy

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"gocast/domain/core"
	"gocast/domain/forecast"
	"gocast/domain/panel"
	"gocast/internal/backtest"
)

// BacktestResult holds forecasts and residual records for every window of
// one backtest run. Residuals are append-only per window and concatenated
// afterwards; no shared mutable state exists between windows.
type BacktestResult struct {
	RunID     core.RunID
	Config    backtest.SplitConfig
	Forecasts map[int]*forecast.Forecast
	Residuals []forecast.Residual

	// ResidualsByWindow keeps the per-split view used for scoring
	ResidualsByWindow map[int][]forecast.Residual

	// Warnings lists entities skipped for insufficient series length or
	// history, deduplicated per entity.
	Warnings []forecast.Warning
}

// Backtest re-fits the strategy independently per window on each training
// range and predicts over the test range. Every window gets a freshly
// constructed engine and fitted-model handle, so windows run in parallel.
func (e *Engine) Backtest(ctx context.Context, p *panel.Panel, x *panel.Exog, cfg backtest.SplitConfig) (*BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if p == nil || p.NumObservations() == 0 {
		return nil, core.ErrEmptyPanel
	}

	// Window layouts are per entity, anchored at each entity's own end.
	// Entities the configuration cannot host are skipped and reported.
	layouts := make(map[panel.EntityID][]backtest.Window)
	var skipped []forecast.Warning
	for _, s := range p.GroupByEntity() {
		windows, err := cfg.Windows(s.Len())
		if err != nil {
			skipped = append(skipped, forecast.Warning{
				Entity: s.Entity,
				Err:    fmt.Errorf("entity %s: %w", s.Entity, err),
			})
			continue
		}
		layouts[s.Entity] = windows
	}
	if len(layouts) == 0 {
		return nil, fmt.Errorf("every entity excluded: %w", core.ErrInsufficientSeriesLength)
	}

	outcomes := make([]windowOutcome, cfg.NSplits)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.maxParallel())
	for split := 0; split < cfg.NSplits; split++ {
		split := split
		g.Go(func() error {
			out, err := e.runWindow(gctx, p, x, layouts, split, cfg.TestSize)
			if err != nil {
				return err
			}
			outcomes[split] = *out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BacktestResult{
		RunID:             core.NewRunID(),
		Config:            cfg,
		Forecasts:         make(map[int]*forecast.Forecast, cfg.NSplits),
		ResidualsByWindow: make(map[int][]forecast.Residual, cfg.NSplits),
		Warnings:          skipped,
	}
	seen := make(map[panel.EntityID]bool)
	for _, w := range skipped {
		seen[w.Entity] = true
	}
	for split, out := range outcomes {
		result.Forecasts[split] = out.fc
		result.ResidualsByWindow[split] = out.residuals
		result.Residuals = append(result.Residuals, out.residuals...)
		for _, w := range out.warnings {
			if !seen[w.Entity] {
				seen[w.Entity] = true
				result.Warnings = append(result.Warnings, w)
			}
		}
	}
	sort.Slice(result.Warnings, func(a, b int) bool {
		return result.Warnings[a].Entity < result.Warnings[b].Entity
	})
	return result, nil
}

type windowOutcome struct {
	fc        *forecast.Forecast
	residuals []forecast.Residual
	warnings  []forecast.Warning
}

func (e *Engine) runWindow(ctx context.Context, p *panel.Panel, x *panel.Exog, layouts map[panel.EntityID][]backtest.Window, split, testSize int) (*windowOutcome, error) {
	// Materialize the training panel and remember each entity's test slice.
	var trainObs []panel.Observation
	testSlices := make(map[panel.EntityID]*panel.Series)
	for _, s := range p.GroupByEntity() {
		windows, ok := layouts[s.Entity]
		if !ok {
			continue
		}
		w := windows[split]
		train := s.Slice(w.TrainStart, w.TrainEnd)
		for i := range train.Times {
			trainObs = append(trainObs, panel.Observation{Entity: s.Entity, Time: train.Times[i], Target: train.Targets[i]})
		}
		testSlices[s.Entity] = s.Slice(w.TestStart, w.TestEnd)
	}

	trainPanel, err := panel.FromObservations(trainObs)
	if err != nil {
		return nil, fmt.Errorf("window %d: %w", split, err)
	}

	// Independent engine and fitted handle per window.
	engine, err := New(e.cfg)
	if err != nil {
		return nil, err
	}
	report, err := engine.Fit(ctx, trainPanel, x)
	if err != nil {
		return nil, fmt.Errorf("window %d: %w", split, err)
	}

	// Historical exogenous rows double as the future regressors inside
	// the held-out range.
	fc, err := engine.Predict(ctx, testSize, x)
	if err != nil {
		return nil, fmt.Errorf("window %d: %w", split, err)
	}

	var residuals []forecast.Residual
	for _, pt := range fc.Points {
		test, ok := testSlices[pt.Entity]
		if !ok || pt.Horizon > test.Len() {
			continue
		}
		residuals = append(residuals, forecast.Residual{
			Entity:    pt.Entity,
			Time:      test.Times[pt.Horizon-1],
			Horizon:   pt.Horizon,
			Actual:    test.Targets[pt.Horizon-1],
			Predicted: pt.Value,
		})
	}
	return &windowOutcome{fc: fc, residuals: residuals, warnings: report.Warnings}, nil
}
