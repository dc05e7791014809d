package strategy

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gocast/domain/core"
	"gocast/domain/forecast"
	"gocast/domain/panel"
	"gocast/internal/features"
	"gocast/ports"
)

// Engine is a configured forecasting strategy. Fit produces an exclusively
// owned fitted-model handle; re-fitting replaces it with a fresh handle
// rather than mutating estimators in place, so concurrent backtest windows
// each work against their own Engine safely.
type Engine struct {
	cfg Config

	// ensemble sub-strategies; nil otherwise
	sub []*Engine

	state *fittedState
}

// fittedState is the owned handle around the external fitted estimators
type fittedState struct {
	id      core.ModelID
	models  []ports.Predictor // recursive: one; direct: one per trained horizon
	trained int               // trained horizon count (direct)
	tails   []tailEntry
	hasExog bool
	skipped []forecast.Warning
}

// tailEntry seeds prediction for one entity: last Lags targets, most
// recent first, plus the last observed time.
type tailEntry struct {
	entity   panel.EntityID
	values   []float64
	lastTime int64
}

// New creates an engine from a validated configuration
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg}
	if cfg.Strategy == Ensemble {
		recCfg := cfg
		recCfg.Strategy = Recursive
		dirCfg := cfg
		dirCfg.Strategy = Direct
		rec, err := New(recCfg)
		if err != nil {
			return nil, err
		}
		dir, err := New(dirCfg)
		if err != nil {
			return nil, err
		}
		e.sub = []*Engine{rec, dir}
	}
	return e, nil
}

// NewEnsemble combines already-configured recursive and direct engines.
// Both must share lag order and frequency; a mismatch is a configuration
// error at construction time.
func NewEnsemble(recursive, direct *Engine) (*Engine, error) {
	if recursive.cfg.Strategy != Recursive || direct.cfg.Strategy != Direct {
		return nil, core.NewConfigMismatchError("strategy", recursive.cfg.Strategy, direct.cfg.Strategy)
	}
	if recursive.cfg.Lags != direct.cfg.Lags {
		return nil, core.NewConfigMismatchError("lags", recursive.cfg.Lags, direct.cfg.Lags)
	}
	if !recursive.cfg.Freq.Equal(direct.cfg.Freq) {
		return nil, core.NewConfigMismatchError("freq", recursive.cfg.Freq.Alias(), direct.cfg.Freq.Alias())
	}
	cfg := direct.cfg
	cfg.Strategy = Ensemble
	return &Engine{cfg: cfg, sub: []*Engine{recursive, direct}}, nil
}

// Config returns the engine's configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// ModelID returns the current fitted-model handle ID, empty before fit
func (e *Engine) ModelID() core.ModelID {
	if e.state == nil {
		return ""
	}
	return e.state.id
}

// FitReport summarizes one fit call
type FitReport struct {
	ModelID  core.ModelID
	Rows     int
	Entities int
	Warnings []forecast.Warning
}

// Fit trains the strategy on the panel. Exogenous features, when given,
// are concatenated to every lag feature vector; rows whose exogenous
// values are absent fail the fit. Entities lacking Lags+1 observations are
// excluded and reported, not fatal, unless every entity is excluded.
func (e *Engine) Fit(ctx context.Context, p *panel.Panel, x *panel.Exog) (*FitReport, error) {
	if e.cfg.Strategy == Ensemble {
		return e.fitEnsemble(ctx, p, x)
	}

	builder := features.NewBuilder(e.cfg.Lags, e.cfg.Freq)
	built, err := builder.Build(p)
	if err != nil {
		return nil, err
	}
	if len(built.Entities) == 0 {
		return nil, fmt.Errorf("every entity excluded: %w", core.ErrInsufficientHistory)
	}

	hasExog := x.Width() > 0
	state := &fittedState{
		id:      core.NewModelID(),
		hasExog: hasExog,
		skipped: built.Skipped,
	}

	rows := 0
	switch e.cfg.Strategy {
	case Recursive:
		rows, err = e.fitRecursive(ctx, built, x, state)
	case Direct:
		rows, err = e.fitDirect(ctx, built, x, state)
	}
	if err != nil {
		return nil, err
	}

	state.tails = make([]tailEntry, len(built.Entities))
	for i, ef := range built.Entities {
		state.tails[i] = tailEntry{entity: ef.Entity, values: ef.Tail, lastTime: ef.TailTime}
	}
	e.state = state

	return &FitReport{
		ModelID:  state.id,
		Rows:     rows,
		Entities: len(built.Entities),
		Warnings: built.Skipped,
	}, nil
}

// fitRecursive trains one estimator on one-step-ahead labels pooled across
// all entities.
func (e *Engine) fitRecursive(ctx context.Context, built *features.Result, x *panel.Exog, state *fittedState) (int, error) {
	var matrix [][]float64
	var labels []float64
	for _, ef := range built.Entities {
		for i := range ef.Y {
			row, err := e.trainRow(ef.X[i], ef.Entity, ef.Times[i], x, state.hasExog)
			if err != nil {
				return 0, err
			}
			matrix = append(matrix, row)
			labels = append(labels, ef.Y[i])
		}
	}
	model, err := e.cfg.Regressor.Fit(ctx, matrix, labels)
	if err != nil {
		return 0, fmt.Errorf("fitting one-step estimator: %w", err)
	}
	state.models = []ports.Predictor{model}
	state.trained = 1
	return len(labels), nil
}

// fitDirect trains MaxHorizons independent estimators; estimator h is
// trained on labels h steps ahead of the same lag window. Horizons the
// panel cannot populate stop the ladder early.
func (e *Engine) fitDirect(ctx context.Context, built *features.Result, x *panel.Exog, state *fittedState) (int, error) {
	total := 0
	for h := 1; h <= e.cfg.MaxHorizons; h++ {
		var matrix [][]float64
		var labels []float64
		for _, ef := range built.Entities {
			for i := 0; i+h-1 < ef.Rows(); i++ {
				row, err := e.trainRow(ef.X[i], ef.Entity, ef.Times[i+h-1], x, state.hasExog)
				if err != nil {
					return 0, err
				}
				matrix = append(matrix, row)
				labels = append(labels, ef.Y[i+h-1])
			}
		}
		if len(labels) == 0 {
			break
		}
		model, err := e.cfg.Regressor.Fit(ctx, matrix, labels)
		if err != nil {
			return 0, fmt.Errorf("fitting horizon %d estimator: %w", h, err)
		}
		state.models = append(state.models, model)
		total += len(labels)
	}
	if len(state.models) == 0 {
		return 0, fmt.Errorf("no horizon could be trained: %w", core.ErrInsufficientHistory)
	}
	state.trained = len(state.models)
	return total, nil
}

func (e *Engine) fitEnsemble(ctx context.Context, p *panel.Panel, x *panel.Exog) (*FitReport, error) {
	recReport, err := e.sub[0].Fit(ctx, p, x)
	if err != nil {
		return nil, err
	}
	dirReport, err := e.sub[1].Fit(ctx, p, x)
	if err != nil {
		return nil, err
	}
	e.state = &fittedState{id: core.NewModelID()}
	return &FitReport{
		ModelID:  e.state.id,
		Rows:     recReport.Rows + dirReport.Rows,
		Entities: recReport.Entities,
		Warnings: recReport.Warnings,
	}, nil
}

// trainRow appends exogenous features to a lag vector at fit time
func (e *Engine) trainRow(lagRow []float64, entity panel.EntityID, t int64, x *panel.Exog, hasExog bool) ([]float64, error) {
	if !hasExog {
		return lagRow, nil
	}
	exog, ok := x.At(entity, t)
	if !ok {
		return nil, core.NewValidationError("X", fmt.Sprintf("no exogenous row for entity %s at time %d", entity, t))
	}
	row := make([]float64, 0, len(lagRow)+len(exog))
	row = append(row, lagRow...)
	row = append(row, exog...)
	return row, nil
}

// predictRow builds the feature row for a future point. A fitted engine
// that saw exogenous features requires them at predict time.
func (e *Engine) predictRow(tail []float64, entity panel.EntityID, t int64, xFuture *panel.Exog) ([]float64, error) {
	if !e.state.hasExog {
		out := make([]float64, len(tail))
		copy(out, tail)
		return out, nil
	}
	exog, ok := xFuture.At(entity, t)
	if !ok {
		return nil, core.NewMissingFutureRegressorsError(entity.String(), t)
	}
	row := make([]float64, 0, len(tail)+len(exog))
	row = append(row, tail...)
	row = append(row, exog...)
	return row, nil
}

// Predict produces fh steps per fitted entity. Points are grouped by
// entity in stable fit order with horizons ascending.
func (e *Engine) Predict(ctx context.Context, fh int, xFuture *panel.Exog) (*forecast.Forecast, error) {
	if fh < 1 {
		return nil, core.NewValidationError("fh", fmt.Sprintf("%d < 1", fh))
	}
	if e.state == nil {
		return nil, core.ErrNotFitted
	}
	if e.cfg.Strategy == Ensemble {
		return e.predictEnsemble(ctx, fh, xFuture)
	}

	perEntity := make([][]forecast.Point, len(e.state.tails))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.maxParallel())
	for i := range e.state.tails {
		i := i
		g.Go(func() error {
			pts, err := e.predictEntity(gctx, e.state.tails[i], fh, xFuture)
			if err != nil {
				return err
			}
			perEntity[i] = pts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fc := &forecast.Forecast{Warnings: e.state.skipped}
	for _, pts := range perEntity {
		fc.Points = append(fc.Points, pts...)
	}
	return fc, nil
}

func (e *Engine) predictEntity(ctx context.Context, te tailEntry, fh int, xFuture *panel.Exog) ([]forecast.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch e.cfg.Strategy {
	case Recursive:
		return e.predictRecursive(te, fh, xFuture)
	default:
		return e.predictDirect(te, fh, xFuture)
	}
}

// predictRecursive rolls the tail window forward one step at a time. Each
// prediction becomes an input feature for the next step, so errors
// compound with horizon.
func (e *Engine) predictRecursive(te tailEntry, fh int, xFuture *panel.Exog) ([]forecast.Point, error) {
	tail := make([]float64, len(te.values))
	copy(tail, te.values)

	pts := make([]forecast.Point, fh)
	for h := 1; h <= fh; h++ {
		t := e.cfg.Freq.Add(te.lastTime, h)
		row, err := e.predictRow(tail, te.entity, t, xFuture)
		if err != nil {
			return nil, err
		}
		out, err := e.state.models[0].Predict([][]float64{row})
		if err != nil {
			return nil, fmt.Errorf("predicting step %d for entity %s: %w", h, te.entity, err)
		}
		v := out[0]
		pts[h-1] = forecast.Point{Entity: te.entity, Time: t, Horizon: h, Value: v}

		copy(tail[1:], tail[:len(tail)-1])
		tail[0] = v
	}
	return pts, nil
}

// predictDirect predicts each horizon independently from the single known
// tail window; no compounding. Horizons beyond the trained ladder reuse
// the last trained model and are flagged, never silently extrapolated.
func (e *Engine) predictDirect(te tailEntry, fh int, xFuture *panel.Exog) ([]forecast.Point, error) {
	pts := make([]forecast.Point, fh)
	for h := 1; h <= fh; h++ {
		t := e.cfg.Freq.Add(te.lastTime, h)
		row, err := e.predictRow(te.values, te.entity, t, xFuture)
		if err != nil {
			return nil, err
		}
		idx := h - 1
		var flags []forecast.Flag
		if h > e.state.trained {
			idx = e.state.trained - 1
			flags = []forecast.Flag{forecast.FlagHorizonCoverageFallback}
		}
		out, err := e.state.models[idx].Predict([][]float64{row})
		if err != nil {
			return nil, fmt.Errorf("predicting horizon %d for entity %s: %w", h, te.entity, err)
		}
		pts[h-1] = forecast.Point{Entity: te.entity, Time: t, Horizon: h, Value: out[0], Flags: flags}
	}
	return pts, nil
}

// predictEnsemble averages recursive and direct predictions pointwise
func (e *Engine) predictEnsemble(ctx context.Context, fh int, xFuture *panel.Exog) (*forecast.Forecast, error) {
	recFc, err := e.sub[0].Predict(ctx, fh, xFuture)
	if err != nil {
		return nil, err
	}
	dirFc, err := e.sub[1].Predict(ctx, fh, xFuture)
	if err != nil {
		return nil, err
	}
	if len(recFc.Points) != len(dirFc.Points) {
		return nil, fmt.Errorf("%w: sub-strategies produced %d vs %d points",
			core.ErrConfigurationMismatch, len(recFc.Points), len(dirFc.Points))
	}

	fc := &forecast.Forecast{Warnings: recFc.Warnings}
	fc.Points = make([]forecast.Point, len(recFc.Points))
	for i, rp := range recFc.Points {
		dp := dirFc.Points[i]
		if rp.Entity != dp.Entity || rp.Horizon != dp.Horizon {
			return nil, fmt.Errorf("%w: sub-strategy outputs misaligned at index %d",
				core.ErrConfigurationMismatch, i)
		}
		var flags []forecast.Flag
		flags = append(flags, rp.Flags...)
		flags = append(flags, dp.Flags...)
		fc.Points[i] = forecast.Point{
			Entity:  rp.Entity,
			Time:    rp.Time,
			Horizon: rp.Horizon,
			Value:   (rp.Value + dp.Value) / 2,
			Flags:   flags,
		}
	}
	return fc, nil
}
