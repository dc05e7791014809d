package strategy

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"gocast/domain/core"
	"gocast/domain/panel"
	"gocast/ports"
)

// stepPredictor predicts row[0] + step: the recursive tail rolls forward
// by a fixed increment, making every step reproducible by hand.
type stepPredictor struct{ step float64 }

func (p stepPredictor) Predict(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		out[i] = row[0] + p.step
	}
	return out, nil
}

// constRegressor hands out one predictor per fit call, reading its output
// from a shared, perturbable slice. Fit order is deterministic: recursive
// fits once, direct fits horizons in ascending order.
type constRegressor struct {
	mu     sync.Mutex
	values []float64
	calls  int
}

type slotPredictor struct {
	r    *constRegressor
	slot int
}

func (p slotPredictor) Predict(features [][]float64) ([]float64, error) {
	p.r.mu.Lock()
	v := p.r.values[p.slot]
	p.r.mu.Unlock()
	out := make([]float64, len(features))
	for i := range out {
		out[i] = v
	}
	return out, nil
}

func (r *constRegressor) Fit(ctx context.Context, features [][]float64, labels []float64) (ports.Predictor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot := r.calls
	r.calls++
	for len(r.values) <= slot {
		r.values = append(r.values, float64(10*(len(r.values)+1)))
	}
	return slotPredictor{r: r, slot: slot}, nil
}

func stepRegressor(step float64) ports.Regressor {
	return ports.RegressorFunc(func(ctx context.Context, features [][]float64, labels []float64) (ports.Predictor, error) {
		return stepPredictor{step: step}, nil
	})
}

func indexPanel(t *testing.T, entities map[string][]float64) *panel.Panel {
	t.Helper()
	var obs []panel.Observation
	for entity, targets := range entities {
		for i, v := range targets {
			obs = append(obs, panel.Observation{Entity: panel.EntityID(entity), Time: int64(i + 1), Target: v})
		}
	}
	p, err := panel.FromObservations(obs)
	if err != nil {
		t.Fatalf("building panel: %v", err)
	}
	return p
}

func TestRecursive_ExactHorizonCount(t *testing.T) {
	ctx := context.Background()
	p := indexPanel(t, map[string][]float64{
		"a": {1, 2, 3, 4, 5, 6},
		"b": {10, 20, 30, 40, 50, 60},
	})

	engine, err := New(Config{
		Strategy:  Recursive,
		Lags:      3,
		Freq:      core.MustFrequency(core.FreqIndex),
		Regressor: stepRegressor(1),
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}
	if _, err := engine.Fit(ctx, p, nil); err != nil {
		t.Fatalf("fit: %v", err)
	}

	fc, err := engine.Predict(ctx, 4, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if fc.Len() != 8 {
		t.Fatalf("points = %d, want 8 (2 entities x 4 horizons)", fc.Len())
	}

	byEntity := fc.ByEntity()
	// Predictor is row[0]+1: entity a tail ends at 6, so 7, 8, 9, 10.
	want := []float64{7, 8, 9, 10}
	for h, pt := range byEntity["a"] {
		if pt.Horizon != h+1 {
			t.Errorf("horizon at position %d = %d", h, pt.Horizon)
		}
		if pt.Value != want[h] {
			t.Errorf("a horizon %d = %v, want %v", h+1, pt.Value, want[h])
		}
		if pt.Time != int64(6+h+1) {
			t.Errorf("a horizon %d time = %d, want %d", h+1, pt.Time, 6+h+1)
		}
	}
	// Step k > 1 depends only on known history plus earlier predictions.
	wantB := []float64{61, 62, 63, 64}
	for h, pt := range byEntity["b"] {
		if pt.Value != wantB[h] {
			t.Errorf("b horizon %d = %v, want %v", h+1, pt.Value, wantB[h])
		}
	}
}

func TestDirect_HorizonsAreIndependent(t *testing.T) {
	ctx := context.Background()
	p := indexPanel(t, map[string][]float64{"a": {1, 2, 3, 4, 5, 6, 7, 8}})

	reg := &constRegressor{}
	engine, err := New(Config{
		Strategy:    Direct,
		Lags:        2,
		MaxHorizons: 3,
		Freq:        core.MustFrequency(core.FreqIndex),
		Regressor:   reg,
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}
	if _, err := engine.Fit(ctx, p, nil); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if reg.calls != 3 {
		t.Fatalf("trained %d estimators, want 3", reg.calls)
	}

	before, err := engine.Predict(ctx, 3, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	// Perturb horizon 3's model only.
	reg.mu.Lock()
	reg.values[2] += 1000
	reg.mu.Unlock()

	after, err := engine.Predict(ctx, 3, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	if before.Points[0].Value != after.Points[0].Value {
		t.Error("perturbing horizon 3 changed horizon 1 output")
	}
	if before.Points[1].Value != after.Points[1].Value {
		t.Error("perturbing horizon 3 changed horizon 2 output")
	}
	if before.Points[2].Value == after.Points[2].Value {
		t.Error("perturbing horizon 3 did not change horizon 3 output")
	}
}

func TestDirect_HorizonCoverageFallback(t *testing.T) {
	ctx := context.Background()
	p := indexPanel(t, map[string][]float64{"a": {1, 2, 3, 4, 5, 6, 7, 8}})

	engine, err := New(Config{
		Strategy:    Direct,
		Lags:        2,
		MaxHorizons: 2,
		Freq:        core.MustFrequency(core.FreqIndex),
		Regressor:   &constRegressor{},
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}
	if _, err := engine.Fit(ctx, p, nil); err != nil {
		t.Fatalf("fit: %v", err)
	}

	fc, err := engine.Predict(ctx, 4, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	pts := fc.Points
	if pts[0].Flagged("horizon_coverage_fallback") || pts[1].Flagged("horizon_coverage_fallback") {
		t.Error("covered horizons must not be flagged")
	}
	for _, i := range []int{2, 3} {
		if !pts[i].Flagged("horizon_coverage_fallback") {
			t.Errorf("horizon %d not flagged", i+1)
		}
		// Overflow horizons reuse the last trained horizon's model.
		if pts[i].Value != pts[1].Value {
			t.Errorf("horizon %d = %v, want last trained value %v", i+1, pts[i].Value, pts[1].Value)
		}
	}
}

func TestEnsemble_IsArithmeticMean(t *testing.T) {
	ctx := context.Background()
	p := indexPanel(t, map[string][]float64{"a": {1, 2, 3, 4, 5, 6, 7, 8}})

	cfg := Config{
		Strategy:    Ensemble,
		Lags:        2,
		MaxHorizons: 3,
		Freq:        core.MustFrequency(core.FreqIndex),
		Regressor:   &constRegressor{},
	}
	ensemble, err := New(cfg)
	if err != nil {
		t.Fatalf("constructing ensemble: %v", err)
	}
	if _, err := ensemble.Fit(ctx, p, nil); err != nil {
		t.Fatalf("fit: %v", err)
	}
	fc, err := ensemble.Predict(ctx, 3, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	// Fit order is deterministic: recursive model first (value 10), then
	// direct horizons 1..3 (values 20, 30, 40).
	want := []float64{(10 + 20) / 2.0, (10 + 30) / 2.0, (10 + 40) / 2.0}
	for i, pt := range fc.Points {
		if math.Abs(pt.Value-want[i]) > 1e-12 {
			t.Errorf("horizon %d = %v, want %v", i+1, pt.Value, want[i])
		}
	}
}

func TestNewEnsemble_ConfigMismatch(t *testing.T) {
	mk := func(kind Kind, lags int, freq string) *Engine {
		e, err := New(Config{
			Strategy:    kind,
			Lags:        lags,
			MaxHorizons: 2,
			Freq:        core.MustFrequency(freq),
			Regressor:   stepRegressor(1),
		})
		if err != nil {
			t.Fatalf("constructing engine: %v", err)
		}
		return e
	}

	if _, err := NewEnsemble(mk(Recursive, 3, "1i"), mk(Direct, 4, "1i")); !errors.Is(err, core.ErrConfigurationMismatch) {
		t.Errorf("lag mismatch: got %v", err)
	}
	if _, err := NewEnsemble(mk(Recursive, 3, "1i"), mk(Direct, 3, "1d")); !errors.Is(err, core.ErrConfigurationMismatch) {
		t.Errorf("freq mismatch: got %v", err)
	}
	if _, err := NewEnsemble(mk(Recursive, 3, "1i"), mk(Direct, 3, "1i")); err != nil {
		t.Errorf("matched configs rejected: %v", err)
	}
}

func TestPredict_RequiresFit(t *testing.T) {
	engine, err := New(Config{
		Strategy:  Recursive,
		Lags:      2,
		Freq:      core.MustFrequency(core.FreqIndex),
		Regressor: stepRegressor(1),
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}
	if _, err := engine.Predict(context.Background(), 3, nil); !errors.Is(err, core.ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
}

func TestFit_ShortEntitiesReportedNotFatal(t *testing.T) {
	ctx := context.Background()
	p := indexPanel(t, map[string][]float64{
		"long":  {1, 2, 3, 4, 5, 6},
		"short": {1, 2},
	})
	engine, err := New(Config{
		Strategy:  Recursive,
		Lags:      3,
		Freq:      core.MustFrequency(core.FreqIndex),
		Regressor: stepRegressor(1),
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}

	report, err := engine.Fit(ctx, p, nil)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Entity != "short" {
		t.Fatalf("warnings = %+v, want one for short", report.Warnings)
	}

	fc, err := engine.Predict(ctx, 2, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if fc.Len() != 2 {
		t.Errorf("points = %d, want 2 (long only)", fc.Len())
	}
	if len(fc.Warnings) != 1 {
		t.Errorf("forecast warnings = %d, want 1", len(fc.Warnings))
	}
}

func TestFit_AllEntitiesShortIsFatal(t *testing.T) {
	ctx := context.Background()
	p := indexPanel(t, map[string][]float64{"a": {1, 2}})
	engine, err := New(Config{
		Strategy:  Recursive,
		Lags:      5,
		Freq:      core.MustFrequency(core.FreqIndex),
		Regressor: stepRegressor(1),
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}
	if _, err := engine.Fit(ctx, p, nil); !errors.Is(err, core.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestPredict_MissingFutureRegressors(t *testing.T) {
	ctx := context.Background()
	p := indexPanel(t, map[string][]float64{"a": {1, 2, 3, 4, 5, 6}})

	x := panel.NewExog([]string{"promo"})
	for ts := int64(1); ts <= 6; ts++ {
		x.Set("a", ts, []float64{float64(ts % 2)})
	}

	engine, err := New(Config{
		Strategy:  Recursive,
		Lags:      2,
		Freq:      core.MustFrequency(core.FreqIndex),
		Regressor: stepRegressor(1),
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}
	if _, err := engine.Fit(ctx, p, x); err != nil {
		t.Fatalf("fit with exog: %v", err)
	}

	// No future rows -> fatal to the predict call.
	if _, err := engine.Predict(ctx, 2, nil); !errors.Is(err, core.ErrMissingFutureRegressors) {
		t.Fatalf("expected ErrMissingFutureRegressors, got %v", err)
	}

	// Supplying the future rows fixes it.
	x.Set("a", 7, []float64{1})
	x.Set("a", 8, []float64{0})
	if _, err := engine.Predict(ctx, 2, x); err != nil {
		t.Fatalf("predict with future exog: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	freq := core.MustFrequency(core.FreqIndex)
	reg := stepRegressor(1)

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid recursive", Config{Strategy: Recursive, Lags: 1, Freq: freq, Regressor: reg}, false},
		{"valid direct", Config{Strategy: Direct, Lags: 1, MaxHorizons: 1, Freq: freq, Regressor: reg}, false},
		{"unknown strategy", Config{Strategy: "magic", Lags: 1, Freq: freq, Regressor: reg}, true},
		{"zero lags", Config{Strategy: Recursive, Lags: 0, Freq: freq, Regressor: reg}, true},
		{"missing freq", Config{Strategy: Recursive, Lags: 1, Regressor: reg}, true},
		{"direct without max horizons", Config{Strategy: Direct, Lags: 1, Freq: freq, Regressor: reg}, true},
		{"missing regressor", Config{Strategy: Recursive, Lags: 1, Freq: freq}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
