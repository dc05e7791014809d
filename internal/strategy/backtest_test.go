package strategy

import (
	"context"
	"errors"
	"testing"

	"gocast/domain/core"
	"gocast/internal/backtest"
)

func TestBacktest_ResidualCollection(t *testing.T) {
	ctx := context.Background()
	long := make([]float64, 20)
	for i := range long {
		long[i] = float64(i + 1)
	}
	other := make([]float64, 20)
	for i := range other {
		other[i] = float64(100 + i)
	}
	p := indexPanel(t, map[string][]float64{"a": long, "b": other})

	engine, err := New(Config{
		Strategy:  Recursive,
		Lags:      2,
		Freq:      core.MustFrequency(core.FreqIndex),
		Regressor: stepRegressor(1),
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}

	cfg := backtest.SplitConfig{TestSize: 2, StepSize: 2, NSplits: 3, Mode: backtest.Expanding}
	result, err := engine.Backtest(ctx, p, nil, cfg)
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}

	// 2 entities x 3 windows x 2 test horizons.
	if len(result.Residuals) != 12 {
		t.Fatalf("residuals = %d, want 12", len(result.Residuals))
	}
	for split := 0; split < 3; split++ {
		if len(result.ResidualsByWindow[split]) != 4 {
			t.Errorf("window %d residuals = %d, want 4", split, len(result.ResidualsByWindow[split]))
		}
		if result.Forecasts[split].Len() != 4 {
			t.Errorf("window %d forecasts = %d, want 4", split, result.Forecasts[split].Len())
		}
	}

	// The step predictor walks +1 from the train tail: on entity a every
	// window's first residual is exactly 0 (series is itself +1 steps).
	for _, r := range result.Residuals {
		if r.Entity == "a" && r.Value() != 0 {
			t.Errorf("entity a residual at h=%d: %v, want 0", r.Horizon, r.Value())
		}
	}
	if result.RunID == "" {
		t.Error("missing run ID")
	}
}

func TestBacktest_FitsIndependentModelPerWindow(t *testing.T) {
	ctx := context.Background()
	long := make([]float64, 24)
	for i := range long {
		long[i] = float64(i)
	}
	p := indexPanel(t, map[string][]float64{"a": long})

	reg := &constRegressor{}
	engine, err := New(Config{
		Strategy:  Recursive,
		Lags:      2,
		Freq:      core.MustFrequency(core.FreqIndex),
		Regressor: reg,
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}

	cfg := backtest.SplitConfig{TestSize: 3, StepSize: 3, NSplits: 4, Mode: backtest.Expanding}
	if _, err := engine.Backtest(ctx, p, nil, cfg); err != nil {
		t.Fatalf("backtest: %v", err)
	}
	if reg.calls != 4 {
		t.Errorf("fit calls = %d, want one per window", reg.calls)
	}
	// The engine itself stays unfitted: windows own their handles.
	if engine.ModelID() != "" {
		t.Error("backtest leaked a fitted handle into the source engine")
	}
}

func TestBacktest_ShortEntitySkippedAndReported(t *testing.T) {
	ctx := context.Background()
	long := make([]float64, 20)
	for i := range long {
		long[i] = float64(i + 1)
	}
	p := indexPanel(t, map[string][]float64{"a": long, "tiny": {1, 2, 3}})

	engine, err := New(Config{
		Strategy:  Recursive,
		Lags:      2,
		Freq:      core.MustFrequency(core.FreqIndex),
		Regressor: stepRegressor(1),
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}

	cfg := backtest.SplitConfig{TestSize: 2, StepSize: 2, NSplits: 3, Mode: backtest.Expanding}
	result, err := engine.Backtest(ctx, p, nil, cfg)
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Entity != "tiny" {
		t.Fatalf("warnings = %+v, want one for tiny", result.Warnings)
	}
	if !errors.Is(result.Warnings[0].Err, core.ErrInsufficientSeriesLength) {
		t.Errorf("warning error = %v", result.Warnings[0].Err)
	}
	// Partial results still produced for the viable entity.
	if len(result.Residuals) != 6 {
		t.Errorf("residuals = %d, want 6", len(result.Residuals))
	}
}

func TestBacktest_AllEntitiesTooShort(t *testing.T) {
	ctx := context.Background()
	p := indexPanel(t, map[string][]float64{"tiny": {1, 2, 3}})

	engine, err := New(Config{
		Strategy:  Recursive,
		Lags:      2,
		Freq:      core.MustFrequency(core.FreqIndex),
		Regressor: stepRegressor(1),
	})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}
	cfg := backtest.SplitConfig{TestSize: 4, StepSize: 4, NSplits: 3, Mode: backtest.Expanding}
	if _, err := engine.Backtest(ctx, p, nil, cfg); !errors.Is(err, core.ErrInsufficientSeriesLength) {
		t.Fatalf("expected ErrInsufficientSeriesLength, got %v", err)
	}
}
