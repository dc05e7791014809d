// Command cli runs a forecasting demo on a synthetic panel: fit, predict,
// backtest and optional xlsx export, all from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"gocast/adapters/estimator"
	"gocast/adapters/excel"
	"gocast/adapters/tuner"
	"gocast/app"
	"gocast/domain/core"
	"gocast/domain/forecast"
	"gocast/internal"
	"gocast/internal/backtest"
	"gocast/internal/strategy"
	"gocast/internal/testkit"
)

func main() {
	entities := flag.Int("entities", 3, "number of synthetic entities")
	length := flag.Int("length", 48, "observations per entity")
	lags := flag.Int("lags", 12, "lag order")
	horizon := flag.Int("horizon", 6, "forecast horizon")
	kind := flag.String("strategy", "recursive", "recursive, direct or ensemble")
	alpha := flag.Float64("alpha", 1.0, "ridge regularization strength")
	seed := flag.Int64("seed", 1, "panel generator seed")
	report := flag.String("report", "", "write backtest report to this xlsx path")
	intervals := flag.Bool("intervals", false, "attach conformal prediction intervals")
	flag.Parse()

	if err := run(*entities, *length, *lags, *horizon, *kind, *alpha, *seed, *report, *intervals); err != nil {
		log.Fatal(err)
	}
}

func run(entities, length, lags, horizon int, kind string, alpha float64, seed int64, report string, withIntervals bool) error {
	ctx := context.Background()

	genCfg := testkit.DefaultPanelConfig()
	genCfg.EntityCount = entities
	genCfg.Length = length
	genCfg.Seed = seed
	p, err := testkit.GeneratePanel(genCfg)
	if err != nil {
		return fmt.Errorf("panel generation failed: %w", err)
	}

	cfg := strategy.Config{
		Strategy:    strategy.Kind(kind),
		Lags:        lags,
		MaxHorizons: horizon,
		Freq:        core.MustFrequency(genCfg.Freq),
		Regressor:   estimator.NewRidge(alpha),
	}
	split := backtest.SplitConfig{
		TestSize: horizon,
		StepSize: horizon,
		NSplits:  3,
		Mode:     backtest.Expanding,
	}

	service := app.NewForecastService(nil, excel.NewReportWriter(), tuner.NewRandomSearch(seed), internal.DefaultLogger)

	req := app.ForecastRequest{Panel: p, Config: cfg, Horizon: horizon}
	if withIntervals {
		req.Alphas = []float64{0.1, 0.9}
		req.Split = split
	}
	result, err := service.Forecast(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("model %s: %d forecast points over %d entities\n", result.ModelID, len(result.Points), p.NumEntities())
	for _, pt := range result.Points {
		fmt.Printf("  %-12s t=%d h=%d value=%.2f", pt.Entity, pt.Time, pt.Horizon, pt.Value)
		if pt.Flagged(forecast.FlagHorizonCoverageFallback) {
			fmt.Print("  (beyond trained horizons)")
		}
		fmt.Println()
	}
	for _, iv := range result.Intervals {
		fmt.Printf("  %-12s h=%d [%.2f, %.2f]\n", iv.Entity, iv.Horizon, iv.Lower, iv.Upper)
	}

	bt, err := service.Backtest(ctx, app.BacktestRequest{
		Panel:      p,
		Config:     cfg,
		Split:      split,
		ReportPath: report,
	})
	if err != nil {
		return err
	}
	fmt.Printf("backtest %s: RMSE=%.3f SMAPE=%.3f over %d residuals\n",
		bt.RunID, forecast.RMSE(bt.Residuals), forecast.SMAPE(bt.Residuals), len(bt.Residuals))
	if report != "" {
		fmt.Printf("report written to %s\n", report)
	}
	return nil
}
