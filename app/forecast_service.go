// Package app orchestrates the forecasting workflows over the domain
// engines and injected capabilities.
package app

import (
	"context"
	"fmt"

	"gocast/domain/core"
	"gocast/domain/forecast"
	"gocast/domain/panel"
	"gocast/internal"
	"gocast/internal/automl"
	"gocast/internal/backtest"
	"gocast/internal/conformal"
	"gocast/internal/strategy"
	"gocast/ports"
)

// ForecastService orchestrates fitting, forecasting, backtesting and search
type ForecastService struct {
	store   ports.PanelStore // nil when no database is configured
	reports ports.ReportWriter
	tuner   ports.Tuner
	logger  *internal.Logger
}

// NewForecastService creates a forecast service
func NewForecastService(store ports.PanelStore, reports ports.ReportWriter, tuner ports.Tuner, logger *internal.Logger) *ForecastService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ForecastService{
		store:   store,
		reports: reports,
		tuner:   tuner,
		logger:  logger,
	}
}

// ForecastRequest defines inputs for one forecast run
type ForecastRequest struct {
	Panel      *panel.Panel
	Exog       *panel.Exog
	FutureExog *panel.Exog
	Config     strategy.Config
	Horizon    int

	// Alphas, when set, requests conformal prediction intervals at these
	// ascending residual quantile levels. Intervals need backtest
	// residuals, so Split must be set alongside.
	Alphas []float64
	Split  backtest.SplitConfig
}

// ForecastResult contains the forecast with optional intervals
type ForecastResult struct {
	ModelID   core.ModelID
	Points    []forecast.Point
	Intervals []forecast.Interval
	Warnings  []forecast.Warning
}

// Forecast fits the strategy on the panel and predicts Horizon steps for
// every entity. When interval levels are requested, residuals are collected
// through a backtest first and calibrated into prediction bands.
func (s *ForecastService) Forecast(ctx context.Context, req ForecastRequest) (*ForecastResult, error) {
	if req.Horizon < 1 {
		return nil, core.NewValidationError("horizon", fmt.Sprintf("%d < 1", req.Horizon))
	}

	engine, err := strategy.New(req.Config)
	if err != nil {
		return nil, err
	}

	report, err := engine.Fit(ctx, req.Panel, req.Exog)
	if err != nil {
		return nil, fmt.Errorf("fit failed: %w", err)
	}
	s.logger.Info("fitted model %s: %d rows over %d entities", report.ModelID, report.Rows, report.Entities)

	fc, err := engine.Predict(ctx, req.Horizon, req.FutureExog)
	if err != nil {
		return nil, fmt.Errorf("predict failed: %w", err)
	}

	result := &ForecastResult{
		ModelID:  report.ModelID,
		Points:   fc.Points,
		Warnings: append(report.Warnings, fc.Warnings...),
	}

	if len(req.Alphas) > 0 {
		intervals, err := s.calibrate(ctx, req, fc.Points)
		if err != nil {
			return nil, err
		}
		result.Intervals = intervals
	}
	return result, nil
}

func (s *ForecastService) calibrate(ctx context.Context, req ForecastRequest, points []forecast.Point) ([]forecast.Interval, error) {
	engine, err := strategy.New(req.Config)
	if err != nil {
		return nil, err
	}
	bt, err := engine.Backtest(ctx, req.Panel, req.Exog, req.Split)
	if err != nil {
		return nil, fmt.Errorf("residual collection failed: %w", err)
	}

	cal, err := conformal.New(conformal.Config{Alphas: req.Alphas})
	if err != nil {
		return nil, err
	}
	return cal.Calibrate(bt.Residuals, points)
}

// BacktestRequest defines inputs for one backtest run
type BacktestRequest struct {
	Panel  *panel.Panel
	Exog   *panel.Exog
	Config strategy.Config
	Split  backtest.SplitConfig

	// ReportPath, when set, also writes the flattened report as xlsx
	ReportPath string
}

// Backtest runs the rolling evaluation and optionally exports the report
func (s *ForecastService) Backtest(ctx context.Context, req BacktestRequest) (*strategy.BacktestResult, error) {
	engine, err := strategy.New(req.Config)
	if err != nil {
		return nil, err
	}

	result, err := engine.Backtest(ctx, req.Panel, req.Exog, req.Split)
	if err != nil {
		return nil, err
	}
	s.logger.Info("backtest %s: %d residuals across %d splits", result.RunID, len(result.Residuals), req.Split.NSplits)

	if req.ReportPath != "" && s.reports != nil {
		report := &ports.BacktestReport{
			RunID:     string(result.RunID),
			Strategy:  string(req.Config.Strategy),
			Lags:      req.Config.Lags,
			NSplits:   req.Split.NSplits,
			Residuals: result.Residuals,
			Warnings:  result.Warnings,
		}
		for _, fc := range result.Forecasts {
			report.Points = append(report.Points, fc.Points...)
		}
		if err := s.reports.WriteBacktestReport(req.ReportPath, report); err != nil {
			return nil, fmt.Errorf("report export failed: %w", err)
		}
	}
	return result, nil
}

// SearchRequest defines inputs for one joint lag/hyperparameter search
type SearchRequest struct {
	Panel   *panel.Panel
	Exog    *panel.Exog
	Base    strategy.Config
	Split   backtest.SplitConfig
	Space   ports.SearchSpace
	Factory automl.RegressorFactory
}

// Search runs the automl coordinator over the panel
func (s *ForecastService) Search(ctx context.Context, req SearchRequest) (*ports.SearchResult, error) {
	if s.tuner == nil {
		return nil, core.NewValidationError("tuner", "no search backend configured")
	}
	coord, err := automl.New(automl.Config{
		Base:    req.Base,
		Split:   req.Split,
		Space:   req.Space,
		Factory: req.Factory,
	}, s.tuner)
	if err != nil {
		return nil, err
	}

	result, err := coord.Search(ctx, req.Panel, req.Exog)
	if err != nil {
		return nil, err
	}
	s.logger.Info("search finished: best lags=%d score=%.4f over %d evaluations",
		result.Best.Lags, result.BestScore, len(result.Evaluated))
	return result, nil
}

// LoadPanel fetches a stored panel; fails when no store is configured
func (s *ForecastService) LoadPanel(ctx context.Context, dataset core.DatasetID) (*panel.Panel, error) {
	if s.store == nil {
		return nil, core.NewValidationError("dataset", "no panel store configured")
	}
	return s.store.LoadPanel(ctx, dataset)
}

// AppendObservations stores new observations for a dataset
func (s *ForecastService) AppendObservations(ctx context.Context, dataset core.DatasetID, obs []panel.Observation) error {
	if s.store == nil {
		return core.NewValidationError("dataset", "no panel store configured")
	}
	return s.store.AppendObservations(ctx, dataset, obs)
}

// ListDatasets returns the stored dataset identifiers
func (s *ForecastService) ListDatasets(ctx context.Context) ([]core.DatasetID, error) {
	if s.store == nil {
		return nil, core.NewValidationError("dataset", "no panel store configured")
	}
	return s.store.ListDatasets(ctx)
}
