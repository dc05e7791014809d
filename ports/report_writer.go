package ports

import (
	"gocast/domain/forecast"
)

// BacktestReport is the flattened output of one backtest run, ready for
// export.
type BacktestReport struct {
	RunID     string
	Strategy  string
	Lags      int
	NSplits   int
	Points    []forecast.Point
	Residuals []forecast.Residual
	Warnings  []forecast.Warning
}

// ReportWriter exports forecast and backtest results for human review
type ReportWriter interface {
	WriteBacktestReport(path string, report *BacktestReport) error
	WriteForecast(path string, fc *forecast.Forecast, intervals []forecast.Interval) error
}
