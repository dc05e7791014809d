// Package excel exports forecast and backtest results as xlsx workbooks.
package excel

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"gocast/domain/forecast"
	"gocast/ports"
)

// reportWriter implements the ReportWriter interface
type reportWriter struct{}

// NewReportWriter creates a new xlsx report writer
func NewReportWriter() ports.ReportWriter {
	return &reportWriter{}
}

// WriteBacktestReport writes one workbook with Summary, Residuals and
// Forecasts sheets.
func (w *reportWriter) WriteBacktestReport(path string, report *ports.BacktestReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeSummarySheet(f, report); err != nil {
		return err
	}
	if err := w.writeResidualSheet(f, report.Residuals); err != nil {
		return err
	}
	if err := w.writePointSheet(f, "Forecasts", report.Points); err != nil {
		return err
	}

	f.DeleteSheet("Sheet1")
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save backtest report: %w", err)
	}
	return nil
}

// WriteForecast writes point forecasts and, when present, their prediction
// intervals.
func (w *reportWriter) WriteForecast(path string, fc *forecast.Forecast, intervals []forecast.Interval) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writePointSheet(f, "Forecasts", fc.Points); err != nil {
		return err
	}
	if len(intervals) > 0 {
		if err := w.writeIntervalSheet(f, intervals); err != nil {
			return err
		}
	}

	f.DeleteSheet("Sheet1")
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

func (w *reportWriter) writeSummarySheet(f *excelize.File, report *ports.BacktestReport) error {
	sheet := "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	rows := [][]interface{}{
		{"Run ID", report.RunID},
		{"Strategy", report.Strategy},
		{"Lags", report.Lags},
		{"Splits", report.NSplits},
		{"Residuals", len(report.Residuals)},
		{"RMSE", forecast.RMSE(report.Residuals)},
		{"SMAPE", forecast.SMAPE(report.Residuals)},
		{"Warnings", len(report.Warnings)},
	}
	for _, warn := range report.Warnings {
		rows = append(rows, []interface{}{fmt.Sprintf("Warning (%s)", warn.Entity), warn.Err.Error()})
	}

	return writeRows(f, sheet, nil, rows)
}

func (w *reportWriter) writeResidualSheet(f *excelize.File, residuals []forecast.Residual) error {
	sheet := "Residuals"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	header := []interface{}{"Entity", "Time", "Horizon", "Actual", "Predicted", "Residual"}
	rows := make([][]interface{}, 0, len(residuals))
	for _, r := range residuals {
		rows = append(rows, []interface{}{string(r.Entity), r.Time, r.Horizon, r.Actual, r.Predicted, r.Value()})
	}
	return writeRows(f, sheet, header, rows)
}

func (w *reportWriter) writePointSheet(f *excelize.File, sheet string, points []forecast.Point) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	header := []interface{}{"Entity", "Time", "Horizon", "Value", "Flags"}
	rows := make([][]interface{}, 0, len(points))
	for _, p := range points {
		rows = append(rows, []interface{}{string(p.Entity), p.Time, p.Horizon, p.Value, joinFlags(p.Flags)})
	}
	return writeRows(f, sheet, header, rows)
}

func (w *reportWriter) writeIntervalSheet(f *excelize.File, intervals []forecast.Interval) error {
	sheet := "Intervals"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	header := []interface{}{"Entity", "Time", "Horizon", "Lower", "Point", "Upper", "Flags"}
	rows := make([][]interface{}, 0, len(intervals))
	for _, iv := range intervals {
		rows = append(rows, []interface{}{string(iv.Entity), iv.Time, iv.Horizon, iv.Lower, iv.Point, iv.Upper, joinFlags(iv.Flags)})
	}
	return writeRows(f, sheet, header, rows)
}

func joinFlags(flags []forecast.Flag) string {
	parts := make([]string, len(flags))
	for i, fl := range flags {
		parts[i] = string(fl)
	}
	return strings.Join(parts, ",")
}

// writeRows writes an optional header row then the data rows, starting at A1
func writeRows(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	rowIdx := 1
	if header != nil {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		if err := f.SetSheetRow(sheet, cell, &header); err != nil {
			return fmt.Errorf("failed to write header on %s: %w", sheet, err)
		}
		rowIdx++
	}
	for _, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d on %s: %w", rowIdx, sheet, err)
		}
		rowIdx++
	}
	return nil
}
