package forecast

import (
	"gocast/domain/panel"
)

// Flag marks a documented fallback applied while producing a value
type Flag string

const (
	// FlagHorizonCoverageFallback marks horizons beyond the trained direct
	// horizons, predicted by reusing the last trained horizon's model.
	FlagHorizonCoverageFallback Flag = "horizon_coverage_fallback"

	// FlagEmptyCensorBranch marks censored forecasts where one side of the
	// threshold could not contribute. When a single entity lacks one
	// branch, that branch's value defaults to the threshold and the blend
	// proceeds. When a branch had no trainable observations at all, the
	// surviving branch's forecast is passed through unblended.
	FlagEmptyCensorBranch Flag = "empty_censor_branch"

	// FlagPooledInterval marks intervals calibrated from residuals pooled
	// across entities because the entity's own sample was too small.
	FlagPooledInterval Flag = "pooled_interval"
)

// Point is one point forecast for (entity, time, horizon)
type Point struct {
	Entity  panel.EntityID
	Time    int64
	Horizon int // 1-based steps ahead
	Value   float64
	Flags   []Flag
}

// Flagged reports whether the point carries the given flag
func (p Point) Flagged(f Flag) bool {
	for _, have := range p.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Interval is a calibrated prediction interval around a point forecast.
// Derived from the point, never persisted independently of it.
type Interval struct {
	Entity  panel.EntityID
	Time    int64
	Horizon int
	Lower   float64
	Point   float64
	Upper   float64
	Flags   []Flag
}

// Residual is one backtest error record: actual minus predicted at a given
// horizon offset within a test window.
type Residual struct {
	Entity    panel.EntityID
	Time      int64
	Horizon   int
	Actual    float64
	Predicted float64
}

// Value returns actual - predicted
func (r Residual) Value() float64 {
	return r.Actual - r.Predicted
}

// Warning reports a per-entity, non-fatal failure alongside partial results
type Warning struct {
	Entity panel.EntityID
	Err    error
}

// Forecast is the output of one predict call: points grouped by entity in
// stable order, horizons ascending within each entity, plus per-entity
// warnings for excluded entities.
type Forecast struct {
	Points   []Point
	Warnings []Warning
}

// ByEntity groups the points per entity, preserving horizon order
func (f *Forecast) ByEntity() map[panel.EntityID][]Point {
	out := make(map[panel.EntityID][]Point)
	for _, p := range f.Points {
		out[p.Entity] = append(out[p.Entity], p)
	}
	return out
}

// Len returns the number of forecast points
func (f *Forecast) Len() int {
	return len(f.Points)
}
