package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"gocast/domain/panel"
)

// RMSE returns the root mean squared error over the residual set
func RMSE(residuals []Residual) float64 {
	if len(residuals) == 0 {
		return math.NaN()
	}
	sq := 0.0
	for _, r := range residuals {
		v := r.Value()
		sq += v * v
	}
	return math.Sqrt(sq / float64(len(residuals)))
}

// SMAPE returns the symmetric mean absolute percentage error in [0, 2]
func SMAPE(residuals []Residual) float64 {
	if len(residuals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, r := range residuals {
		denom := math.Abs(r.Actual) + math.Abs(r.Predicted)
		if denom == 0 {
			continue
		}
		sum += 2 * math.Abs(r.Value()) / denom
	}
	return sum / float64(len(residuals))
}

// RMSSE returns the root mean squared scaled error per entity: squared
// forecast errors scaled by the entity's in-sample one-step naive error.
// Entities whose training series is flat (zero naive error) are skipped.
func RMSSE(residuals []Residual, train *panel.Panel) map[panel.EntityID]float64 {
	scale := make(map[panel.EntityID]float64)
	for _, s := range train.GroupByEntity() {
		if s.Len() < 2 {
			continue
		}
		diffs := make([]float64, s.Len()-1)
		for i := 1; i < s.Len(); i++ {
			diffs[i-1] = s.Targets[i] - s.Targets[i-1]
		}
		floats.Mul(diffs, diffs)
		scale[s.Entity] = floats.Sum(diffs) / float64(len(diffs))
	}

	sq := make(map[panel.EntityID]float64)
	n := make(map[panel.EntityID]int)
	for _, r := range residuals {
		v := r.Value()
		sq[r.Entity] += v * v
		n[r.Entity]++
	}

	out := make(map[panel.EntityID]float64)
	for entity, total := range sq {
		sc, ok := scale[entity]
		if !ok || sc == 0 {
			continue
		}
		out[entity] = math.Sqrt(total / float64(n[entity]) / sc)
	}
	return out
}

// MeanRMSEByWindow averages per-window RMSE values, ignoring NaN entries.
// Used by the search coordinator to reduce split scores to one number.
func MeanRMSEByWindow(byWindow map[int][]Residual) float64 {
	vals := make([]float64, 0, len(byWindow))
	for _, residuals := range byWindow {
		v := RMSE(residuals)
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return floats.Sum(vals) / float64(len(vals))
}
