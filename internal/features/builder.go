// Package features turns panel series into fixed-width lag feature
// vectors. Grouping is strictly per entity; no value ever crosses an
// entity boundary, which is what makes the downstream model global rather
// than a set of naive single-series windows.
package features

import (
	"gocast/domain/core"
	"gocast/domain/forecast"
	"gocast/domain/panel"
)

// Builder constructs lag feature vectors for a fixed lag order and
// frequency. Pure transform: no side effects, no retained state.
type Builder struct {
	Lags int
	Freq core.Frequency
}

// NewBuilder creates a lag feature builder
func NewBuilder(lags int, freq core.Frequency) *Builder {
	return &Builder{Lags: lags, Freq: freq}
}

// EntityFeatures is one entity's supervised view: row i pairs the lag
// vector [y(t-1) ... y(t-L)] (most recent first) with label y(t) at
// Times[i]. Tail is the last L observed targets, most recent first,
// seeding recursive prediction from TailTime.
type EntityFeatures struct {
	Entity   panel.EntityID
	Times    []int64
	X        [][]float64
	Y        []float64
	Tail     []float64
	TailTime int64
}

// Rows returns the number of feature vectors
func (e *EntityFeatures) Rows() int {
	return len(e.Y)
}

// Result holds per-entity features plus warnings for entities dropped for
// lacking the L+1 observations a single training row requires. The warm-up
// window is dropped, never imputed.
type Result struct {
	Entities []EntityFeatures
	Skipped  []forecast.Warning
}

// Build constructs features for every entity in the panel. Entities with
// fewer than Lags+1 observations are excluded and reported in Skipped.
func (b *Builder) Build(p *panel.Panel) (*Result, error) {
	if p == nil || p.NumObservations() == 0 {
		return nil, core.ErrEmptyPanel
	}

	res := &Result{}
	for _, s := range p.GroupByEntity() {
		ef, err := b.buildEntity(s)
		if err != nil {
			res.Skipped = append(res.Skipped, forecast.Warning{Entity: s.Entity, Err: err})
			continue
		}
		res.Entities = append(res.Entities, *ef)
	}
	return res, nil
}

func (b *Builder) buildEntity(s *panel.Series) (*EntityFeatures, error) {
	n := s.Len()
	if n < b.Lags+1 {
		return nil, core.NewInsufficientHistoryError(s.Entity.String(), n, b.Lags+1)
	}

	rows := n - b.Lags
	ef := &EntityFeatures{
		Entity: s.Entity,
		Times:  make([]int64, rows),
		X:      make([][]float64, rows),
		Y:      make([]float64, rows),
	}
	for i := 0; i < rows; i++ {
		t := i + b.Lags
		row := make([]float64, b.Lags)
		for k := 0; k < b.Lags; k++ {
			row[k] = s.Targets[t-1-k]
		}
		ef.Times[i] = s.Times[t]
		ef.X[i] = row
		ef.Y[i] = s.Targets[t]
	}

	tail := make([]float64, b.Lags)
	for k := 0; k < b.Lags; k++ {
		tail[k] = s.Targets[n-1-k]
	}
	ef.Tail = tail
	ef.TailTime = s.LastTime()
	return ef, nil
}
