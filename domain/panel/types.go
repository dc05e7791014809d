package panel

import (
	"fmt"
	"sort"

	"gocast/domain/core"
)

// EntityID identifies one member series of a panel
type EntityID string

// String returns the string representation
func (e EntityID) String() string {
	return string(e)
}

// Observation is a single (entity, time, target) tuple. Time is either a
// Unix timestamp in seconds or a plain integer index, depending on the
// panel's frequency.
type Observation struct {
	Entity EntityID
	Time   int64
	Target float64
}

// Series holds one entity's observations in strictly increasing time order
type Series struct {
	Entity  EntityID
	Times   []int64
	Targets []float64
}

// Len returns the number of observations in the series
func (s *Series) Len() int {
	return len(s.Times)
}

// LastTime returns the most recent timestamp in the series
func (s *Series) LastTime() int64 {
	return s.Times[len(s.Times)-1]
}

// Slice returns a view of the series restricted to position range
// [start, end). The backing arrays are shared; callers must not mutate.
func (s *Series) Slice(start, end int) *Series {
	return &Series{
		Entity:  s.Entity,
		Times:   s.Times[start:end],
		Targets: s.Targets[start:end],
	}
}

// Panel is a collection of entity series analyzed jointly. Entity order is
// the order of first insertion, kept stable so grouped iteration is
// deterministic.
type Panel struct {
	order  []EntityID
	series map[EntityID]*Series
}

// New creates an empty panel
func New() *Panel {
	return &Panel{series: make(map[EntityID]*Series)}
}

// FromObservations builds a panel from unordered observations, sorting each
// entity by time. Duplicate timestamps within one entity are rejected.
func FromObservations(obs []Observation) (*Panel, error) {
	if len(obs) == 0 {
		return nil, core.ErrEmptyPanel
	}
	p := New()
	for _, o := range obs {
		p.append(o)
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Panel) append(o Observation) {
	s, ok := p.series[o.Entity]
	if !ok {
		s = &Series{Entity: o.Entity}
		p.series[o.Entity] = s
		p.order = append(p.order, o.Entity)
	}
	s.Times = append(s.Times, o.Time)
	s.Targets = append(s.Targets, o.Target)
}

// normalize sorts every series by time and checks per-entity invariants
func (p *Panel) normalize() error {
	for _, id := range p.order {
		s := p.series[id]
		idx := make([]int, len(s.Times))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return s.Times[idx[a]] < s.Times[idx[b]] })

		times := make([]int64, len(idx))
		targets := make([]float64, len(idx))
		for i, j := range idx {
			times[i] = s.Times[j]
			targets[i] = s.Targets[j]
		}
		for i := 1; i < len(times); i++ {
			if times[i] == times[i-1] {
				return fmt.Errorf("%w: entity %s at time %d", core.ErrDuplicateTimestamp, id, times[i])
			}
		}
		s.Times = times
		s.Targets = targets
	}
	return nil
}

// Entities returns entity IDs in stable insertion order
func (p *Panel) Entities() []EntityID {
	out := make([]EntityID, len(p.order))
	copy(out, p.order)
	return out
}

// Series returns one entity's series, or nil when absent
func (p *Panel) Series(id EntityID) *Series {
	return p.series[id]
}

// GroupByEntity returns every series in stable entity order. This is the
// grouped, time-ordered iteration the feature builder and strategies
// consume; series are views, not copies.
func (p *Panel) GroupByEntity() []*Series {
	out := make([]*Series, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.series[id])
	}
	return out
}

// NumEntities returns the number of entities in the panel
func (p *Panel) NumEntities() int {
	return len(p.order)
}

// NumObservations returns the total observation count over all entities
func (p *Panel) NumObservations() int {
	n := 0
	for _, s := range p.series {
		n += s.Len()
	}
	return n
}

// Observations flattens the panel back into observation tuples, grouped by
// entity in stable order.
func (p *Panel) Observations() []Observation {
	out := make([]Observation, 0, p.NumObservations())
	for _, s := range p.GroupByEntity() {
		for i := range s.Times {
			out = append(out, Observation{Entity: s.Entity, Time: s.Times[i], Target: s.Targets[i]})
		}
	}
	return out
}
