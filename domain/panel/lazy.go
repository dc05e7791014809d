package panel

import "gocast/domain/core"

// Query is a deferred transform over a panel. Operations compose without
// touching the data; nothing executes until Collect is called.
type Query struct {
	src *Panel
	ops []op
}

type op func(*Panel) (*Panel, error)

// Lazy starts a deferred query over the panel
func (p *Panel) Lazy() *Query {
	return &Query{src: p}
}

func (q *Query) with(f op) *Query {
	ops := make([]op, len(q.ops), len(q.ops)+1)
	copy(ops, q.ops)
	return &Query{src: q.src, ops: append(ops, f)}
}

// FilterTimeRange keeps observations with from <= time < to
func (q *Query) FilterTimeRange(from, to int64) *Query {
	return q.with(func(p *Panel) (*Panel, error) {
		out := New()
		for _, s := range p.GroupByEntity() {
			for i := range s.Times {
				if s.Times[i] >= from && s.Times[i] < to {
					out.append(Observation{Entity: s.Entity, Time: s.Times[i], Target: s.Targets[i]})
				}
			}
		}
		if out.NumObservations() == 0 {
			return nil, core.ErrEmptyPanel
		}
		return out, nil
	})
}

// SelectEntities keeps only the named entities
func (q *Query) SelectEntities(ids ...EntityID) *Query {
	keep := make(map[EntityID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	return q.with(func(p *Panel) (*Panel, error) {
		out := New()
		for _, s := range p.GroupByEntity() {
			if !keep[s.Entity] {
				continue
			}
			for i := range s.Times {
				out.append(Observation{Entity: s.Entity, Time: s.Times[i], Target: s.Targets[i]})
			}
		}
		if out.NumObservations() == 0 {
			return nil, core.ErrEmptyPanel
		}
		return out, nil
	})
}

// FilterTargets keeps observations whose target satisfies the predicate.
// Series stay contiguous after filtering; gaps are not reindexed.
func (q *Query) FilterTargets(pred func(float64) bool) *Query {
	return q.with(func(p *Panel) (*Panel, error) {
		out := New()
		for _, s := range p.GroupByEntity() {
			for i := range s.Times {
				if pred(s.Targets[i]) {
					out.append(Observation{Entity: s.Entity, Time: s.Times[i], Target: s.Targets[i]})
				}
			}
		}
		return out, nil
	})
}

// Collect executes the composed operations and materializes the result.
// Each Collect call re-runs the pipeline from the source panel.
func (q *Query) Collect() (*Panel, error) {
	cur := q.src
	for _, f := range q.ops {
		next, err := f(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
