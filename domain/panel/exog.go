package panel

// Exog holds exogenous feature rows aligned by (entity, time). Column order
// is fixed at construction and shared by all rows.
type Exog struct {
	Columns []string
	rows    map[EntityID]map[int64][]float64
}

// NewExog creates an empty exogenous feature set with the given columns
func NewExog(columns []string) *Exog {
	return &Exog{
		Columns: columns,
		rows:    make(map[EntityID]map[int64][]float64),
	}
}

// Set stores the feature row for (entity, time). The row length must match
// the column count.
func (x *Exog) Set(entity EntityID, time int64, values []float64) {
	if len(values) != len(x.Columns) {
		panic("exog: row width does not match column count")
	}
	byTime, ok := x.rows[entity]
	if !ok {
		byTime = make(map[int64][]float64)
		x.rows[entity] = byTime
	}
	byTime[time] = values
}

// At returns the feature row for (entity, time), if present
func (x *Exog) At(entity EntityID, time int64) ([]float64, bool) {
	if x == nil {
		return nil, false
	}
	byTime, ok := x.rows[entity]
	if !ok {
		return nil, false
	}
	row, ok := byTime[time]
	return row, ok
}

// Width returns the number of exogenous columns
func (x *Exog) Width() int {
	if x == nil {
		return 0
	}
	return len(x.Columns)
}
