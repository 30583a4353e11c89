package drawing

// Model is the mutable Stroke Model behind one surface. Its series set is
// fixed by NewModel; only the point sequences grow or are cleared.
type Model struct {
	order  []SeriesID
	points map[SeriesID][]Point
}

// NewModel creates a model with one empty series per id. Duplicate ids are
// collapsed.
func NewModel(ids ...SeriesID) *Model {
	m := &Model{points: make(map[SeriesID][]Point, len(ids))}
	for _, id := range ids {
		if _, ok := m.points[id]; ok {
			continue
		}
		m.order = append(m.order, id)
		m.points[id] = []Point{}
	}
	return m
}

// IDs returns the fixed series identifiers in key order.
func (m *Model) IDs() []SeriesID {
	return append([]SeriesID{}, m.order...)
}

// Has reports whether id is one of the model's series.
func (m *Model) Has(id SeriesID) bool {
	_, ok := m.points[id]
	return ok
}

// Points returns a copy of one series' points.
func (m *Model) Points(id SeriesID) []Point {
	return append([]Point{}, m.points[id]...)
}

// Len returns the number of points in one series.
func (m *Model) Len(id SeriesID) int {
	return len(m.points[id])
}

// Empty reports whether every series has zero points.
func (m *Model) Empty() bool {
	for _, pts := range m.points {
		if len(pts) > 0 {
			return false
		}
	}
	return true
}

// AppendPoint appends p to the named series.
func (m *Model) AppendPoint(id SeriesID, p Point) error {
	pts, ok := m.points[id]
	if !ok {
		return &UnknownSeriesError{Series: id}
	}
	m.points[id] = append(pts, p)
	return nil
}

// ClearSeries truncates one series to empty, keeping its key.
func (m *Model) ClearSeries(id SeriesID) error {
	if _, ok := m.points[id]; !ok {
		return &UnknownSeriesError{Series: id}
	}
	m.points[id] = []Point{}
	return nil
}

// ClearAll truncates every series to empty.
func (m *Model) ClearAll() {
	for _, id := range m.order {
		m.points[id] = []Point{}
	}
}

// Snapshot returns an immutable copy of the full drawing.
func (m *Model) Snapshot() Drawing {
	series := make([]Series, len(m.order))
	for i, id := range m.order {
		series[i] = Series{ID: id, Points: m.points[id]}
	}
	return DrawingOf(series...)
}

// Restore replaces the drawing wholesale. The drawing's keys must match the
// model's series exactly (order may differ); otherwise a
// *SchemaMismatchError is returned and nothing is applied.
func (m *Model) Restore(d Drawing) error {
	var mismatch SchemaMismatchError
	for _, id := range m.order {
		if !d.Has(id) {
			mismatch.Missing = append(mismatch.Missing, id)
		}
	}
	for _, id := range d.IDs() {
		if !m.Has(id) {
			mismatch.Unexpected = append(mismatch.Unexpected, id)
		}
	}
	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 {
		return &mismatch
	}

	for _, id := range m.order {
		m.points[id] = d.Points(id)
	}
	return nil
}
