package drawing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Point is a position in logical pixels relative to the surface's top-left
// corner. Device pixel ratio never applies to stored points.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SeriesID identifies one series of a surface. The set of identifiers is
// closed: surfaces are built from the constants below only.
type SeriesID string

const (
	SeriesSignature SeriesID = "signature"

	SeriesTension     SeriesID = "tension"
	SeriesFrequence   SeriesID = "frequence"
	SeriesSaturation  SeriesID = "saturation"
	SeriesTemperature SeriesID = "temperature"
)

// ChartSeries returns the chart series in draw order.
func ChartSeries() []SeriesID {
	return []SeriesID{SeriesTension, SeriesFrequence, SeriesSaturation, SeriesTemperature}
}

// Valid reports whether id is one of the known series identifiers.
func (id SeriesID) Valid() bool {
	switch id {
	case SeriesSignature, SeriesTension, SeriesFrequence, SeriesSaturation, SeriesTemperature:
		return true
	}
	return false
}

// Series is one named, ordered sequence of points. Insertion order is the
// drawing and rendering order.
type Series struct {
	ID     SeriesID
	Points []Point
}

// Drawing is an immutable collection of series. Its key order is fixed at
// construction and is used for iteration, rendering and JSON encoding.
type Drawing struct {
	series []Series
}

// NewDrawing returns a Drawing with one empty series per id.
func NewDrawing(ids ...SeriesID) Drawing {
	series := make([]Series, 0, len(ids))
	for _, id := range ids {
		series = append(series, Series{ID: id, Points: []Point{}})
	}
	return Drawing{series: series}
}

// DrawingOf builds a Drawing from the given series, copying their points.
// A repeated id keeps its first position and its last points.
func DrawingOf(series ...Series) Drawing {
	var d Drawing
	for _, s := range series {
		pts := append([]Point{}, s.Points...)
		if i := d.index(s.ID); i >= 0 {
			d.series[i].Points = pts
			continue
		}
		d.series = append(d.series, Series{ID: s.ID, Points: pts})
	}
	return d
}

func (d Drawing) index(id SeriesID) int {
	for i, s := range d.series {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// IDs returns the series identifiers in key order.
func (d Drawing) IDs() []SeriesID {
	ids := make([]SeriesID, len(d.series))
	for i, s := range d.series {
		ids[i] = s.ID
	}
	return ids
}

// Has reports whether the drawing carries a series with the given id.
func (d Drawing) Has(id SeriesID) bool {
	return d.index(id) >= 0
}

// Points returns a copy of the points of one series, nil if absent.
func (d Drawing) Points(id SeriesID) []Point {
	i := d.index(id)
	if i < 0 {
		return nil
	}
	return append([]Point{}, d.series[i].Points...)
}

// Len returns the number of points in one series.
func (d Drawing) Len(id SeriesID) int {
	i := d.index(id)
	if i < 0 {
		return 0
	}
	return len(d.series[i].Points)
}

// Empty reports whether every series has zero points.
func (d Drawing) Empty() bool {
	for _, s := range d.series {
		if len(s.Points) > 0 {
			return false
		}
	}
	return true
}

// Equal reports deep equality: same keys in the same order and identical
// point sequences.
func (d Drawing) Equal(o Drawing) bool {
	if len(d.series) != len(o.series) {
		return false
	}
	for i, s := range d.series {
		t := o.series[i]
		if s.ID != t.ID || len(s.Points) != len(t.Points) {
			return false
		}
		for j := range s.Points {
			if s.Points[j] != t.Points[j] {
				return false
			}
		}
	}
	return true
}

// Normalize returns a Drawing with exactly the given ids, in that order:
// unknown keys are dropped and missing keys become empty series. Hosts use
// it to load payloads written before the series set was fixed; Restore
// itself stays strict.
func (d Drawing) Normalize(ids ...SeriesID) Drawing {
	out := NewDrawing(ids...)
	for i, id := range ids {
		if j := d.index(id); j >= 0 {
			out.series[i].Points = append([]Point{}, d.series[j].Points...)
		}
	}
	return out
}

// MarshalJSON encodes the drawing as an object of point arrays in key
// order. Empty series encode as [] rather than null.
func (d Drawing) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range d.series {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(s.ID))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		pts := s.Points
		if pts == nil {
			pts = []Point{}
		}
		val, err := json.Marshal(pts)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of point arrays, keeping the key order of
// the document. Keys are not checked against any surface here.
func (d *Drawing) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = Drawing{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("drawing: expected object, got %v", tok)
	}

	var series []Series
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("drawing: expected series key, got %v", tok)
		}
		var pts []Point
		if err := dec.Decode(&pts); err != nil {
			return fmt.Errorf("drawing: series %q: %w", key, err)
		}
		if pts == nil {
			pts = []Point{}
		}
		series = append(series, Series{ID: SeriesID(key), Points: pts})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = DrawingOf(series...)
	return nil
}
