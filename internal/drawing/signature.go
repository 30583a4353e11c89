package drawing

import "io"

// SignatureStyle is the pen of the signature pad.
var SignatureStyle = Style{Color: "#111827", Width: 3}

// Signature is the single-series signature pad. It strokes incrementally:
// each new point only adds its segment to the existing raster. Full
// redraws replay the same segments stroke by stroke, so strokes are never
// joined to one another.
type Signature struct {
	model    *Model
	engine   *Engine
	raster   *Rasterizer
	onChange func(image string)

	// starts holds the index of the first point of every stroke.
	starts []int
}

// NewSignature creates a signature pad of the given logical size. When the
// pixel buffer cannot be configured the pad still records points and
// reports an empty image.
func NewSignature(width, height, dpr float64) *Signature {
	s := &Signature{
		model:  NewModel(SeriesSignature),
		raster: NewRasterizer(),
	}
	s.engine = NewEngine(s.model, func() SeriesID { return SeriesSignature })
	s.engine.OnPoint(s.appended)
	_ = s.raster.Configure(width, height, dpr)
	return s
}

// OnChange registers the host callback fired after every appended point
// and after Clear. It receives the PNG data URI, or "" when the pad is
// empty.
func (s *Signature) OnChange(fn func(image string)) {
	s.onChange = fn
}

// Attach subscribes the pad to a host element's events.
func (s *Signature) Attach(t Target) { s.engine.Attach(t) }

// Detach unsubscribes from the host element.
func (s *Signature) Detach() { s.engine.Detach() }

// Handle applies one event with the element's current bounding rectangle.
func (s *Signature) Handle(ev Event, rect Rect) (Outcome, error) {
	return s.engine.Handle(ev, rect)
}

// State returns the stroke state of the capture engine.
func (s *Signature) State() State { return s.engine.State() }

func (s *Signature) appended(seg Segment) {
	if seg.Continues {
		s.raster.StrokeSegment(SignatureStyle, seg.From, seg.To)
	} else {
		s.starts = append(s.starts, s.model.Len(SeriesSignature)-1)
	}
	s.notify()
}

// Strokes returns the recorded points split into strokes.
func (s *Signature) Strokes() [][]Point {
	pts := s.model.Points(SeriesSignature)
	strokes := make([][]Point, 0, len(s.starts))
	for i, start := range s.starts {
		end := len(pts)
		if i+1 < len(s.starts) {
			end = s.starts[i+1]
		}
		strokes = append(strokes, pts[start:end])
	}
	return strokes
}

func (s *Signature) redraw() {
	s.raster.Clear()
	for _, stroke := range s.Strokes() {
		for i := 1; i < len(stroke); i++ {
			s.raster.StrokeSegment(SignatureStyle, stroke[i-1], stroke[i])
		}
	}
}

func (s *Signature) notify() {
	if s.onChange != nil {
		s.onChange(s.Image())
	}
}

// Clear ends any stroke, empties the series, repaints the background and
// notifies the host with the empty sentinel.
func (s *Signature) Clear() {
	s.engine.Abort()
	s.model.ClearAll()
	s.starts = nil
	s.raster.Clear()
	s.notify()
}

// IsEmpty reports whether the pad has no points.
func (s *Signature) IsEmpty() bool {
	return s.model.Len(SeriesSignature) == 0
}

// PlaceholderVisible reports whether the host should show its placeholder
// over the canvas.
func (s *Signature) PlaceholderVisible() bool {
	return s.IsEmpty()
}

// Image returns the current pad as a PNG data URI, "" when empty.
func (s *Signature) Image() string {
	if s.IsEmpty() {
		return ""
	}
	return s.raster.DataURI()
}

// EncodePNG writes the current raster.
func (s *Signature) EncodePNG(w io.Writer) error {
	return s.raster.EncodePNG(w)
}

// Points returns a snapshot of the recorded strokes.
func (s *Signature) Points() Drawing {
	return s.model.Snapshot()
}

// Geometry returns the current surface geometry.
func (s *Signature) Geometry() Geometry {
	return s.raster.Geometry()
}

// Resize reallocates the pixel buffer and re-renders existing strokes at
// their unchanged logical coordinates.
func (s *Signature) Resize(width, height, dpr float64) error {
	if err := s.raster.Configure(width, height, dpr); err != nil {
		return err
	}
	s.redraw()
	return nil
}

// Close releases the pixel buffer and detaches from any host element.
func (s *Signature) Close() error {
	s.engine.Detach()
	return s.raster.Close()
}
