package capture

import (
	"fmt"

	"github.com/ehr/anesthesia/internal/drawing"
)

// SurfaceKind names the surface a session drives.
type SurfaceKind string

const (
	SurfaceSignature SurfaceKind = "signature"
	SurfaceChart     SurfaceKind = "chart"
)

// ParseSurfaceKind validates a route parameter.
func ParseSurfaceKind(s string) (SurfaceKind, error) {
	switch SurfaceKind(s) {
	case SurfaceSignature, SurfaceChart:
		return SurfaceKind(s), nil
	}
	return "", fmt.Errorf("unknown surface %q", s)
}

// Session owns one drawing surface for the lifetime of a capture
// connection. It is not safe for concurrent use: frames must be processed
// one at a time, in arrival order.
type Session struct {
	ID      string
	Kind    SurfaceKind
	Patient string

	signature *drawing.Signature
	chart     *drawing.Chart

	pending []ServerFrame
	events  int
}

// NewSession creates a session with a fresh surface of the given logical
// size.
func NewSession(id string, kind SurfaceKind, patient string, width, height, dpr float64) *Session {
	s := &Session{ID: id, Kind: kind, Patient: patient}
	switch kind {
	case SurfaceSignature:
		s.signature = drawing.NewSignature(width, height, dpr)
		s.signature.OnChange(func(image string) {
			s.pending = append(s.pending, signatureFrame(image))
		})
	case SurfaceChart:
		s.chart = drawing.NewChart(width, height, dpr)
		s.chart.OnPointsChange(func(d drawing.Drawing) {
			s.pending = append(s.pending, chartFrame(d, s.chart.Tool()))
		})
	}
	return s
}

func (s *Session) surface() drawing.Surface {
	if s.chart != nil {
		return s.chart
	}
	return s.signature
}

// Events returns how many pointer frames the session has processed.
func (s *Session) Events() int {
	return s.events
}

// Snapshot returns the frame describing the surface's current state.
func (s *Session) Snapshot() ServerFrame {
	var f ServerFrame
	if s.chart != nil {
		f = chartFrame(s.chart.Points(), s.chart.Tool())
	} else {
		f = signatureFrame(s.signature.Image())
	}
	f.Patient = s.Patient
	return f
}

// Restore loads saved chart points without notifying the browser. Only
// chart sessions accept it.
func (s *Session) Restore(d drawing.Drawing) error {
	if s.chart == nil {
		return fmt.Errorf("restore is only supported on chart surfaces")
	}
	return s.chart.Restore(d)
}

// Process applies one client frame and returns the frames to send back.
func (s *Session) Process(f ClientFrame) []ServerFrame {
	s.pending = s.pending[:0]

	var err error
	var prevent bool
	switch f.Type {
	case FramePointer:
		prevent, err = s.pointer(f)
	case FrameTool:
		err = s.selectTool(f.Series)
	case FrameClear:
		if s.chart != nil {
			s.chart.ClearAll()
		} else {
			s.signature.Clear()
		}
	case FrameClearCurrent:
		if s.chart == nil {
			err = fmt.Errorf("clear_current is only supported on chart surfaces")
			break
		}
		s.chart.ClearCurrent()
	case FrameResize:
		err = s.resize(f.Width, f.Height, f.DPR)
	case FrameRestore:
		err = s.restore(f.Drawing)
	default:
		err = fmt.Errorf("unknown frame type %q", f.Type)
	}

	if err != nil {
		return []ServerFrame{errorFrame(err)}
	}

	out := make([]ServerFrame, 0, len(s.pending)+1)
	for _, p := range s.pending {
		p.Patient = s.Patient
		p.PreventDefault = prevent
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, ServerFrame{Type: FrameAck, Patient: s.Patient, PreventDefault: prevent})
	}
	return out
}

func (s *Session) pointer(f ClientFrame) (bool, error) {
	ev, rect, err := f.event()
	if err != nil {
		return false, err
	}
	s.events++
	out, err := s.surface().Handle(ev, rect)
	if err != nil {
		return false, err
	}
	return out.PreventDefault, nil
}

func (s *Session) selectTool(id drawing.SeriesID) error {
	if s.chart == nil {
		return fmt.Errorf("tool selection is only supported on chart surfaces")
	}
	if err := s.chart.SelectTool(id); err != nil {
		return err
	}
	s.pending = append(s.pending, chartFrame(s.chart.Points(), s.chart.Tool()))
	return nil
}

// resize leaves the current surface untouched when the new geometry is
// rejected.
func (s *Session) resize(width, height, dpr float64) error {
	if err := drawing.ValidateGeometry(width, height, dpr); err != nil {
		return err
	}
	var err error
	if s.chart != nil {
		err = s.chart.Resize(width, height, dpr)
	} else {
		err = s.signature.Resize(width, height, dpr)
	}
	if err != nil {
		return err
	}
	s.pending = append(s.pending, s.Snapshot())
	return nil
}

func (s *Session) restore(d *drawing.Drawing) error {
	if d == nil {
		return fmt.Errorf("restore frame without drawing")
	}
	if err := s.Restore(*d); err != nil {
		return err
	}
	s.pending = append(s.pending, s.Snapshot())
	return nil
}

// Close releases the surface's pixel buffer.
func (s *Session) Close() error {
	if s.chart != nil {
		return s.chart.Close()
	}
	return s.signature.Close()
}
