// Package capture runs drawing surfaces behind WebSocket sessions. A
// browser streams raw pointer and touch events; the session feeds them to a
// drawing.Signature or drawing.Chart and answers with the rendered image or
// the updated points. Viewers subscribed to the same patient receive every
// update through the Hub.
package capture

import (
	"fmt"

	"github.com/ehr/anesthesia/internal/drawing"
)

// Client frame types.
const (
	FramePointer      = "pointer"
	FrameTool         = "tool"
	FrameClear        = "clear"
	FrameClearCurrent = "clear_current"
	FrameResize       = "resize"
	FrameRestore      = "restore"
)

// Server frame types.
const (
	FrameSignature = "signature"
	FrameChart     = "chart"
	FrameAck       = "ack"
	FrameError     = "error"
)

// ClientFrame is one message from the capturing browser.
type ClientFrame struct {
	Type string `json:"type"`

	// pointer
	Kind    string        `json:"kind,omitempty"`
	Source  string        `json:"source,omitempty"`
	X       float64       `json:"x,omitempty"`
	Y       float64       `json:"y,omitempty"`
	Touches []TouchPoint  `json:"touches,omitempty"`
	Rect    *drawing.Rect `json:"rect,omitempty"`

	// tool
	Series drawing.SeriesID `json:"series,omitempty"`

	// resize
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	DPR    float64 `json:"dpr,omitempty"`

	// restore
	Drawing *drawing.Drawing `json:"drawing,omitempty"`
}

// TouchPoint is one touch contact in client coordinates.
type TouchPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ServerFrame is one message to the capturing browser and its viewers.
type ServerFrame struct {
	Type           string           `json:"type"`
	Patient        string           `json:"patient,omitempty"`
	Image          *string          `json:"image,omitempty"`
	Points         *drawing.Drawing `json:"points,omitempty"`
	Tool           drawing.SeriesID `json:"tool,omitempty"`
	Message        string           `json:"message,omitempty"`
	PreventDefault bool             `json:"prevent_default,omitempty"`
}

func signatureFrame(image string) ServerFrame {
	return ServerFrame{Type: FrameSignature, Image: &image}
}

func chartFrame(d drawing.Drawing, tool drawing.SeriesID) ServerFrame {
	return ServerFrame{Type: FrameChart, Points: &d, Tool: tool}
}

func errorFrame(err error) ServerFrame {
	return ServerFrame{Type: FrameError, Message: err.Error()}
}

// broadcastable reports whether viewers care about f.
func (f ServerFrame) broadcastable() bool {
	return f.Type == FrameSignature || f.Type == FrameChart
}

var sources = map[string]drawing.InputSource{
	"":      drawing.SourceMouse,
	"mouse": drawing.SourceMouse,
	"touch": drawing.SourceTouch,
	"pen":   drawing.SourcePen,
}

// event converts a pointer frame into a drawing event and the bounding
// rectangle observed by the browser when it fired.
func (f ClientFrame) event() (drawing.Event, drawing.Rect, error) {
	kind, ok := drawing.ParseEventKind(f.Kind)
	if !ok {
		return drawing.Event{}, drawing.Rect{}, fmt.Errorf("unknown pointer kind %q", f.Kind)
	}
	src, ok := sources[f.Source]
	if !ok {
		return drawing.Event{}, drawing.Rect{}, fmt.Errorf("unknown pointer source %q", f.Source)
	}
	if f.Rect == nil {
		return drawing.Event{}, drawing.Rect{}, fmt.Errorf("pointer frame without rect")
	}

	ev := drawing.Event{Kind: kind, Source: src, ClientX: f.X, ClientY: f.Y}
	for _, t := range f.Touches {
		ev.Touches = append(ev.Touches, drawing.Touch{ClientX: t.X, ClientY: t.Y})
	}
	return ev, *f.Rect, nil
}
