package drawing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"
)

// Geometry is the surface's logical size and device pixel ratio. It is
// derived from the host element and never persisted.
type Geometry struct {
	Width  float64
	Height float64
	DPR    float64
}

// Surface limits. Larger requests are rejected before any pixel buffer is
// allocated.
const (
	MaxSurfaceSize = 4096
	MaxDPR         = 4
)

// ValidateGeometry checks a requested logical size and ratio against the
// surface limits. A ratio <= 0 stands for 1.
func ValidateGeometry(width, height, dpr float64) error {
	if !(width > 0 && height > 0) {
		return fmt.Errorf("%w: size %gx%g must be positive", ErrInvalidGeometry, width, height)
	}
	if width > MaxSurfaceSize || height > MaxSurfaceSize {
		return fmt.Errorf("%w: size %gx%g exceeds %d", ErrInvalidGeometry, width, height, MaxSurfaceSize)
	}
	if math.IsNaN(dpr) || dpr > MaxDPR {
		return fmt.Errorf("%w: ratio %g must be at most %d", ErrInvalidGeometry, dpr, MaxDPR)
	}
	return nil
}

// PixelSize returns the pixel buffer dimensions for g.
func (g Geometry) PixelSize() (int, int) {
	return int(math.Round(g.Width * g.DPR)), int(math.Round(g.Height * g.DPR))
}

// Style is the pen used for one series.
type Style struct {
	Color string // hex, e.g. "#1f2937"
	Width float64
}

// StyleFunc returns the pen for a series.
type StyleFunc func(SeriesID) Style

// Source is what RedrawAll reads; both Drawing and *Model satisfy it.
type Source interface {
	IDs() []SeriesID
	Points(id SeriesID) []Point
}

// PNGDataURIPrefix prefixes every image returned by DataURI.
const PNGDataURIPrefix = "data:image/png;base64,"

var background = gg.White

// Rasterizer renders a drawing into a device-resolution pixel buffer. All
// drawing calls take logical coordinates. Without a configured pixel
// context every drawing call is a no-op.
type Rasterizer struct {
	dc   *gg.Context
	geom Geometry
}

// NewRasterizer returns an unconfigured rasterizer.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{}
}

// Configure (re)allocates the pixel buffer for the given logical size and
// device pixel ratio, applies the ratio as a uniform scale and paints the
// background. A ratio <= 0 is treated as 1. Sizes outside the surface
// limits leave the rasterizer unavailable and return ErrInvalidGeometry.
func (r *Rasterizer) Configure(width, height, dpr float64) error {
	if err := ValidateGeometry(width, height, dpr); err != nil {
		r.release()
		r.geom = Geometry{}
		return err
	}
	if dpr <= 0 {
		dpr = 1
	}
	g := Geometry{Width: width, Height: height, DPR: dpr}
	pw, ph := g.PixelSize()
	if pw <= 0 || ph <= 0 {
		r.release()
		r.geom = g
		return fmt.Errorf("%w: size %gx%g rounds to no pixels at ratio %g", ErrInvalidGeometry, width, height, dpr)
	}

	if r.dc == nil {
		r.dc = gg.NewContext(pw, ph)
	} else if err := r.dc.Resize(pw, ph); err != nil {
		r.release()
		return fmt.Errorf("drawing: resize pixel buffer: %w", err)
	}
	r.geom = g
	r.dc.Identity()
	r.dc.Scale(dpr, dpr)
	r.dc.ClearWithColor(background)
	return nil
}

func (r *Rasterizer) release() {
	if r.dc != nil {
		_ = r.dc.Close()
		r.dc = nil
	}
}

// Close releases the pixel context.
func (r *Rasterizer) Close() error {
	r.release()
	return nil
}

// Available reports whether a pixel context is configured.
func (r *Rasterizer) Available() bool {
	return r.dc != nil
}

// Geometry returns the last configured geometry.
func (r *Rasterizer) Geometry() Geometry {
	return r.geom
}

// Clear repaints the whole buffer with the background.
func (r *Rasterizer) Clear() {
	if r.dc == nil {
		return
	}
	r.dc.ClearWithColor(background)
}

// RedrawAll clears the buffer, paints the background and strokes every
// series with two or more points, in src's key order.
func (r *Rasterizer) RedrawAll(src Source, style StyleFunc) {
	if r.dc == nil {
		return
	}
	r.dc.ClearWithColor(background)
	for _, id := range src.IDs() {
		r.polyline(style(id), src.Points(id))
	}
}

// StrokeSegment draws a single segment on top of the current buffer.
func (r *Rasterizer) StrokeSegment(st Style, from, to Point) {
	r.polyline(st, []Point{from, to})
}

func (r *Rasterizer) polyline(st Style, pts []Point) {
	if r.dc == nil || len(pts) < 2 {
		return
	}
	r.dc.SetHexColor(st.Color)
	r.dc.SetLineWidth(st.Width)
	r.dc.SetLineCap(gg.LineCapRound)
	r.dc.SetLineJoin(gg.LineJoinRound)
	r.dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		r.dc.LineTo(p.X, p.Y)
	}
	// A failed stroke only degrades the picture; the points are kept.
	_ = r.dc.Stroke()
}

// Image returns a copy of the pixel buffer, or nil when unavailable.
func (r *Rasterizer) Image() *image.RGBA {
	if r.dc == nil {
		return nil
	}
	img, _ := r.dc.Image().(*image.RGBA)
	return img
}

// EncodePNG writes the pixel buffer as PNG.
func (r *Rasterizer) EncodePNG(w io.Writer) error {
	if r.dc == nil {
		return ErrSurfaceUnavailable
	}
	return r.dc.EncodePNG(w)
}

// DataURI returns the pixel buffer as a PNG data URI, or "" when
// unavailable.
func (r *Rasterizer) DataURI() string {
	var buf bytes.Buffer
	if err := r.EncodePNG(&buf); err != nil {
		return ""
	}
	return PNGDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
}
