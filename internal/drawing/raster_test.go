package drawing

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"strings"
	"testing"
)

func sampleDrawing() Drawing {
	return DrawingOf(
		Series{ID: SeriesTension, Points: []Point{{X: 10, Y: 10}, {X: 60, Y: 40}, {X: 120, Y: 20}}},
		Series{ID: SeriesFrequence, Points: []Point{{X: 10, Y: 80}, {X: 150, Y: 80}}},
		Series{ID: SeriesSaturation, Points: []Point{{X: 30, Y: 30}}},
		Series{ID: SeriesTemperature},
	)
}

func TestRasterizer_RedrawIsDeterministic(t *testing.T) {
	a := NewRasterizer()
	b := NewRasterizer()
	defer a.Close()
	defer b.Close()
	for _, r := range []*Rasterizer{a, b} {
		if err := r.Configure(200, 100, 2); err != nil {
			t.Fatalf("configure: %v", err)
		}
	}

	// b starts from a dirty buffer; RedrawAll must fully repaint it.
	b.StrokeSegment(Style{Color: "#000000", Width: 10}, Point{X: 0, Y: 0}, Point{X: 200, Y: 100})

	a.RedrawAll(sampleDrawing(), ChartStyle)
	b.RedrawAll(sampleDrawing(), ChartStyle)

	if !bytes.Equal(a.Image().Pix, b.Image().Pix) {
		t.Error("expected identical pixels for identical drawings")
	}
}

func TestRasterizer_PixelSizeFollowsRatio(t *testing.T) {
	r := NewRasterizer()
	defer r.Close()
	if err := r.Configure(150, 60, 2); err != nil {
		t.Fatalf("configure: %v", err)
	}
	b := r.Image().Bounds()
	if b.Dx() != 300 || b.Dy() != 120 {
		t.Errorf("expected 300x120 buffer, got %dx%d", b.Dx(), b.Dy())
	}

	if err := r.Configure(100, 50, 0); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if r.Geometry().DPR != 1 {
		t.Errorf("expected ratio 1 for non-positive input, got %g", r.Geometry().DPR)
	}
	b = r.Image().Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("expected 100x50 buffer, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRasterizer_StrokeUsesLogicalCoordinates(t *testing.T) {
	r := NewRasterizer()
	defer r.Close()
	if err := r.Configure(200, 100, 2); err != nil {
		t.Fatalf("configure: %v", err)
	}
	r.StrokeSegment(Style{Color: "#000000", Width: 4}, Point{X: 10, Y: 50}, Point{X: 190, Y: 50})

	img := r.Image()
	// Logical (100,50) is device (200,100).
	if c := img.RGBAAt(200, 100); c.R > 64 || c.G > 64 || c.B > 64 {
		t.Errorf("expected dark pixel on the line, got %+v", c)
	}
	if c := img.RGBAAt(200, 20); c.R != 255 || c.G != 255 || c.B != 255 {
		t.Errorf("expected background away from the line, got %+v", c)
	}
}

func TestRasterizer_SinglePointDrawsNothing(t *testing.T) {
	r := NewRasterizer()
	defer r.Close()
	if err := r.Configure(50, 50, 1); err != nil {
		t.Fatalf("configure: %v", err)
	}
	blank := append([]uint8{}, r.Image().Pix...)

	r.RedrawAll(DrawingOf(Series{ID: SeriesSignature, Points: []Point{{X: 25, Y: 25}}}), func(SeriesID) Style { return SignatureStyle })
	if !bytes.Equal(blank, r.Image().Pix) {
		t.Error("a one-point series must not change the raster")
	}
}

func TestRasterizer_Unavailable(t *testing.T) {
	r := NewRasterizer()
	if r.Available() {
		t.Fatal("new rasterizer should be unavailable")
	}
	r.Clear()
	r.RedrawAll(sampleDrawing(), ChartStyle)
	r.StrokeSegment(SignatureStyle, Point{}, Point{X: 1, Y: 1})

	if r.Image() != nil {
		t.Error("expected nil image")
	}
	if got := r.DataURI(); got != "" {
		t.Errorf("expected empty data URI, got %q", got)
	}
	if err := r.EncodePNG(&bytes.Buffer{}); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("expected ErrSurfaceUnavailable, got %v", err)
	}
}

func TestRasterizer_ConfigureRejectsEmptySize(t *testing.T) {
	r := NewRasterizer()
	if err := r.Configure(100, 100, 1); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := r.Configure(0, 100, 1); err == nil {
		t.Fatal("expected error for zero width")
	}
	if r.Available() {
		t.Error("rasterizer should be unavailable after a failed configure")
	}
}

func TestRasterizer_ConfigureRejectsOversizedSurface(t *testing.T) {
	tests := []struct {
		name                 string
		width, height, ratio float64
	}{
		{"huge width", 1e6, 100, 1},
		{"huge height", 100, 1e6, 1},
		{"ratio too large", 100, 100, MaxDPR + 1},
		{"NaN ratio", 100, 100, math.NaN()},
		{"NaN size", math.NaN(), 100, 1},
		{"infinite size", math.Inf(1), 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRasterizer()
			if err := r.Configure(100, 100, 1); err != nil {
				t.Fatalf("configure: %v", err)
			}
			err := r.Configure(tt.width, tt.height, tt.ratio)
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Fatalf("expected ErrInvalidGeometry, got %v", err)
			}
			if r.Available() {
				t.Error("rasterizer should be unavailable after a rejected configure")
			}
		})
	}
}

func TestRasterizer_ConfigureAcceptsLimits(t *testing.T) {
	if err := ValidateGeometry(MaxSurfaceSize, 1, MaxDPR); err != nil {
		t.Errorf("limits should be accepted: %v", err)
	}
	if err := ValidateGeometry(100, 100, 0); err != nil {
		t.Errorf("a zero ratio stands for 1: %v", err)
	}
}

func TestRasterizer_DataURI(t *testing.T) {
	r := NewRasterizer()
	defer r.Close()
	if err := r.Configure(40, 20, 1); err != nil {
		t.Fatalf("configure: %v", err)
	}
	uri := r.DataURI()
	if !strings.HasPrefix(uri, PNGDataURIPrefix) {
		t.Fatalf("expected PNG data URI, got %.40q", uri)
	}

	var buf bytes.Buffer
	if err := r.EncodePNG(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
}
