package drawing

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PrintLayout describes the time/value grid under a printed chart.
type PrintLayout struct {
	Width   float64
	Height  float64
	DPR     float64
	Columns int // time divisions
	Rows    int // value divisions

	ColumnLabels []string // drawn under the top edge of each column
	RowLabels    []string // drawn at the left of each row, top to bottom
	Title        string
}

// DefaultPrintLayout is the intraoperative record grid: 12 quarter-hour
// columns over three hours and 10 value rows.
func DefaultPrintLayout(width, height float64) PrintLayout {
	cols := make([]string, 12)
	for i := range cols {
		cols[i] = fmt.Sprintf("%dh%02d", (i*15)/60, (i*15)%60)
	}
	rows := make([]string, 10)
	for i := range rows {
		rows[i] = fmt.Sprintf("%d", 200-i*20)
	}
	return PrintLayout{
		Width:        width,
		Height:       height,
		DPR:          2,
		Columns:      len(cols),
		Rows:         len(rows),
		ColumnLabels: cols,
		RowLabels:    rows,
	}
}

var gridStyle = Style{Color: "#d1d5db", Width: 1}

// RenderPrint writes a PNG of d over the grid described by l. Series keep
// their chart colors and key order.
func RenderPrint(w io.Writer, d Drawing, l PrintLayout) error {
	r := NewRasterizer()
	defer r.Close()
	if err := r.Configure(l.Width, l.Height, l.DPR); err != nil {
		return err
	}

	if l.Columns > 0 {
		step := l.Width / float64(l.Columns)
		for i := 1; i < l.Columns; i++ {
			x := step * float64(i)
			r.StrokeSegment(gridStyle, Point{X: x, Y: 0}, Point{X: x, Y: l.Height})
		}
	}
	if l.Rows > 0 {
		step := l.Height / float64(l.Rows)
		for i := 1; i < l.Rows; i++ {
			y := step * float64(i)
			r.StrokeSegment(gridStyle, Point{X: 0, Y: y}, Point{X: l.Width, Y: y})
		}
	}
	for _, id := range d.IDs() {
		r.polyline(ChartStyle(id), d.Points(id))
	}

	img := r.Image()
	if img == nil {
		return ErrSurfaceUnavailable
	}
	labelGrid(img, l, r.Geometry().DPR)
	return png.Encode(w, img)
}

func labelGrid(img *image.RGBA, l PrintLayout, dpr float64) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 75, G: 85, B: 99, A: 255}),
		Face: basicfont.Face7x13,
	}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()

	if l.Columns > 0 {
		step := l.Width / float64(l.Columns) * dpr
		for i, label := range l.ColumnLabels {
			if i >= l.Columns {
				break
			}
			drawer.Dot = fixed.P(int(step*float64(i))+3, ascent+2)
			drawer.DrawString(label)
		}
	}
	if l.Rows > 0 {
		step := l.Height / float64(l.Rows) * dpr
		for i, label := range l.RowLabels {
			if i >= l.Rows {
				break
			}
			drawer.Dot = fixed.P(3, int(step*float64(i))+2*ascent+4)
			drawer.DrawString(label)
		}
	}
	if l.Title != "" {
		width := font.MeasureString(basicfont.Face7x13, l.Title).Ceil()
		drawer.Dot = fixed.P(img.Bounds().Dx()-width-4, img.Bounds().Dy()-4)
		drawer.DrawString(l.Title)
	}
}
