package drawing

import "io"

// ChartStrokeWidth is the pen width of every chart series.
const ChartStrokeWidth = 2

var chartColors = map[SeriesID]string{
	SeriesTension:     "#dc2626",
	SeriesFrequence:   "#2563eb",
	SeriesSaturation:  "#16a34a",
	SeriesTemperature: "#ea580c",
}

// ChartStyle returns the pen of a chart series.
func ChartStyle(id SeriesID) Style {
	c, ok := chartColors[id]
	if !ok {
		c = "#000000"
	}
	return Style{Color: c, Width: ChartStrokeWidth}
}

// Chart is the four-series vital-signs tracer. Every mutation triggers a
// full redraw so that clearing one series removes exactly its strokes.
type Chart struct {
	model    *Model
	engine   *Engine
	raster   *Rasterizer
	tool     SeriesID
	onPoints func(Drawing)
}

// NewChart creates a chart of the given logical size with the tension tool
// selected.
func NewChart(width, height, dpr float64) *Chart {
	c := &Chart{
		model:  NewModel(ChartSeries()...),
		raster: NewRasterizer(),
		tool:   SeriesTension,
	}
	c.engine = NewEngine(c.model, c.Tool)
	c.engine.OnPoint(func(Segment) { c.changed() })
	_ = c.raster.Configure(width, height, dpr)
	return c
}

// OnPointsChange registers the host's write access to its points slice. It
// is called with a snapshot after every mutation caused by input or a
// clear.
func (c *Chart) OnPointsChange(fn func(Drawing)) {
	c.onPoints = fn
}

// SelectTool sets the series for the next strokes. A stroke in progress
// keeps its series.
func (c *Chart) SelectTool(id SeriesID) error {
	if _, ok := chartColors[id]; !ok {
		return &UnknownSeriesError{Series: id}
	}
	c.tool = id
	return nil
}

// Tool returns the selected series.
func (c *Chart) Tool() SeriesID {
	return c.tool
}

// Attach subscribes the chart to a host element's events.
func (c *Chart) Attach(t Target) { c.engine.Attach(t) }

// Detach unsubscribes from the host element.
func (c *Chart) Detach() { c.engine.Detach() }

// Handle applies one event with the element's current bounding rectangle.
func (c *Chart) Handle(ev Event, rect Rect) (Outcome, error) {
	return c.engine.Handle(ev, rect)
}

// State returns the stroke state of the capture engine.
func (c *Chart) State() State { return c.engine.State() }

// ClearCurrent empties the selected series only.
func (c *Chart) ClearCurrent() {
	c.engine.Abort()
	// The selected tool is always a chart series.
	_ = c.model.ClearSeries(c.tool)
	c.changed()
}

// ClearAll empties every series.
func (c *Chart) ClearAll() {
	c.engine.Abort()
	c.model.ClearAll()
	c.changed()
}

// Points returns a snapshot of all four series.
func (c *Chart) Points() Drawing {
	return c.model.Snapshot()
}

// Restore loads previously saved points. The drawing must carry exactly the
// four chart series. The host is not notified since it supplied the data.
func (c *Chart) Restore(d Drawing) error {
	if err := c.model.Restore(d); err != nil {
		return err
	}
	c.engine.Abort()
	c.redraw()
	return nil
}

// Resize reallocates the pixel buffer and redraws.
func (c *Chart) Resize(width, height, dpr float64) error {
	if err := c.raster.Configure(width, height, dpr); err != nil {
		return err
	}
	c.redraw()
	return nil
}

// Geometry returns the current surface geometry.
func (c *Chart) Geometry() Geometry {
	return c.raster.Geometry()
}

// Image returns the current raster as a PNG data URI.
func (c *Chart) Image() string {
	return c.raster.DataURI()
}

// EncodePNG writes the current raster.
func (c *Chart) EncodePNG(w io.Writer) error {
	return c.raster.EncodePNG(w)
}

// Close releases the pixel buffer and detaches from any host element.
func (c *Chart) Close() error {
	c.engine.Detach()
	return c.raster.Close()
}

func (c *Chart) redraw() {
	c.raster.RedrawAll(c.model, ChartStyle)
}

func (c *Chart) changed() {
	c.redraw()
	if c.onPoints != nil {
		c.onPoints(c.model.Snapshot())
	}
}
