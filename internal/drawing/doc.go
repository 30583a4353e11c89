// Package drawing implements the freehand drawing surfaces used by the
// anesthesia forms: a single-series signature pad and a four-series
// vital-signs chart tracer.
//
// A surface is assembled from three parts:
//
//   - Model holds the Drawing, a fixed set of series each with an ordered
//     sequence of points in logical (device-independent) pixels.
//   - Engine turns raw pointer/touch events into stroke-lifecycle
//     transitions (idle, drawing) and appends points to the Model.
//   - Rasterizer renders the Drawing into a pixel buffer sized for the
//     device pixel ratio, with an opaque white background.
//
// Everything in this package is synchronous and single-threaded: one event
// is fully applied (model mutation and rasterization) before Handle
// returns. Callers that receive events from several goroutines must
// serialize them.
package drawing
