// Package render draws pose frames as skeletons onto drawing surfaces.
//
// A Surface is the only thing the renderer knows about its output: it can be a
// software RGBA buffer (Raster), a terminal character grid (Grid), or a test
// double that records calls (Recorder). Coordinates are logical units of the
// surface's current size.
package render

import "image/color"

// Surface is the drawing capability a Skeleton renders onto.
type Surface interface {
	Clear()
	DrawCircle(x, y, r float64, c color.RGBA)
	DrawLine(x1, y1, x2, y2, width float64, c color.RGBA)
	Resize(w, h int)
	Size() (w, h int)
}

// Releaser is implemented by surfaces that hold resources worth freeing when
// their participant goes away.
type Releaser interface {
	Release()
}

// Factory allocates a fresh surface for a new participant.
type Factory func(participantID string) Surface

// Release frees s if it supports it.
func Release(s Surface) {
	if r, ok := s.(Releaser); ok {
		r.Release()
	}
}
