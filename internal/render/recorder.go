package render

import "image/color"

// Op is one recorded drawing call.
type Op struct {
	Kind           string // "clear", "circle", "line" or "resize"
	X1, Y1, X2, Y2 float64
	Radius, Width  float64
	Color          color.RGBA
}

// Recorder is a headless Surface that records every call. It is what tests
// and dry runs draw on.
type Recorder struct {
	w, h     int
	Ops      []Op
	Released bool
}

// NewRecorderFactory returns a Factory that also collects every surface it
// creates, keyed by participant id.
func NewRecorderFactory(into map[string]*Recorder) Factory {
	return func(id string) Surface {
		r := &Recorder{}
		if into != nil {
			into[id] = r
		}
		return r
	}
}

func (r *Recorder) Clear() {
	r.Ops = append(r.Ops, Op{Kind: "clear"})
}

func (r *Recorder) DrawCircle(x, y, radius float64, c color.RGBA) {
	r.Ops = append(r.Ops, Op{Kind: "circle", X1: x, Y1: y, Radius: radius, Color: c})
}

func (r *Recorder) DrawLine(x1, y1, x2, y2, width float64, c color.RGBA) {
	r.Ops = append(r.Ops, Op{Kind: "line", X1: x1, Y1: y1, X2: x2, Y2: y2, Width: width, Color: c})
}

func (r *Recorder) Resize(w, h int) {
	r.w, r.h = w, h
	r.Ops = append(r.Ops, Op{Kind: "resize", X1: float64(w), Y1: float64(h)})
}

func (r *Recorder) Size() (int, int) {
	return r.w, r.h
}

func (r *Recorder) Release() {
	r.Released = true
}

// Reset forgets recorded calls but keeps the size.
func (r *Recorder) Reset() {
	r.Ops = r.Ops[:0]
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}
