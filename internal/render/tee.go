package render

import "image/color"

// Tee draws onto several surfaces at once. Size reports the first member.
type Tee []Surface

// NewTeeFactory combines factories so each participant gets one surface
// from every factory, drawn in lockstep.
func NewTeeFactory(factories ...Factory) Factory {
	if len(factories) == 1 {
		return factories[0]
	}
	return func(id string) Surface {
		t := make(Tee, len(factories))
		for i, f := range factories {
			t[i] = f(id)
		}
		return t
	}
}

func (t Tee) Clear() {
	for _, s := range t {
		s.Clear()
	}
}

func (t Tee) DrawCircle(x, y, r float64, c color.RGBA) {
	for _, s := range t {
		s.DrawCircle(x, y, r, c)
	}
}

func (t Tee) DrawLine(x1, y1, x2, y2, width float64, c color.RGBA) {
	for _, s := range t {
		s.DrawLine(x1, y1, x2, y2, width, c)
	}
}

func (t Tee) Resize(w, h int) {
	for _, s := range t {
		s.Resize(w, h)
	}
}

func (t Tee) Size() (int, int) {
	if len(t) == 0 {
		return 0, 0
	}
	return t[0].Size()
}

func (t Tee) Release() {
	for _, s := range t {
		Release(s)
	}
}

// Parts returns the surfaces behind s: the members of a Tee, or s itself.
func Parts(s Surface) []Surface {
	if t, ok := s.(Tee); ok {
		return t
	}
	return []Surface{s}
}
