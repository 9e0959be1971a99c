package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/vector"
)

// circleSegments is the polygon resolution used to approximate markers.
const circleSegments = 24

// Raster is an anti-aliased RGBA software surface.
type Raster struct {
	img *image.RGBA
	z   *vector.Rasterizer
}

// NewRaster returns an empty raster; the renderer sizes it on bind.
func NewRaster() *Raster {
	return &Raster{
		img: image.NewRGBA(image.Rectangle{}),
		z:   vector.NewRasterizer(0, 0),
	}
}

// NewRasterFactory is a Factory producing Raster surfaces.
func NewRasterFactory() Factory {
	return func(string) Surface { return NewRaster() }
}

func (r *Raster) Resize(w, h int) {
	r.img = image.NewRGBA(image.Rect(0, 0, w, h))
	r.z.Reset(w, h)
}

func (r *Raster) Size() (int, int) {
	if r.img == nil {
		return 0, 0
	}
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

func (r *Raster) Clear() {
	if r.img == nil {
		return
	}
	draw.Draw(r.img, r.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (r *Raster) DrawCircle(x, y, radius float64, c color.RGBA) {
	if r.img == nil || radius <= 0 {
		return
	}
	w, h := r.Size()
	r.z.Reset(w, h)
	for i := 0; i < circleSegments; i++ {
		theta := 2 * math.Pi * float64(i) / circleSegments
		px := float32(x + radius*math.Cos(theta))
		py := float32(y + radius*math.Sin(theta))
		if i == 0 {
			r.z.MoveTo(px, py)
		} else {
			r.z.LineTo(px, py)
		}
	}
	r.z.ClosePath()
	r.z.Draw(r.img, r.img.Bounds(), image.NewUniform(c), image.Point{})
}

func (r *Raster) DrawLine(x1, y1, x2, y2, width float64, c color.RGBA) {
	if r.img == nil || width <= 0 {
		return
	}
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	// Offset both endpoints by half the width along the normal (butt caps).
	nx, ny := -dy/length*width/2, dx/length*width/2

	w, h := r.Size()
	r.z.Reset(w, h)
	r.z.MoveTo(float32(x1+nx), float32(y1+ny))
	r.z.LineTo(float32(x2+nx), float32(y2+ny))
	r.z.LineTo(float32(x2-nx), float32(y2-ny))
	r.z.LineTo(float32(x1-nx), float32(y1-ny))
	r.z.ClosePath()
	r.z.Draw(r.img, r.img.Bounds(), image.NewUniform(c), image.Point{})
}

// Image exposes the backing buffer. Callers must not retain it across renders.
func (r *Raster) Image() *image.RGBA {
	return r.img
}

// WritePNG encodes the current buffer as PNG.
func (r *Raster) WritePNG(w io.Writer) error {
	if r.img == nil {
		return io.ErrClosedPipe
	}
	return png.Encode(w, r.img)
}

// Release drops the pixel buffer.
func (r *Raster) Release() {
	r.img = nil
}
