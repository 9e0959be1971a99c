package render

import (
	"image/color"

	"github.com/BioHazard786/posecast/internal/pose"
)

// Canonical surface size. Normalized keypoints always map into this space,
// whatever the on-screen scaling of the backing surface.
const (
	CanvasWidth  = 640
	CanvasHeight = 480
)

const (
	MarkerRadius = 5
	BoneWidth    = 2
)

var (
	KeypointColor = color.RGBA{R: 0x00, G: 0xff, B: 0x00, A: 0xff}
	BoneColor     = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Skeleton draws one participant's frames onto its surface. It keeps no
// state between Render calls.
type Skeleton struct {
	surface Surface
}

// NewSkeleton binds a renderer to s and sizes s to the canonical resolution.
func NewSkeleton(s Surface) *Skeleton {
	sk := &Skeleton{surface: s}
	sk.Resize()
	return sk
}

// Surface returns the surface this renderer draws on.
func (sk *Skeleton) Surface() Surface {
	return sk.surface
}

// Resize fixes the surface to CanvasWidth x CanvasHeight logical units.
func (sk *Skeleton) Resize() {
	sk.surface.Resize(CanvasWidth, CanvasHeight)
}

// Render clears the surface and draws frame. Keypoints at or below the
// confidence threshold are skipped, and so is every bone touching one.
func (sk *Skeleton) Render(frame pose.Frame) {
	sk.surface.Clear()
	if frame.Empty() {
		return
	}

	w, h := sk.surface.Size()
	fw, fh := float64(w), float64(h)

	for _, kp := range frame.Keypoints {
		if !kp.Visible() {
			continue
		}
		sk.surface.DrawCircle(kp.X*fw, kp.Y*fh, MarkerRadius, KeypointColor)
	}

	for _, b := range pose.Bones {
		if !frame.Visible(b.A) || !frame.Visible(b.B) {
			continue
		}
		a, c := frame.Keypoints[b.A], frame.Keypoints[b.B]
		sk.surface.DrawLine(a.X*fw, a.Y*fh, c.X*fw, c.Y*fh, BoneWidth, BoneColor)
	}
}
