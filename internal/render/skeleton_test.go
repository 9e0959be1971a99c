package render

import (
	"bytes"
	"image/png"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/posecast/internal/pose"
)

func newRecorded() (*Skeleton, *Recorder) {
	rec := &Recorder{}
	sk := NewSkeleton(rec)
	rec.Reset()
	return sk, rec
}

func TestNewSkeletonResizesToCanonical(t *testing.T) {
	rec := &Recorder{}
	NewSkeleton(rec)
	if w, h := rec.Size(); w != CanvasWidth || h != CanvasHeight {
		t.Fatalf("size = %dx%d, want %dx%d", w, h, CanvasWidth, CanvasHeight)
	}
}

func TestRenderEmptyFrame(t *testing.T) {
	sk, rec := newRecorded()

	sk.Render(pose.Frame{Keypoints: []pose.Keypoint{}})
	sk.Render(pose.Frame{})

	if rec.Count("clear") != 2 {
		t.Fatalf("clear calls = %d, want 2", rec.Count("clear"))
	}
	if rec.Count("circle") != 0 || rec.Count("line") != 0 {
		t.Fatalf("empty frame produced draw calls: %+v", rec.Ops)
	}
}

func TestRenderFullFrame(t *testing.T) {
	sk, rec := newRecorded()
	sk.Render(pose.Uniform(0.5, 0.5, 1))

	if rec.Ops[0].Kind != "clear" {
		t.Fatalf("first op = %q, want clear", rec.Ops[0].Kind)
	}
	if got := rec.Count("circle"); got != pose.KeypointCount {
		t.Fatalf("circles = %d, want %d", got, pose.KeypointCount)
	}
	if got := rec.Count("line"); got != len(pose.Bones) {
		t.Fatalf("lines = %d, want %d", got, len(pose.Bones))
	}
	for _, op := range rec.Ops {
		switch op.Kind {
		case "circle":
			if op.X1 != 320 || op.Y1 != 240 || op.Radius != MarkerRadius || op.Color != KeypointColor {
				t.Fatalf("circle op = %+v", op)
			}
		case "line":
			if op.Width != BoneWidth || op.Color != BoneColor {
				t.Fatalf("line op = %+v", op)
			}
		}
	}
}

func TestRenderThresholdProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 200; trial++ {
		frame := pose.Uniform(0, 0, 0)
		for i := range frame.Keypoints {
			frame.Keypoints[i] = pose.Keypoint{X: rng.Float64(), Y: rng.Float64(), Score: rng.Float64() * 0.6}
		}
		// Pin a few scores to the boundary.
		frame.Keypoints[rng.IntN(pose.KeypointCount)].Score = pose.ConfidenceThreshold

		sk, rec := newRecorded()
		sk.Render(frame)

		circles := make(map[[2]float64]bool)
		for _, op := range rec.Ops {
			if op.Kind == "circle" {
				circles[[2]float64{op.X1, op.Y1}] = true
			}
		}

		wantCircles := 0
		for _, kp := range frame.Keypoints {
			at := [2]float64{kp.X * CanvasWidth, kp.Y * CanvasHeight}
			if kp.Score > pose.ConfidenceThreshold {
				wantCircles++
				if !circles[at] {
					t.Fatalf("trial %d: visible keypoint %+v not drawn", trial, kp)
				}
			} else if circles[at] {
				t.Fatalf("trial %d: hidden keypoint %+v drawn", trial, kp)
			}
		}
		if rec.Count("circle") != wantCircles {
			t.Fatalf("trial %d: circles = %d, want %d", trial, rec.Count("circle"), wantCircles)
		}

		lines := make(map[[4]float64]bool)
		for _, op := range rec.Ops {
			if op.Kind == "line" {
				lines[[4]float64{op.X1, op.Y1, op.X2, op.Y2}] = true
			}
		}
		wantLines := 0
		for _, b := range pose.Bones {
			a, c := frame.Keypoints[b.A], frame.Keypoints[b.B]
			key := [4]float64{a.X * CanvasWidth, a.Y * CanvasHeight, c.X * CanvasWidth, c.Y * CanvasHeight}
			drawn := lines[key]
			want := a.Score > pose.ConfidenceThreshold && c.Score > pose.ConfidenceThreshold
			if drawn != want {
				t.Fatalf("trial %d: bone %v drawn=%v want=%v (scores %.3f, %.3f)", trial, b, drawn, want, a.Score, c.Score)
			}
			if want {
				wantLines++
			}
		}
		if rec.Count("line") != wantLines {
			t.Fatalf("trial %d: lines = %d, want %d", trial, rec.Count("line"), wantLines)
		}
	}
}

func TestRenderShortFrameIsSafe(t *testing.T) {
	sk, rec := newRecorded()
	sk.Render(pose.Frame{Keypoints: []pose.Keypoint{{X: 0.1, Y: 0.1, Score: 1}}})
	if rec.Count("circle") != 1 || rec.Count("line") != 0 {
		t.Fatalf("ops = %+v", rec.Ops)
	}
}

func TestRenderIdempotent(t *testing.T) {
	sk, rec := newRecorded()
	frame := pose.Uniform(0.25, 0.75, 0.9)

	sk.Render(frame)
	first := append([]Op(nil), rec.Ops...)
	rec.Reset()
	sk.Render(frame)

	if len(first) != len(rec.Ops) {
		t.Fatalf("op count changed: %d then %d", len(first), len(rec.Ops))
	}
	for i := range first {
		if first[i] != rec.Ops[i] {
			t.Fatalf("op %d differs: %+v vs %+v", i, first[i], rec.Ops[i])
		}
	}
}

func TestRasterDrawsAndClears(t *testing.T) {
	r := NewRaster()
	sk := NewSkeleton(r)
	sk.Render(pose.Uniform(0.5, 0.5, 1))

	img := r.Image()
	if img.Bounds().Dx() != CanvasWidth || img.Bounds().Dy() != CanvasHeight {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if c := img.RGBAAt(320, 240); c.A == 0 {
		t.Fatalf("center pixel not painted: %+v", c)
	}
	if c := img.RGBAAt(10, 10); c.A != 0 {
		t.Fatalf("corner pixel painted: %+v", c)
	}

	sk.Render(pose.Frame{})
	if c := img.RGBAAt(320, 240); c.A != 0 {
		t.Fatalf("clear left pixel: %+v", c)
	}

	var buf bytes.Buffer
	if err := r.WritePNG(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("snapshot is not a PNG: %v", err)
	}
}

func TestRasterLine(t *testing.T) {
	r := NewRaster()
	r.Resize(100, 100)
	r.DrawLine(10, 50, 90, 50, 4, BoneColor)
	if c := r.Image().RGBAAt(50, 50); c.A == 0 {
		t.Fatal("line midpoint not painted")
	}
	if c := r.Image().RGBAAt(50, 60); c.A != 0 {
		t.Fatal("pixel off the line painted")
	}
}

func TestGrid(t *testing.T) {
	g := NewGrid(32, 12)
	sk := NewSkeleton(g)

	frame := pose.Uniform(0, 0, 0)
	frame.Keypoints[pose.LeftShoulder] = pose.Keypoint{X: 0.25, Y: 0.25, Score: 1}
	frame.Keypoints[pose.RightShoulder] = pose.Keypoint{X: 0.75, Y: 0.25, Score: 1}
	sk.Render(frame)

	if g.Cell(8, 3) != markerRune || g.Cell(24, 3) != markerRune {
		t.Fatalf("markers missing:\n%s", g)
	}
	for col := 9; col < 24; col++ {
		if g.Cell(col, 3) != '─' {
			t.Fatalf("cell %d = %q, want line:\n%s", col, g.Cell(col, 3), g)
		}
	}
	if lines := strings.Split(g.String(), "\n"); len(lines) != 12 {
		t.Fatalf("rows = %d, want 12", len(lines))
	}

	sk.Render(pose.Frame{})
	if strings.TrimSpace(g.String()) != "" {
		t.Fatalf("grid not cleared:\n%s", g)
	}
}

func TestGridClipsLines(t *testing.T) {
	for _, far := range []float64{1e15, -1e15, math.Inf(1), math.Inf(-1), math.NaN()} {
		g := NewGrid(32, 12)
		g.Resize(CanvasWidth, CanvasHeight)

		done := make(chan struct{})
		go func() {
			g.DrawLine(CanvasWidth/2, CanvasHeight/2, far, CanvasHeight/2, 2, BoneColor)
			g.DrawCircle(far, far, 5, KeypointColor)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("DrawLine to x=%v did not return", far)
		}

		if math.IsNaN(far) || math.IsInf(far, 0) {
			if strings.TrimSpace(g.String()) != "" {
				t.Fatalf("line to x=%v drew something:\n%s", far, g)
			}
			continue
		}
		edge := 31
		if far < 0 {
			edge = 0
		}
		if g.Cell(16, 6) != '─' || g.Cell(edge, 6) != '─' {
			t.Fatalf("x=%v: line not clipped to the grid edge:\n%s", far, g)
		}
	}

	g := NewGrid(32, 12)
	g.Resize(CanvasWidth, CanvasHeight)
	g.DrawLine(-100, -50, -10, -5, 2, BoneColor)
	if strings.TrimSpace(g.String()) != "" {
		t.Fatalf("segment outside the canvas drew:\n%s", g)
	}
}

func TestReleaseHelper(t *testing.T) {
	rec := &Recorder{}
	Release(rec)
	if !rec.Released {
		t.Fatal("Release did not reach the surface")
	}
}

func TestTeeDrawsEveryMember(t *testing.T) {
	recs := map[string]*Recorder{}
	factory := NewTeeFactory(NewRecorderFactory(recs), NewGridFactory(16, 8))
	s := factory("alice")

	sk := NewSkeleton(s)
	sk.Render(pose.Uniform(0.5, 0.5, 1))

	parts := Parts(s)
	if len(parts) != 2 {
		t.Fatalf("parts = %d", len(parts))
	}
	if recs["alice"].Count("circle") != pose.KeypointCount {
		t.Fatalf("recorder circles = %d", recs["alice"].Count("circle"))
	}
	if w, h := s.Size(); w != CanvasWidth || h != CanvasHeight {
		t.Fatalf("size = %dx%d", w, h)
	}
	grid := parts[1].(*Grid)
	if grid.Cell(8, 4) != markerRune {
		t.Fatalf("grid not drawn:\n%s", grid)
	}

	Release(s)
	if !recs["alice"].Released {
		t.Fatal("release not forwarded")
	}
	if got := Parts(recs["alice"]); len(got) != 1 {
		t.Fatalf("plain surface parts = %d", len(got))
	}
}
