package registry

import (
	"testing"

	"github.com/BioHazard786/posecast/internal/pose"
	"github.com/BioHazard786/posecast/internal/render"
)

func newTestRegistry(opts ...Option) (*Registry, map[string]*render.Recorder) {
	surfaces := make(map[string]*render.Recorder)
	return New(render.NewRecorderFactory(surfaces), opts...), surfaces
}

func TestAddIdempotent(t *testing.T) {
	r, surfaces := newTestRegistry()
	r.Add("alice")
	first := surfaces["alice"]
	r.Add("alice")

	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1", r.Count())
	}
	if surfaces["alice"] != first {
		t.Fatal("second Add allocated a new surface")
	}
	if w, h := first.Size(); w != render.CanvasWidth || h != render.CanvasHeight {
		t.Fatalf("surface size = %dx%d", w, h)
	}
}

func TestUpdatePoseRoutes(t *testing.T) {
	r, surfaces := newTestRegistry()
	r.Add("alice")
	r.Add("bob")
	surfaces["alice"].Reset()
	surfaces["bob"].Reset()

	if !r.UpdatePose("alice", pose.Uniform(0.5, 0.5, 1), 10) {
		t.Fatal("update for known participant not applied")
	}
	if surfaces["alice"].Count("circle") != pose.KeypointCount {
		t.Fatalf("alice circles = %d", surfaces["alice"].Count("circle"))
	}
	if len(surfaces["bob"].Ops) != 0 {
		t.Fatalf("bob's surface touched: %+v", surfaces["bob"].Ops)
	}
}

func TestUpdatePoseUnknown(t *testing.T) {
	r, surfaces := newTestRegistry()
	r.Add("alice")
	surfaces["alice"].Reset()

	if r.UpdatePose("mallory", pose.Uniform(0.5, 0.5, 1), 1) {
		t.Fatal("update for unknown participant applied")
	}
	if r.Has("mallory") || r.Count() != 1 {
		t.Fatal("unknown update changed membership")
	}
	if len(surfaces["alice"].Ops) != 0 {
		t.Fatal("unknown update touched another renderer")
	}
	if r.Misses() != 1 {
		t.Fatalf("Misses = %d, want 1", r.Misses())
	}
}

func TestRemoveThenUpdate(t *testing.T) {
	r, surfaces := newTestRegistry()
	r.Add("alice")
	rec := surfaces["alice"]
	r.Remove("alice")

	if !rec.Released {
		t.Fatal("surface not released")
	}
	rec.Reset()
	if r.UpdatePose("alice", pose.Uniform(0.5, 0.5, 1), 1) {
		t.Fatal("update after remove applied")
	}
	if len(rec.Ops) != 0 {
		t.Fatal("released surface drawn on")
	}

	r.Remove("alice")
	r.Remove("never-added")
	if r.Count() != 0 {
		t.Fatalf("Count = %d, want 0", r.Count())
	}
}

func TestClear(t *testing.T) {
	r, surfaces := newTestRegistry()
	for _, id := range []string{"a", "b", "c"} {
		r.Add(id)
	}
	r.Clear()

	if r.Count() != 0 {
		t.Fatalf("Count = %d after Clear", r.Count())
	}
	for id, s := range surfaces {
		if !s.Released {
			t.Fatalf("surface %s not released", id)
		}
	}
	r.Clear()
}

func TestResizeAll(t *testing.T) {
	r, surfaces := newTestRegistry()
	r.Add("a")
	r.Add("b")
	for _, s := range surfaces {
		s.Reset()
	}
	r.ResizeAll()
	for id, s := range surfaces {
		if s.Count("resize") != 1 {
			t.Fatalf("%s resize calls = %d", id, s.Count("resize"))
		}
	}
}

func TestIDsAndEach(t *testing.T) {
	r, _ := newTestRegistry()
	r.Add("carol")
	r.Add("alice")
	r.Add("bob")

	ids := r.IDs()
	want := []string{"alice", "bob", "carol"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs = %v, want %v", ids, want)
		}
	}

	var seen []string
	r.Each(func(p *Participant) { seen = append(seen, p.ID) })
	if len(seen) != 3 || seen[0] != "alice" {
		t.Fatalf("Each order = %v", seen)
	}
}

func TestLastProcessedWinsByDefault(t *testing.T) {
	r, _ := newTestRegistry()
	r.Add("a")
	r.UpdatePose("a", pose.Frame{}, 200)
	if !r.UpdatePose("a", pose.Frame{}, 100) {
		t.Fatal("older frame should still render by default")
	}
	var got *Participant
	r.Each(func(p *Participant) { got = p })
	if got.LastTimestamp != 100 || got.Frames != 2 {
		t.Fatalf("participant = %+v", got)
	}
}

func TestStaleFrameDrop(t *testing.T) {
	r, surfaces := newTestRegistry(WithStaleFrameDrop(true))
	r.Add("a")
	r.UpdatePose("a", pose.Uniform(0.5, 0.5, 1), 200)
	surfaces["a"].Reset()

	if r.UpdatePose("a", pose.Uniform(0.1, 0.1, 1), 100) {
		t.Fatal("stale frame rendered")
	}
	if len(surfaces["a"].Ops) != 0 {
		t.Fatal("stale frame touched the surface")
	}
	if !r.UpdatePose("a", pose.Uniform(0.1, 0.1, 1), 200) {
		t.Fatal("equal timestamp must render")
	}

	var got *Participant
	r.Each(func(p *Participant) { got = p })
	if got.Stale != 1 || got.Frames != 2 {
		t.Fatalf("participant = %+v", got)
	}
}
