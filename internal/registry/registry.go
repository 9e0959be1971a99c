// Package registry owns the participants of a session and their renderers.
//
// Membership changes only through the registry's own methods, so a renderer
// and its surface never outlive their participant entry. A Registry is not
// safe for concurrent use; the session event loop owns it.
package registry

import (
	"log/slog"
	"sort"

	"github.com/BioHazard786/posecast/internal/pose"
	"github.com/BioHazard786/posecast/internal/render"
)

// Participant is one known peer and its exclusively-owned renderer.
type Participant struct {
	ID       string
	Renderer *render.Skeleton

	// LastTimestamp is the sender timestamp of the last applied frame.
	LastTimestamp int64
	// Frames counts frames rendered for this participant.
	Frames uint64
	// Stale counts frames dropped by the stale-frame policy.
	Stale uint64
}

// Surface returns the participant's drawing surface.
func (p *Participant) Surface() render.Surface {
	return p.Renderer.Surface()
}

// Option customises a Registry.
type Option func(*Registry)

// WithStaleFrameDrop drops frames whose timestamp is older than the last one
// applied for that participant instead of rendering them.
func WithStaleFrameDrop(enabled bool) Option {
	return func(r *Registry) { r.dropStale = enabled }
}

// WithLogger sets the logger used for routing diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// Registry maps participant ids to participants.
type Registry struct {
	participants map[string]*Participant
	newSurface   render.Factory
	dropStale    bool
	log          *slog.Logger

	misses uint64
}

// New returns an empty registry that allocates surfaces with factory.
func New(factory render.Factory, opts ...Option) *Registry {
	r := &Registry{
		participants: make(map[string]*Participant),
		newSurface:   factory,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Add registers id. It is a no-op if id is already present.
func (r *Registry) Add(id string) {
	if _, ok := r.participants[id]; ok {
		return
	}
	r.participants[id] = &Participant{
		ID:       id,
		Renderer: render.NewSkeleton(r.newSurface(id)),
	}
	r.log.Debug("registry: participant added", "participant", id, "count", len(r.participants))
}

// UpdatePose renders frame for id. Updates for unknown ids are dropped and
// counted as routing misses; membership only changes through Add and Remove.
// It reports whether the frame was rendered.
func (r *Registry) UpdatePose(id string, frame pose.Frame, timestamp int64) bool {
	p, ok := r.participants[id]
	if !ok {
		r.misses++
		r.log.Debug("registry: pose for unknown participant dropped", "participant", id)
		return false
	}
	if r.dropStale && p.Frames > 0 && timestamp < p.LastTimestamp {
		p.Stale++
		return false
	}

	p.Renderer.Render(frame)
	p.LastTimestamp = timestamp
	p.Frames++
	return true
}

// Remove releases id's surface and forgets it. No-op if absent.
func (r *Registry) Remove(id string) {
	p, ok := r.participants[id]
	if !ok {
		return
	}
	render.Release(p.Surface())
	delete(r.participants, id)
	r.log.Debug("registry: participant removed", "participant", id, "count", len(r.participants))
}

// Clear removes every participant.
func (r *Registry) Clear() {
	for id := range r.participants {
		r.Remove(id)
	}
}

// Count returns the number of participants.
func (r *Registry) Count() int {
	return len(r.participants)
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.participants[id]
	return ok
}

// ResizeAll re-applies the canonical size to every renderer.
func (r *Registry) ResizeAll() {
	for _, p := range r.participants {
		p.Renderer.Resize()
	}
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Each calls fn for every participant in id order.
func (r *Registry) Each(fn func(*Participant)) {
	for _, id := range r.IDs() {
		fn(r.participants[id])
	}
}

// Misses returns how many updates targeted unknown participants.
func (r *Registry) Misses() uint64 {
	return r.misses
}
