// Package session runs a participant's side of a pose session: it creates or
// joins a room, connects the data channel, broadcasts local poses and renders
// everyone else's.
//
// All participant state lives in a registry owned by one event loop
// goroutine. Transport callbacks, membership events and UI queries reach it
// through channels, so no renderer or surface is ever touched concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/posecast/internal/broadcast"
	"github.com/BioHazard786/posecast/internal/channel"
	"github.com/BioHazard786/posecast/internal/pose"
	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/registry"
	"github.com/BioHazard786/posecast/internal/render"
)

// DefaultInboundQueue bounds the poses waiting for the event loop.
const DefaultInboundQueue = 64

// Terminal grid used when no surface factory is configured.
const (
	DefaultGridCols = 40
	DefaultGridRows = 15
)

// Options configures a Controller.
type Options struct {
	UserID    string
	FPS       float64
	Codec     protocol.Codec
	DropStale bool

	Surfaces render.Factory
	Capture  broadcast.CaptureFunc

	InboundQueue int
	Logger       *slog.Logger
	Clock        func() time.Time
}

// Stats is a snapshot of session counters.
type Stats struct {
	RoomID         string
	Participants   int
	Broadcast      broadcast.Stats
	Channel        channel.Stats
	InboundDropped uint64
	RoutingMisses  uint64
}

// ParticipantView is what a UI needs to show one participant.
type ParticipantView struct {
	ID            string
	Frames        uint64
	Stale         uint64
	LastTimestamp int64
	// Text is the participant's drawing when it has a character surface.
	Text string
}

// Controller holds the session lifecycle: pre-session until Create or Join
// succeeds, back to pre-session after Leave.
type Controller struct {
	api     API
	connect Connector
	opts    Options
	log     *slog.Logger

	mu     sync.Mutex
	cur    *active
	last   Stats
	update chan struct{}
}

// New returns a controller in the pre-session state.
func New(api API, connect Connector, opts Options) *Controller {
	if opts.Codec == nil {
		opts.Codec = protocol.JSONCodec{}
	}
	if opts.Surfaces == nil {
		opts.Surfaces = render.NewGridFactory(DefaultGridCols, DefaultGridRows)
	}
	if opts.InboundQueue <= 0 {
		opts.InboundQueue = DefaultInboundQueue
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		api:     api,
		connect: connect,
		opts:    opts,
		log:     log,
		update:  make(chan struct{}, 1),
	}
}

// Create asks the server for a new room and joins it.
func (c *Controller) Create(ctx context.Context) (string, error) {
	if c.Joined() {
		return "", protocol.SessionError("create", protocol.ErrAlreadyJoined)
	}
	roomID, err := c.api.Create(ctx, c.opts.UserID)
	if err != nil {
		return "", err
	}
	if err := c.Join(ctx, roomID); err != nil {
		return "", err
	}
	return roomID, nil
}

// Join enters roomID, connects the data channel and starts broadcasting. On
// failure the controller stays in the pre-session state.
func (c *Controller) Join(ctx context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil {
		return protocol.SessionError("join", protocol.ErrAlreadyJoined)
	}

	if err := c.api.Join(ctx, roomID, c.opts.UserID); err != nil {
		return err
	}
	link, err := c.connect.Connect(ctx, roomID, c.opts.UserID)
	if err != nil {
		return protocol.SessionError("connect", err)
	}

	a := c.newActive(roomID, link)
	a.wg.Add(1)
	go a.run()

	a.adapter = channel.New(nil, c.opts.UserID, a,
		channel.WithCodec(c.opts.Codec),
		channel.WithLogger(c.log),
	)
	a.adapter.Attach(link.Transport)

	if c.opts.Capture != nil {
		if err := a.loop.Start(c.opts.Capture, a.send, c.opts.FPS); err != nil {
			c.teardown(a)
			return protocol.SessionError("start broadcast", err)
		}
	}

	if err := a.adapter.Send(protocol.ParticipantJoined{UserID: c.opts.UserID, Timestamp: c.now()}); err != nil {
		c.log.Debug("session: join announcement not sent", "error", err)
	}

	c.cur = a
	c.log.Info("session: joined", "room", roomID, "user", c.opts.UserID)
	return nil
}

// Leave tears the session down: stop broadcasting, close the channel, then
// clear the registry. Every step runs even if an earlier one failed; their
// errors are joined. Leave is a no-op outside a session.
func (c *Controller) Leave() error {
	c.mu.Lock()
	a := c.cur
	c.cur = nil
	c.mu.Unlock()

	if a == nil {
		return nil
	}

	a.loop.Stop()
	if err := a.adapter.Send(protocol.ParticipantLeft{UserID: c.opts.UserID, Timestamp: c.now()}); err != nil {
		c.log.Debug("session: leave announcement not sent", "error", err)
	}
	stats, err := c.teardown(a)

	c.mu.Lock()
	c.last = stats
	c.mu.Unlock()
	c.notify()

	c.log.Info("session: left", "room", a.roomID)
	return err
}

func (c *Controller) teardown(a *active) (Stats, error) {
	var errs []error

	a.loop.Stop()

	if a.adapter != nil {
		if err := a.adapter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.link.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close link: %w", err))
	}

	close(a.done)
	a.wg.Wait()

	// The event loop has exited, so the registry is ours now.
	stats := a.statsWith(a.registry)
	a.registry.Clear()

	if err := errors.Join(errs...); err != nil {
		c.log.Warn("session: teardown", "error", err)
		return stats, err
	}
	return stats, nil
}

// Joined reports whether a session is active.
func (c *Controller) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil
}

// RoomID returns the active room, or "" outside a session.
func (c *Controller) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return ""
	}
	return c.cur.roomID
}

// UserID returns the local participant id.
func (c *Controller) UserID() string {
	return c.opts.UserID
}

// Updates signals, coalesced, whenever the rendered state changed.
func (c *Controller) Updates() <-chan struct{} {
	return c.update
}

// Lost is closed when the active session's connection to the server ends.
// It returns nil outside a session.
func (c *Controller) Lost() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return nil
	}
	return c.cur.lost
}

// Stats returns live counters, or the final ones of the last session.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	a := c.cur
	last := c.last
	c.mu.Unlock()
	if a == nil {
		return last
	}

	var s Stats
	if !a.do(func(r *registry.Registry) { s = a.statsWith(r) }) {
		return last
	}
	return s
}

// View returns every remote participant in id order.
func (c *Controller) View() []ParticipantView {
	a := c.active()
	if a == nil {
		return nil
	}

	var views []ParticipantView
	a.do(func(r *registry.Registry) {
		r.Each(func(p *registry.Participant) {
			v := ParticipantView{
				ID:            p.ID,
				Frames:        p.Frames,
				Stale:         p.Stale,
				LastTimestamp: p.LastTimestamp,
			}
			for _, s := range render.Parts(p.Surface()) {
				if g, ok := s.(fmt.Stringer); ok {
					v.Text = g.String()
					break
				}
			}
			views = append(views, v)
		})
	})
	return views
}

// ResizeAll re-applies the canonical size to every participant's surface.
func (c *Controller) ResizeAll() {
	if a := c.active(); a != nil {
		a.do(func(r *registry.Registry) { r.ResizeAll() })
	}
}

// SaveSnapshots writes a PNG per participant with a raster surface into dir
// and returns the written paths.
func (c *Controller) SaveSnapshots(dir string) ([]string, error) {
	a := c.active()
	if a == nil {
		return nil, protocol.SessionError("snapshot", protocol.ErrNotJoined)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var (
		paths []string
		errs  []error
	)
	a.do(func(r *registry.Registry) {
		r.Each(func(p *registry.Participant) {
			for _, s := range render.Parts(p.Surface()) {
				raster, ok := s.(*render.Raster)
				if !ok {
					continue
				}
				path := filepath.Join(dir, snapshotName(p.ID))
				if err := writePNG(path, raster); err != nil {
					errs = append(errs, err)
					continue
				}
				paths = append(paths, path)
			}
		})
	})
	return paths, errors.Join(errs...)
}

func writePNG(path string, r *render.Raster) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WritePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func snapshotName(id string) string {
	clean := []rune(id)
	for i, r := range clean {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			clean[i] = '_'
		}
	}
	return string(clean) + ".png"
}

func (c *Controller) active() *active {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *Controller) now() int64 {
	return c.opts.Clock().UnixMilli()
}

func (c *Controller) notify() {
	select {
	case c.update <- struct{}{}:
	default:
	}
}

// inbound is one dispatched data channel message. Poses and in-band
// membership share a queue so a join is applied before the poses behind it.
type inbound struct {
	sender    string
	frame     pose.Frame
	timestamp int64

	membership bool
	joined     bool
}

// active is one joined session. Its run goroutine is the only user of
// registry until it exits.
type active struct {
	c        *Controller
	roomID   string
	link     *Link
	adapter  *channel.Adapter
	loop     *broadcast.Loop
	registry *registry.Registry

	inbound  chan inbound
	requests chan func(*registry.Registry)
	done     chan struct{}
	lost     chan struct{}
	lostOnce sync.Once
	wg       sync.WaitGroup

	inboundDropped atomic.Uint64
}

func (c *Controller) newActive(roomID string, link *Link) *active {
	return &active{
		c:      c,
		roomID: roomID,
		link:   link,
		loop: broadcast.New(c.opts.UserID,
			broadcast.WithClock(c.opts.Clock),
			broadcast.WithLogger(c.log),
		),
		registry: registry.New(c.opts.Surfaces,
			registry.WithStaleFrameDrop(c.opts.DropStale),
			registry.WithLogger(c.log),
		),
		inbound:  make(chan inbound, c.opts.InboundQueue),
		requests: make(chan func(*registry.Registry)),
		done:     make(chan struct{}),
		lost:     make(chan struct{}),
	}
}

func (a *active) run() {
	defer a.wg.Done()
	events := a.link.Events

	for {
		select {
		case <-a.done:
			return

		case in := <-a.inbound:
			if in.membership {
				a.apply(in.sender, in.joined)
				continue
			}
			if a.registry.UpdatePose(in.sender, in.frame, in.timestamp) {
				a.c.notify()
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Kind {
			case PeerJoined:
				a.apply(ev.UserID, true)
			case PeerLeft:
				a.apply(ev.UserID, false)
			case Disconnected:
				a.c.log.Warn("session: connection to server lost", "room", a.roomID)
				a.lostOnce.Do(func() { close(a.lost) })
				events = nil
			}

		case fn := <-a.requests:
			fn(a.registry)
		}
	}
}

func (a *active) apply(id string, joined bool) {
	if id == "" || id == a.c.opts.UserID || a.registry.Has(id) == joined {
		return
	}
	if joined {
		a.registry.Add(id)
		a.c.log.Info("session: participant joined", "participant", id)
	} else {
		a.registry.Remove(id)
		a.c.log.Info("session: participant left", "participant", id)
	}
	a.c.notify()
}

// do runs fn on the event loop and waits for it. It reports false if the
// loop has already stopped.
func (a *active) do(fn func(*registry.Registry)) bool {
	finished := make(chan struct{})
	select {
	case a.requests <- func(r *registry.Registry) {
		fn(r)
		close(finished)
	}:
	case <-a.done:
		return false
	}
	<-finished
	return true
}

func (a *active) send(_ context.Context, msg protocol.PoseUpdate) error {
	return a.adapter.Send(msg)
}

func (a *active) statsWith(r *registry.Registry) Stats {
	s := Stats{
		RoomID:         a.roomID,
		Participants:   r.Count(),
		Broadcast:      a.loop.Stats(),
		InboundDropped: a.inboundDropped.Load(),
		RoutingMisses:  r.Misses(),
	}
	if a.adapter != nil {
		s.Channel = a.adapter.Stats()
	}
	return s
}

// HandlePose queues an inbound pose for the event loop, dropping it when the
// loop is behind.
func (a *active) HandlePose(sender string, frame pose.Frame, timestamp int64) {
	select {
	case a.inbound <- inbound{sender: sender, frame: frame, timestamp: timestamp}:
	default:
		a.inboundDropped.Add(1)
	}
}

func (a *active) HandleJoined(userID string) {
	a.pushMember(userID, true)
}

func (a *active) HandleLeft(userID string) {
	a.pushMember(userID, false)
}

// pushMember waits for room in the queue: membership is never dropped.
func (a *active) pushMember(id string, joined bool) {
	select {
	case a.inbound <- inbound{sender: id, membership: true, joined: joined}:
	case <-a.done:
	}
}
