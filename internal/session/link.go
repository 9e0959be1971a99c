package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BioHazard786/posecast/internal/channel"
	"github.com/BioHazard786/posecast/internal/config"
	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/signaling"
	"github.com/BioHazard786/posecast/internal/transport/mesh"
	"github.com/BioHazard786/posecast/internal/transport/relay"
)

// EventKind tells membership events apart.
type EventKind int

const (
	PeerJoined EventKind = iota
	PeerLeft
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case PeerJoined:
		return "peer_joined"
	case PeerLeft:
		return "peer_left"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

// Event is a membership change reported by the connection to the room.
type Event struct {
	Kind   EventKind
	UserID string
}

// Link is an open data channel into a room plus the membership events that
// travel alongside it.
type Link struct {
	Transport channel.Transport
	Events    <-chan Event

	closeOnce sync.Once
	closeFn   func() error
	closeErr  error
}

// NewLink bundles a transport with its event stream. closeFn releases
// whatever carries the events; the transport is closed separately.
func NewLink(t channel.Transport, events <-chan Event, closeFn func() error) *Link {
	return &Link{Transport: t, Events: events, closeFn: closeFn}
}

// Close releases the link. Later calls return the first result.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		if l.closeFn != nil {
			l.closeErr = l.closeFn()
		}
	})
	return l.closeErr
}

// Connector opens the data channel for a room the user has been admitted to.
type Connector interface {
	Connect(ctx context.Context, roomID, userID string) (*Link, error)
}

// Dialer connects through the session server: signaling over WebSocket and
// pose data over either a WebRTC mesh or the server relay.
type Dialer struct {
	Config *config.Config
	Logger *slog.Logger
}

func (d *Dialer) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Connect dials the signaling endpoint and builds the configured transport.
func (d *Dialer) Connect(ctx context.Context, roomID, userID string) (*Link, error) {
	client := signaling.NewClient(d.Config.WebSocketURL())
	if err := client.Connect(ctx, roomID, userID); err != nil {
		return nil, protocol.NewError("connect to server", err)
	}

	handler := signaling.NewHandler(client)
	go handler.Start()

	var (
		transport channel.Transport
		peers     *mesh.Mesh
	)
	switch d.Config.Transport {
	case config.TransportRelay:
		transport = relay.New(client, handler.Data)
	default:
		user, pass := d.Config.GetTURNCredentials()
		peers = mesh.New(userID, client, mesh.ICEConfig{
			STUNServers: d.Config.GetSTUNServers(),
			TURNServers: d.Config.GetTURNServers(),
			TURNUser:    user,
			TURNPass:    pass,
			ForceRelay:  d.Config.ForceRelay,
		}, mesh.WithLogger(d.logger()))
		transport = peers
	}

	p := &pump{
		handler: handler,
		mesh:    peers,
		log:     d.logger(),
		events:  make(chan Event, 32),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()

	return NewLink(transport, p.events, func() error {
		close(p.done)
		client.Close()
		p.wg.Wait()
		return nil
	}), nil
}

// pump turns signaling traffic into membership events and feeds WebRTC
// negotiation to the mesh, if there is one.
type pump struct {
	handler *signaling.Handler
	mesh    *mesh.Mesh
	log     *slog.Logger
	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
}

func (p *pump) run() {
	defer p.wg.Done()
	h := p.handler

	for {
		select {
		case <-p.done:
			return

		case members := <-h.Members:
			for _, id := range members {
				p.emit(Event{Kind: PeerJoined, UserID: id})
			}
			if p.mesh != nil {
				if err := p.mesh.ConnectPeers(members); err != nil {
					p.log.Warn("session: connecting to peers", "error", err)
				}
			}

		case id := <-h.PeerJoined:
			p.emit(Event{Kind: PeerJoined, UserID: id})

		case id := <-h.PeerLeft:
			if p.mesh != nil {
				p.mesh.RemovePeer(id)
			}
			p.emit(Event{Kind: PeerLeft, UserID: id})

		case sig := <-h.Signal:
			if p.mesh == nil {
				continue
			}
			if err := p.mesh.HandleSignal(sig.From, sig.Payload); err != nil {
				p.log.Debug("session: signal rejected", "from", sig.From, "error", err)
			}

		case msg := <-h.Error:
			p.log.Warn("session: server error", "error", msg)

		case <-h.Disconnected():
			p.emit(Event{Kind: Disconnected})
			return
		}
	}
}

func (p *pump) emit(ev Event) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}
