// Package mesh is a data channel transport with one WebRTC peer connection
// per remote participant. A newcomer offers to every member already in the
// room; members answer. Negotiation travels over signaling.
package mesh

import (
	"errors"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/signaling"
)

const maxEarlyCandidates = 32

// Signaler is the part of the signaling client the mesh negotiates through.
type Signaler interface {
	SendMessage(msg *signaling.Message) error
}

// Option customises a Mesh.
type Option func(*Mesh)

// WithSettingEngine builds peer connections through a custom pion API.
func WithSettingEngine(se pion.SettingEngine) Option {
	return func(m *Mesh) { m.api = pion.NewAPI(pion.WithSettingEngine(se)) }
}

// WithLogger sets the mesh logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mesh) { m.log = l }
}

// Mesh fans payloads out to every connected peer.
type Mesh struct {
	localID string
	signal  Signaler
	config  pion.Configuration
	api     *pion.API
	log     *slog.Logger

	mu        sync.Mutex
	peers     map[string]*peer
	early     map[string][]pion.ICECandidateInit
	onMessage func([]byte)
	closed    bool
}

// New returns an empty mesh for localID.
func New(localID string, signal Signaler, ice ICEConfig, opts ...Option) *Mesh {
	m := &Mesh{
		localID: localID,
		signal:  signal,
		config:  ice.configuration(),
		api:     pion.NewAPI(),
		log:     slog.Default(),
		peers:   make(map[string]*peer),
		early:   make(map[string][]pion.ICECandidateInit),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ConnectPeers offers a connection to each id. Called by a newcomer with the
// room's existing members.
func (m *Mesh) ConnectPeers(ids []string) error {
	var errs []error
	for _, id := range ids {
		if id == m.localID {
			continue
		}
		if err := m.connect(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mesh) connect(id string) error {
	p, err := m.newPeer(id)
	if err != nil {
		return err
	}

	dc, err := createPoseChannel(p.pc)
	if err != nil {
		m.RemovePeer(id)
		return err
	}
	m.bindChannel(p, dc)

	offer, err := createOffer(p.pc)
	if err != nil {
		m.RemovePeer(id)
		return err
	}
	return m.signal.SendMessage(sdpSignal(id, offer))
}

// HandleSignal applies negotiation data from another participant. An offer
// from an unknown participant creates its peer connection.
func (m *Mesh) HandleSignal(from string, payload signaling.SignalPayload) error {
	m.mu.Lock()
	p := m.peers[from]
	m.mu.Unlock()

	switch {
	case payload.SDP != "" && payload.Type == "offer":
		if p == nil {
			var err error
			if p, err = m.newPeer(from); err != nil {
				return err
			}
		}
		answer, err := createAnswer(p.pc, pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: payload.SDP})
		if err != nil {
			return err
		}
		if err := p.remoteSet(); err != nil {
			return err
		}
		return m.signal.SendMessage(sdpSignal(from, answer))

	case payload.SDP != "" && payload.Type == "answer":
		if p == nil {
			return protocol.WrapError("handle signal", protocol.ErrRoutingMiss, from)
		}
		if err := p.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: payload.SDP}); err != nil {
			return protocol.NewError("set remote description", err)
		}
		return p.remoteSet()

	case len(payload.ICECandidate) > 0:
		ice, err := parseCandidate(payload.ICECandidate)
		if err != nil {
			return err
		}
		if p == nil {
			m.holdEarly(from, ice)
			return nil
		}
		return p.addCandidate(ice)
	}
	return protocol.WrapError("handle signal", protocol.ErrUnexpectedType, payload.Type)
}

func (m *Mesh) newPeer(id string) (*peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, protocol.TransportError("connect peer", protocol.ErrChannelClosed)
	}
	if old, ok := m.peers[id]; ok {
		old.pc.Close()
	}

	pc, err := m.api.NewPeerConnection(m.config)
	if err != nil {
		return nil, protocol.NewError("create peer connection", err)
	}
	// Candidates can overtake the offer they belong to.
	p := &peer{id: id, pc: pc, pending: m.early[id]}
	delete(m.early, id)

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		if err := m.signal.SendMessage(candidateSignal(id, c)); err != nil {
			m.log.Debug("mesh: candidate not sent", "peer", id, "error", err)
		}
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		m.log.Debug("mesh: connection state", "peer", id, "state", state.String())
		if state == pion.PeerConnectionStateFailed {
			p.open.Store(false)
		}
	})
	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != ChannelLabel {
			return
		}
		m.bindChannel(p, dc)
	})

	m.peers[id] = p
	return p, nil
}

// holdEarly keeps a candidate that arrived before its peer's offer.
func (m *Mesh) holdEarly(from string, c pion.ICECandidateInit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || len(m.early[from]) >= maxEarlyCandidates {
		return
	}
	m.early[from] = append(m.early[from], c)
}

func (m *Mesh) bindChannel(p *peer, dc *pion.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		p.open.Store(true)
		m.log.Info("mesh: pose channel open", "peer", p.id)
	})
	dc.OnClose(func() {
		p.open.Store(false)
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		m.mu.Lock()
		fn := m.onMessage
		m.mu.Unlock()
		if fn != nil {
			fn(msg.Data)
		}
	})
}

// RemovePeer closes the connection to id, if any.
func (m *Mesh) RemovePeer(id string) {
	m.mu.Lock()
	p, ok := m.peers[id]
	delete(m.peers, id)
	delete(m.early, id)
	m.mu.Unlock()

	if ok {
		p.open.Store(false)
		if err := p.pc.Close(); err != nil {
			m.log.Debug("mesh: close peer", "peer", id, "error", err)
		}
	}
}

// OpenPeers returns how many peers have an open pose channel.
func (m *Mesh) OpenPeers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.peers {
		if p.open.Load() {
			n++
		}
	}
	return n
}

// Send writes data to every open pose channel. Peers still negotiating are
// skipped.
func (m *Mesh) Send(data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return protocol.TransportError("mesh send", protocol.ErrChannelClosed)
	}
	targets := make([]*peer, 0, len(m.peers))
	for _, p := range m.peers {
		if p.open.Load() {
			targets = append(targets, p)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, p := range targets {
		p.mu.Lock()
		dc := p.dc
		p.mu.Unlock()
		if err := dc.Send(data); err != nil {
			errs = append(errs, protocol.WrapError("send", err, p.id))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return protocol.TransportError("mesh send", err)
	}
	return nil
}

func (m *Mesh) OnMessage(fn func([]byte)) {
	m.mu.Lock()
	m.onMessage = fn
	m.mu.Unlock()
}

// Close tears down every peer connection.
func (m *Mesh) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.onMessage = nil
	peers := m.peers
	m.peers = make(map[string]*peer)
	m.early = make(map[string][]pion.ICECandidateInit)
	m.mu.Unlock()

	var errs []error
	for _, p := range peers {
		if err := p.pc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
