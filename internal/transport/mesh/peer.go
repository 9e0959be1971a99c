package mesh

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/signaling"
)

// ChannelLabel names the pose data channel.
const ChannelLabel = "pose"

// ICEConfig lists the ICE servers peers gather candidates against.
type ICEConfig struct {
	STUNServers []string
	TURNServers []string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool
}

func (c ICEConfig) configuration() pion.Configuration {
	var servers []pion.ICEServer
	if len(c.STUNServers) > 0 {
		servers = append(servers, pion.ICEServer{URLs: c.STUNServers})
	}
	if len(c.TURNServers) > 0 {
		servers = append(servers, pion.ICEServer{
			URLs:       c.TURNServers,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}

	policy := pion.ICETransportPolicyAll
	if len(c.TURNServers) > 0 && (c.ForceRelay || ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}
	return pion.Configuration{ICEServers: servers, ICETransportPolicy: policy}
}

// peer is the connection to one remote participant.
type peer struct {
	id string
	pc *pion.PeerConnection

	mu      sync.Mutex
	dc      *pion.DataChannel
	pending []pion.ICECandidateInit
	remote  bool

	open atomic.Bool
}

// createPoseChannel opens the lossy pose channel: unordered and never
// retransmitted, so a late pose is dropped instead of delaying newer ones.
func createPoseChannel(pc *pion.PeerConnection) (*pion.DataChannel, error) {
	ordered := false
	maxRetransmits := uint16(0)

	dc, err := pc.CreateDataChannel(ChannelLabel, &pion.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		return nil, protocol.NewError("create data channel", err)
	}
	return dc, nil
}

func createOffer(pc *pion.PeerConnection) (*pion.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, protocol.NewError("create offer", err)
	}
	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, protocol.NewError("set local description", err)
	}
	return pc.LocalDescription(), nil
}

func createAnswer(pc *pion.PeerConnection, offer pion.SessionDescription) (*pion.SessionDescription, error) {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, protocol.NewError("set remote description", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, protocol.NewError("create answer", err)
	}
	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, protocol.NewError("set local description", err)
	}
	return pc.LocalDescription(), nil
}

// addCandidate applies c, or holds it until the remote description is set.
func (p *peer) addCandidate(c pion.ICECandidateInit) error {
	p.mu.Lock()
	if !p.remote {
		p.pending = append(p.pending, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.pc.AddICECandidate(c); err != nil {
		return protocol.NewError("add ICE candidate", err)
	}
	return nil
}

// remoteSet marks the remote description applied and flushes held candidates.
func (p *peer) remoteSet() error {
	p.mu.Lock()
	p.remote = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			return protocol.NewError("add ICE candidate", err)
		}
	}
	return nil
}

func parseCandidate(raw json.RawMessage) (pion.ICECandidateInit, error) {
	var ice pion.ICECandidateInit
	if err := json.Unmarshal(raw, &ice); err != nil {
		return ice, protocol.NewError("parse ICE candidate", err)
	}
	return ice, nil
}

func sdpSignal(to string, desc *pion.SessionDescription) *signaling.Message {
	payload, _ := json.Marshal(signaling.SignalPayload{Type: desc.Type.String(), SDP: desc.SDP})
	return &signaling.Message{Type: signaling.MessageTypeSignal, To: to, Payload: payload}
}

func candidateSignal(to string, c *pion.ICECandidate) *signaling.Message {
	ice, _ := json.Marshal(c.ToJSON())
	payload, _ := json.Marshal(signaling.SignalPayload{ICECandidate: ice})
	return &signaling.Message{Type: signaling.MessageTypeSignal, To: to, Payload: payload}
}
