package mesh

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/signaling"
)

// switchboard routes signal messages between meshes in send order, the way
// the hub does over one WebSocket per participant.
type switchboard struct {
	mu     sync.Mutex
	meshes map[string]*Mesh
	queue  chan routed
	errs   chan error
}

type routed struct {
	from string
	msg  *signaling.Message
}

func newSwitchboard() *switchboard {
	sb := &switchboard{
		meshes: make(map[string]*Mesh),
		queue:  make(chan routed, 256),
		errs:   make(chan error, 256),
	}
	go func() {
		for r := range sb.queue {
			sb.mu.Lock()
			dst := sb.meshes[r.msg.To]
			sb.mu.Unlock()
			if dst == nil {
				continue
			}
			var payload signaling.SignalPayload
			if err := json.Unmarshal(r.msg.Payload, &payload); err != nil {
				sb.errs <- err
				continue
			}
			if err := dst.HandleSignal(r.from, payload); err != nil {
				sb.errs <- err
			}
		}
	}()
	return sb
}

type endpoint struct {
	sb *switchboard
	id string
}

func (e endpoint) SendMessage(msg *signaling.Message) error {
	e.sb.queue <- routed{from: e.id, msg: msg}
	return nil
}

func (sb *switchboard) add(t *testing.T, id string) *Mesh {
	t.Helper()
	var se pion.SettingEngine
	se.SetIncludeLoopbackCandidate(true)
	se.SetNetworkTypes([]pion.NetworkType{pion.NetworkTypeUDP4})

	m := New(id, endpoint{sb: sb, id: id}, ICEConfig{}, WithSettingEngine(se))
	sb.mu.Lock()
	sb.meshes[id] = m
	sb.mu.Unlock()
	t.Cleanup(func() { m.Close() })
	return m
}

func waitOpen(t *testing.T, m *Mesh, want int) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for m.OpenPeers() < want {
		if time.Now().After(deadline) {
			t.Skip("data channels did not open; no usable local network")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestMeshExchangesPayloads(t *testing.T) {
	sb := newSwitchboard()
	alice := sb.add(t, "alice")
	bob := sb.add(t, "bob")

	got := make(chan string, 4)
	bob.OnMessage(func(b []byte) { got <- "bob:" + string(b) })
	alice.OnMessage(func(b []byte) { got <- "alice:" + string(b) })

	// bob arrives after alice and offers to the existing member.
	if err := bob.ConnectPeers([]string{"alice", "bob"}); err != nil {
		t.Fatal(err)
	}
	waitOpen(t, bob, 1)
	waitOpen(t, alice, 1)

	if err := alice.Send([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := bob.Send([]byte("hi")); err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	timeout := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case s := <-got:
			seen[s] = true
		case <-timeout:
			t.Fatalf("received only %v", seen)
		}
	}
	if !seen["bob:hello"] || !seen["alice:hi"] {
		t.Fatalf("unexpected deliveries %v", seen)
	}

	bob.RemovePeer("alice")
	if n := bob.OpenPeers(); n != 0 {
		t.Fatalf("open peers after remove = %d", n)
	}
}

func TestMeshSendWithoutPeers(t *testing.T) {
	m := New("solo", endpoint{sb: newSwitchboard(), id: "solo"}, ICEConfig{})
	if err := m.Send([]byte("x")); err != nil {
		t.Fatalf("send with no peers: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Send([]byte("x")); !errors.Is(err, protocol.ErrTransport) {
		t.Fatalf("send after close: %v", err)
	}
	if err := m.ConnectPeers([]string{"other"}); !errors.Is(err, protocol.ErrChannelClosed) {
		t.Fatalf("connect after close: %v", err)
	}
}

func TestMeshRejectsStrayAnswer(t *testing.T) {
	m := New("solo", endpoint{sb: newSwitchboard(), id: "solo"}, ICEConfig{})
	defer m.Close()

	err := m.HandleSignal("ghost", signaling.SignalPayload{Type: "answer", SDP: "v=0"})
	if !errors.Is(err, protocol.ErrRoutingMiss) {
		t.Fatalf("answer from unknown peer: %v", err)
	}
	if err := m.HandleSignal("ghost", signaling.SignalPayload{}); !errors.Is(err, protocol.ErrUnexpectedType) {
		t.Fatalf("empty signal: %v", err)
	}
	// A candidate ahead of its offer is held, not rejected.
	cand := []byte(`{"candidate":"candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host"}`)
	if err := m.HandleSignal("ghost", signaling.SignalPayload{ICECandidate: cand}); err != nil {
		t.Fatalf("early candidate: %v", err)
	}
}

func TestICEConfiguration(t *testing.T) {
	cfg := ICEConfig{STUNServers: []string{"stun:stun.example.org:3478"}}.configuration()
	if len(cfg.ICEServers) != 1 || cfg.ICETransportPolicy != pion.ICETransportPolicyAll {
		t.Fatalf("stun only: %+v", cfg)
	}

	cfg = ICEConfig{
		TURNServers: []string{"turn:turn.example.org:3478?transport=udp"},
		TURNUser:    "u",
		TURNPass:    "p",
		ForceRelay:  true,
	}.configuration()
	if cfg.ICETransportPolicy != pion.ICETransportPolicyRelay {
		t.Fatalf("forced relay policy = %v", cfg.ICETransportPolicy)
	}
	if cfg.ICEServers[0].Username != "u" {
		t.Fatalf("turn credentials lost: %+v", cfg.ICEServers[0])
	}
}

func TestTunnelHeuristics(t *testing.T) {
	for _, tc := range []struct {
		name string
		want bool
	}{
		{"wg0", true},
		{"utun3", true},
		{"Tailscale", false},
		{"eth0", false},
		{"PPP1", true},
	} {
		if got := looksLikeTunnel(tc.name); got != tc.want {
			t.Errorf("looksLikeTunnel(%q) = %v", tc.name, got)
		}
	}

	for _, tc := range []struct {
		addr net.Addr
		want bool
	}{
		{&net.IPNet{IP: net.ParseIP("100.101.1.2"), Mask: net.CIDRMask(32, 32)}, true},
		{&net.IPAddr{IP: net.ParseIP("100.128.0.1")}, false},
		{&net.IPNet{IP: net.ParseIP("192.168.1.4"), Mask: net.CIDRMask(24, 32)}, false},
		{&net.UnixAddr{Name: "/tmp/x"}, false},
	} {
		if got := inCGNAT(tc.addr); got != tc.want {
			t.Errorf("inCGNAT(%v) = %v", tc.addr, got)
		}
	}
}
