package signaling

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
)

// Signal is a negotiation payload from another participant.
type Signal struct {
	From    string
	Payload SignalPayload
}

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client *Client

	Members    chan []string
	PeerJoined chan string
	PeerLeft   chan string
	Signal     chan *Signal
	Data       chan []byte
	Error      chan string

	disconnected chan struct{}
	dropped      atomic.Uint64
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:       client,
		Members:      make(chan []string, 1),
		PeerJoined:   make(chan string, 16),
		PeerLeft:     make(chan string, 16),
		Signal:       make(chan *Signal, 64),
		Data:         make(chan []byte, 64),
		Error:        make(chan string, 4),
		disconnected: make(chan struct{}),
	}
}

// Start routes messages until the connection ends, then closes Disconnected.
func (h *Handler) Start() {
	defer close(h.disconnected)

	for msg := range h.client.Incoming() {
		ok := true
		switch msg.Type {
		case MessageTypeMembers:
			ok = forward(h, h.Members, msg.Members)

		case MessageTypePeerJoined:
			ok = forward(h, h.PeerJoined, msg.UserID)

		case MessageTypePeerLeft:
			ok = forward(h, h.PeerLeft, msg.UserID)

		case MessageTypeSignal:
			var payload SignalPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				slog.Debug("signaling: bad signal payload", "from", msg.UserID, "error", err)
				continue
			}
			ok = forward(h, h.Signal, &Signal{From: msg.UserID, Payload: payload})

		case MessageTypeData:
			// Pose traffic is lossy by nature; never let it back up control
			// messages.
			select {
			case h.Data <- msg.Data:
			default:
				h.dropped.Add(1)
			}

		case MessageTypeError:
			ok = forward(h, h.Error, msg.Error)

		default:
			slog.Debug("signaling: unknown message type", "type", msg.Type)
		}
		if !ok {
			return
		}
	}
}

// forward blocks until v is delivered or the client is closed.
func forward[T any](h *Handler, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.client.done:
		return false
	}
}

// Disconnected is closed once the server connection has ended.
func (h *Handler) Disconnected() <-chan struct{} {
	return h.disconnected
}

// DroppedData returns how many relayed payloads were discarded because
// nobody was reading them fast enough.
func (h *Handler) DroppedData() uint64 {
	return h.dropped.Load()
}
