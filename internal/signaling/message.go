// Package signaling carries session control traffic over a WebSocket: room
// membership notifications, WebRTC negotiation between peers, and relayed
// data channel payloads for clients that cannot reach each other directly.
package signaling

import "encoding/json"

// Message is the single frame shape used in both directions between a
// participant and the hub.
type Message struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	To      string          `json:"to,omitempty"`
	Members []string        `json:"members,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Data    []byte          `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Message type constants.
const (
	// Client to server.
	MessageTypeSignal = "signal"
	MessageTypeData   = "data"

	// Server to client. Signal and data are relayed with UserID set to the
	// originating participant.
	MessageTypeMembers    = "members"
	MessageTypePeerJoined = "peer_joined"
	MessageTypePeerLeft   = "peer_left"
	MessageTypeError      = "error"
)

// SignalPayload is the WebRTC negotiation data carried by a signal message:
// an SDP offer/answer or one ICE candidate.
type SignalPayload struct {
	Type         string          `json:"type,omitempty"`
	SDP          string          `json:"sdp,omitempty"`
	ICECandidate json.RawMessage `json:"ice_candidate,omitempty"`
}
