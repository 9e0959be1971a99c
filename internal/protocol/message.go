// Package protocol defines the messages exchanged over a session data channel
// and the codecs that put them on the wire.
//
// Every message travels as a self-describing envelope whose "type" tag lets
// receivers tell message kinds apart on a shared channel. Tags this version does
// not know decode to Unknown and must be ignored, never rejected.
package protocol

import "github.com/BioHazard786/posecast/internal/pose"

// Message type tags.
const (
	TypePoseUpdate        = "pose_update"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
)

// Message is the closed set of decoded data channel messages plus Unknown.
type Message interface {
	Type() string
	Sender() string
}

// PoseUpdate carries one pose frame from SenderID.
type PoseUpdate struct {
	SenderID  string
	Pose      pose.Frame
	Timestamp int64
}

func (m PoseUpdate) Type() string   { return TypePoseUpdate }
func (m PoseUpdate) Sender() string { return m.SenderID }

// ParticipantJoined announces that UserID entered the session.
type ParticipantJoined struct {
	UserID    string
	Timestamp int64
}

func (m ParticipantJoined) Type() string   { return TypeParticipantJoined }
func (m ParticipantJoined) Sender() string { return m.UserID }

// ParticipantLeft announces that UserID left the session.
type ParticipantLeft struct {
	UserID    string
	Timestamp int64
}

func (m ParticipantLeft) Type() string   { return TypeParticipantLeft }
func (m ParticipantLeft) Sender() string { return m.UserID }

// Unknown is any well-formed envelope with a tag this version does not handle.
type Unknown struct {
	Tag      string
	SenderID string
}

func (m Unknown) Type() string   { return m.Tag }
func (m Unknown) Sender() string { return m.SenderID }

// Envelope is the wire shape shared by every message type.
type Envelope struct {
	Type      string      `json:"type" msgpack:"type"`
	UserID    string      `json:"user_id" msgpack:"user_id"`
	PoseData  *pose.Frame `json:"pose_data,omitempty" msgpack:"pose_data,omitempty"`
	Timestamp int64       `json:"timestamp" msgpack:"timestamp"`
}

// typeTag decodes only the discriminator so that unknown messages with
// arbitrary bodies never fail to parse.
type typeTag struct {
	Type string `json:"type" msgpack:"type"`
}

func toEnvelope(msg Message) (Envelope, error) {
	switch m := msg.(type) {
	case PoseUpdate:
		frame := m.Pose
		return Envelope{Type: TypePoseUpdate, UserID: m.SenderID, PoseData: &frame, Timestamp: m.Timestamp}, nil
	case *PoseUpdate:
		return toEnvelope(*m)
	case ParticipantJoined:
		return Envelope{Type: TypeParticipantJoined, UserID: m.UserID, Timestamp: m.Timestamp}, nil
	case ParticipantLeft:
		return Envelope{Type: TypeParticipantLeft, UserID: m.UserID, Timestamp: m.Timestamp}, nil
	default:
		return Envelope{}, WrapError("encode", ErrUnexpectedType, msg.Type())
	}
}

func fromEnvelope(env Envelope) (Message, error) {
	if env.UserID == "" {
		return nil, WrapError("decode", ErrParse, "missing user_id")
	}
	switch env.Type {
	case TypePoseUpdate:
		var frame pose.Frame
		if env.PoseData != nil {
			frame = *env.PoseData
		}
		if err := frame.Validate(); err != nil {
			return nil, WrapError("decode", ErrParse, err.Error())
		}
		return PoseUpdate{SenderID: env.UserID, Pose: frame, Timestamp: env.Timestamp}, nil
	case TypeParticipantJoined:
		return ParticipantJoined{UserID: env.UserID, Timestamp: env.Timestamp}, nil
	case TypeParticipantLeft:
		return ParticipantLeft{UserID: env.UserID, Timestamp: env.Timestamp}, nil
	default:
		return Unknown{Tag: env.Type, SenderID: env.UserID}, nil
	}
}

func isKnown(tag string) bool {
	switch tag {
	case TypePoseUpdate, TypeParticipantJoined, TypeParticipantLeft:
		return true
	}
	return false
}
