package protocol

import (
	"encoding/json"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec names accepted by CodecFor.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec turns messages into self-contained envelopes and back.
type Codec interface {
	Name() string
	Encode(msg Message) ([]byte, error)
	// Decode returns Unknown (and no error) for well-formed envelopes with an
	// unrecognised tag, and an ErrParse error for anything malformed.
	Decode(data []byte) (Message, error)
}

// CodecFor returns the codec registered under name.
func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, WrapError("select codec", ErrUnknownCodec, name)
	}
}

// JSONCodec is the text wire format understood by browser peers.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Encode(msg Message) ([]byte, error) {
	env, err := toEnvelope(msg)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, NewError("marshal envelope", err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (Message, error) {
	return decodeWith(json.Unmarshal, data)
}

// MsgpackCodec is the compact binary wire format, same field names as JSON.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Encode(msg Message) ([]byte, error) {
	env, err := toEnvelope(msg)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(env)
	if err != nil {
		return nil, NewError("marshal envelope", err)
	}
	return data, nil
}

func (MsgpackCodec) Decode(data []byte) (Message, error) {
	return decodeWith(msgpack.Unmarshal, data)
}

func decodeWith(unmarshal func([]byte, any) error, data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, WrapError("decode", ErrParse, "empty payload")
	}

	var tag typeTag
	if err := unmarshal(data, &tag); err != nil {
		return nil, WrapError("decode", ErrParse, err.Error())
	}
	if tag.Type == "" {
		return nil, WrapError("decode", ErrParse, "missing type")
	}

	if !isKnown(tag.Type) {
		var sender struct {
			UserID string `json:"user_id" msgpack:"user_id"`
		}
		_ = unmarshal(data, &sender)
		return Unknown{Tag: tag.Type, SenderID: sender.UserID}, nil
	}

	var env Envelope
	if err := unmarshal(data, &env); err != nil {
		return nil, WrapError("decode", ErrParse, err.Error())
	}
	return fromEnvelope(env)
}
