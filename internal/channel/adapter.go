// Package channel adapts a raw session data channel to typed pose messages.
//
// The adapter owns no pose state. Outbound messages are encoded with the
// configured codec and handed to the transport once, without retry. Inbound
// bytes are decoded and dispatched by message type to a Handler; anything
// malformed, unknown or echoed back from the local user is dropped and
// counted, never surfaced as an error.
package channel

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/BioHazard786/posecast/internal/pose"
	"github.com/BioHazard786/posecast/internal/protocol"
)

// Transport is the raw data channel a session connects to.
type Transport interface {
	Send(data []byte) error
	OnMessage(fn func(data []byte))
	Close() error
}

// Handler receives dispatched inbound messages. Calls arrive on the
// transport's goroutine.
type Handler interface {
	HandlePose(senderID string, frame pose.Frame, timestamp int64)
	HandleJoined(userID string)
	HandleLeft(userID string)
}

// Stats is a snapshot of adapter counters.
type Stats struct {
	Sent         uint64
	SendFailures uint64
	Received     uint64
	Dispatched   uint64
	ParseErrors  uint64
	UnknownTypes uint64
	SelfEchoes   uint64
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithCodec selects the wire codec. JSON is the default.
func WithCodec(c protocol.Codec) Option {
	return func(a *Adapter) { a.codec = c }
}

// WithLogger sets the adapter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// Adapter is the session channel adapter.
type Adapter struct {
	localID string
	codec   protocol.Codec
	handler Handler
	log     *slog.Logger

	mu        sync.RWMutex
	transport Transport
	closed    bool

	sent         atomic.Uint64
	sendFailures atomic.Uint64
	received     atomic.Uint64
	dispatched   atomic.Uint64
	parseErrors  atomic.Uint64
	unknownTypes atomic.Uint64
	selfEchoes   atomic.Uint64
}

// New wraps t for the local user localID. t may be nil, in which case every
// Send fails until Attach is called.
func New(t Transport, localID string, h Handler, opts ...Option) *Adapter {
	a := &Adapter{
		localID: localID,
		codec:   protocol.JSONCodec{},
		handler: h,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if t != nil {
		a.Attach(t)
	}
	return a
}

// Attach binds the adapter to t and starts receiving from it.
func (a *Adapter) Attach(t Transport) {
	a.mu.Lock()
	a.transport = t
	a.mu.Unlock()
	t.OnMessage(a.Receive)
}

// Send encodes msg and hands it to the transport.
func (a *Adapter) Send(msg protocol.Message) error {
	a.mu.RLock()
	t, closed := a.transport, a.closed
	a.mu.RUnlock()

	if closed || t == nil {
		a.sendFailures.Add(1)
		return protocol.TransportError("send", protocol.ErrChannelClosed)
	}

	data, err := a.codec.Encode(msg)
	if err != nil {
		a.sendFailures.Add(1)
		return err
	}
	if err := t.Send(data); err != nil {
		a.sendFailures.Add(1)
		if errors.Is(err, protocol.ErrTransport) {
			return err
		}
		return protocol.TransportError("send", err)
	}
	a.sent.Add(1)
	return nil
}

// Receive decodes one inbound payload and dispatches it.
func (a *Adapter) Receive(data []byte) {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return
	}
	a.received.Add(1)

	msg, err := a.codec.Decode(data)
	if err != nil {
		a.parseErrors.Add(1)
		a.log.Debug("channel: dropping malformed message", "bytes", len(data), "error", err)
		return
	}
	if msg.Sender() == a.localID {
		a.selfEchoes.Add(1)
		return
	}

	switch m := msg.(type) {
	case protocol.PoseUpdate:
		a.handler.HandlePose(m.SenderID, m.Pose, m.Timestamp)
	case protocol.ParticipantJoined:
		a.handler.HandleJoined(m.UserID)
	case protocol.ParticipantLeft:
		a.handler.HandleLeft(m.UserID)
	default:
		a.unknownTypes.Add(1)
		a.log.Debug("channel: ignoring message", "type", msg.Type(), "sender", msg.Sender())
		return
	}
	a.dispatched.Add(1)
}

// Close closes the underlying transport. Later calls are no-ops.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	t := a.transport
	a.mu.Unlock()

	if t == nil {
		return nil
	}
	if err := t.Close(); err != nil {
		return protocol.TransportError("close", err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (a *Adapter) Closed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

// Codec returns the wire codec in use.
func (a *Adapter) Codec() protocol.Codec {
	return a.codec
}

// Stats returns a snapshot of the adapter counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Sent:         a.sent.Load(),
		SendFailures: a.sendFailures.Load(),
		Received:     a.received.Load(),
		Dispatched:   a.dispatched.Load(),
		ParseErrors:  a.parseErrors.Load(),
		UnknownTypes: a.unknownTypes.Load(),
		SelfEchoes:   a.selfEchoes.Load(),
	}
}
