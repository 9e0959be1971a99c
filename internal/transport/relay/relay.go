// Package relay is a data channel transport that routes every payload through
// the session server's WebSocket. The server fans each payload out to the
// whole room, sender included.
package relay

import (
	"sync"

	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/signaling"
)

// Sender is the part of the signaling client the relay writes through.
type Sender interface {
	SendMessage(msg *signaling.Message) error
}

// Transport relays data channel payloads over signaling.
type Transport struct {
	client Sender

	mu        sync.Mutex
	onMessage func([]byte)
	closed    bool
	done      chan struct{}
	wg        sync.WaitGroup
}

// New starts delivering payloads from data, usually Handler.Data, and sends
// through client.
func New(client Sender, data <-chan []byte) *Transport {
	t := &Transport{client: client, done: make(chan struct{})}
	t.wg.Add(1)
	go t.pump(data)
	return t
}

func (t *Transport) pump(data <-chan []byte) {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case payload, ok := <-data:
			if !ok {
				return
			}
			t.mu.Lock()
			fn := t.onMessage
			t.mu.Unlock()
			if fn != nil {
				fn(payload)
			}
		}
	}
}

func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return protocol.TransportError("relay send", protocol.ErrChannelClosed)
	}
	return t.client.SendMessage(&signaling.Message{Type: signaling.MessageTypeData, Data: data})
}

func (t *Transport) OnMessage(fn func([]byte)) {
	t.mu.Lock()
	t.onMessage = fn
	t.mu.Unlock()
}

// Close stops delivery. The signaling client stays open; its owner closes it.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.onMessage = nil
	close(t.done)
	t.mu.Unlock()

	t.wg.Wait()
	return nil
}
