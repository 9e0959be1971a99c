package channel

import (
	"sync"

	"github.com/BioHazard786/posecast/internal/protocol"
)

// MemoryBus is an in-process broadcast channel: every payload sent by any
// endpoint is delivered to every open endpoint, the sender included. It
// behaves like the relay transport without a server.
type MemoryBus struct {
	mu        sync.Mutex
	endpoints map[*memoryEndpoint]struct{}
}

// NewMemoryBus returns an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{endpoints: make(map[*memoryEndpoint]struct{})}
}

// Join opens a new endpoint on the bus.
func (b *MemoryBus) Join() Transport {
	e := &memoryEndpoint{bus: b}
	b.mu.Lock()
	b.endpoints[e] = struct{}{}
	b.mu.Unlock()
	return e
}

func (b *MemoryBus) deliver(data []byte) {
	b.mu.Lock()
	targets := make([]*memoryEndpoint, 0, len(b.endpoints))
	for e := range b.endpoints {
		targets = append(targets, e)
	}
	b.mu.Unlock()

	for _, e := range targets {
		e.mu.Lock()
		fn := e.onMessage
		e.mu.Unlock()
		if fn != nil {
			fn(append([]byte(nil), data...))
		}
	}
}

type memoryEndpoint struct {
	bus *MemoryBus

	mu        sync.Mutex
	onMessage func([]byte)
	closed    bool
}

func (e *memoryEndpoint) Send(data []byte) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return protocol.TransportError("memory send", protocol.ErrChannelClosed)
	}
	e.bus.deliver(data)
	return nil
}

func (e *memoryEndpoint) OnMessage(fn func([]byte)) {
	e.mu.Lock()
	e.onMessage = fn
	e.mu.Unlock()
}

func (e *memoryEndpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.onMessage = nil
	e.mu.Unlock()

	e.bus.mu.Lock()
	delete(e.bus.endpoints, e)
	e.bus.mu.Unlock()
	return nil
}
