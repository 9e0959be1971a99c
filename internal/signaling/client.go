package signaling

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/posecast/internal/netdns"
	"github.com/BioHazard786/posecast/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the session server.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	resolver  *netdns.Resolver

	incoming chan *Message
	outgoing chan *Message
	done     chan struct{}

	// dead is closed when either pump stops; nothing drains outgoing after.
	dead     chan struct{}
	deadOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for the WebSocket endpoint at serverURL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		resolver:  netdns.New(),
		incoming:  make(chan *Message, 64),
		outgoing:  make(chan *Message, 64),
		done:      make(chan struct{}),
		dead:      make(chan struct{}),
	}
}

// Connect dials the server as userID in roomID and starts the pumps.
func (c *Client) Connect(ctx context.Context, roomID, userID string) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("room_id", roomID)
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		NetDialContext:   c.resolver.DialContext,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.markDead()
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.markDead()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// SendMessage queues msg for the server. It fails once the client is closed.
func (c *Client) SendMessage(msg *Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return protocol.TransportError("signaling send", protocol.ErrChannelClosed)
	}

	select {
	case <-c.dead:
		return protocol.TransportError("signaling send", protocol.ErrChannelClosed)
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return protocol.TransportError("signaling send", protocol.ErrChannelClosed)
	case <-c.dead:
		return protocol.TransportError("signaling send", protocol.ErrChannelClosed)
	}
}

func (c *Client) markDead() {
	c.deadOnce.Do(func() { close(c.dead) })
}

// Incoming returns the channel for receiving messages. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
