package hub

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/posecast/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Room for SDP and a relayed
	// pose envelope.
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// Client is one participant's WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	RoomID string
	UserID string

	// send is drained by WritePump. Only the hub writes to or closes it.
	send chan *signaling.Message
}

// NewClient wraps conn for userID in roomID. Call Serve to attach it.
func NewClient(h *Hub, conn *websocket.Conn, roomID, userID string) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		RoomID: roomID,
		UserID: userID,
		send:   make(chan *signaling.Message, sendBuffer),
	}
}

// Serve registers the client and runs its pumps until the connection ends.
func (c *Client) Serve() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		c.conn.Close()
		return
	}
	go c.WritePump()
	c.ReadPump()
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("hub: read failed", "room", c.RoomID, "user", c.UserID, "error", err)
			}
			return
		}

		select {
		case c.hub.inbound <- inbound{client: c, msg: &msg}:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.log.Debug("hub: write failed", "user", c.UserID, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func logClient(c *Client) slog.Attr {
	return slog.Group("client", "room", c.RoomID, "user", c.UserID)
}
