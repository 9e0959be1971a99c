// Package hub is the server side of a session: it owns every room, admits
// participants, relays WebRTC negotiation between them and fans relayed data
// channel payloads out to the whole room.
//
// All room state lives in the single goroutine running Run. HTTP handlers and
// connection pumps talk to it only through channels.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/signaling"
)

// Defaults applied when an option is zero.
const (
	DefaultMaxParticipants = 8
	DefaultRoomTTL         = 10 * time.Minute
)

// ErrStopped is returned by API calls made after Run has returned.
var ErrStopped = errors.New("hub stopped")

type inbound struct {
	client *Client
	msg    *signaling.Message
}

type requestKind int

const (
	requestCreate requestKind = iota
	requestJoin
)

type request struct {
	kind   requestKind
	roomID string
	userID string
	reply  chan result
}

type result struct {
	roomID string
	err    error
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Rooms     int64
	Clients   int64
	Relayed   uint64
	Dropped   uint64
	Signalled uint64
}

// Option customises a Hub.
type Option func(*Hub)

// WithMaxParticipants caps how many users a room admits.
func WithMaxParticipants(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxParticipants = n
		}
	}
}

// WithRoomTTL sets how long a room with no connected member survives.
func WithRoomTTL(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.roomTTL = d
		}
	}
}

// WithLogger sets the hub's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// Hub manages all active rooms and clients.
type Hub struct {
	rooms   map[string]*Room
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	requests   chan request
	done       chan struct{}

	maxParticipants int
	roomTTL         time.Duration
	log             *slog.Logger
	now             func() time.Time

	roomCount   atomic.Int64
	clientCount atomic.Int64
	relayed     atomic.Uint64
	dropped     atomic.Uint64
	signalled   atomic.Uint64
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:           make(map[string]*Room),
		clients:         make(map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		inbound:         make(chan inbound, 64),
		requests:        make(chan request),
		done:            make(chan struct{}),
		maxParticipants: DefaultMaxParticipants,
		roomTTL:         DefaultRoomTTL,
		log:             slog.Default(),
		now:             time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// CreateRoom allocates a new room and returns its id. The creator still has
// to join it like everyone else.
func (h *Hub) CreateRoom(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", protocol.ErrMissingUserID
	}
	res, err := h.call(ctx, request{kind: requestCreate, userID: userID})
	return res.roomID, err
}

// JoinRoom admits userID to roomID.
func (h *Hub) JoinRoom(ctx context.Context, roomID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return protocol.ErrMissingUserID
	}
	_, err := h.call(ctx, request{kind: requestJoin, roomID: roomID, userID: userID})
	return err
}

func (h *Hub) call(ctx context.Context, req request) (result, error) {
	req.reply = make(chan result, 1)
	select {
	case h.requests <- req:
	case <-h.done:
		return result{}, ErrStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res, res.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Stats returns a snapshot of hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Rooms:     h.roomCount.Load(),
		Clients:   h.clientCount.Load(),
		Relayed:   h.relayed.Load(),
		Dropped:   h.dropped.Load(),
		Signalled: h.signalled.Load(),
	}
}

// Run is the hub's processing loop. It owns every room and client until ctx
// is cancelled.
func (h *Hub) Run(ctx context.Context) {
	sweep := time.NewTicker(h.sweepInterval())
	defer func() {
		sweep.Stop()
		close(h.done)
		for c := range h.clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("hub: stopping", "rooms", len(h.rooms), "clients", len(h.clients))
			return

		case req := <-h.requests:
			req.reply <- h.handleRequest(req)

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case in := <-h.inbound:
			h.handleInbound(in.client, in.msg)

		case <-sweep.C:
			h.expireRooms()
		}
	}
}

func (h *Hub) sweepInterval() time.Duration {
	d := h.roomTTL / 4
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

func (h *Hub) handleRequest(req request) result {
	switch req.kind {
	case requestCreate:
		id := h.generateRoomID()
		h.rooms[id] = newRoom(id, h.now())
		h.roomCount.Store(int64(len(h.rooms)))
		h.log.Info("hub: room created", "room", id, "by", req.userID)
		return result{roomID: id}

	case requestJoin:
		room, ok := h.rooms[req.roomID]
		if !ok {
			return result{err: protocol.WrapError("join", protocol.ErrRoomNotFound, req.roomID)}
		}
		if _, connected := room.members[req.userID]; connected {
			return result{err: protocol.WrapError("join", protocol.ErrDuplicateUser, req.userID)}
		}
		if !room.isAdmitted(req.userID) && len(room.admitted) >= h.maxParticipants {
			return result{err: protocol.WrapError("join", protocol.ErrRoomFull, req.roomID)}
		}
		room.admitted[req.userID] = h.now()
		h.log.Info("hub: participant admitted", "room", room.ID, "user", req.userID, "admitted", len(room.admitted))
		return result{roomID: room.ID}
	}
	return result{err: errors.New("unknown request")}
}

// reject tells c why it cannot attach and closes it. c is never tracked.
func (h *Hub) reject(c *Client, err error) {
	h.log.Warn("hub: connection rejected", logClient(c), "error", err)
	c.send <- &signaling.Message{Type: signaling.MessageTypeError, RoomID: c.RoomID, Error: err.Error()}
	close(c.send)
}

func (h *Hub) handleRegister(c *Client) {
	room, ok := h.rooms[c.RoomID]
	switch {
	case !ok:
		h.reject(c, protocol.WrapError("connect", protocol.ErrRoomNotFound, c.RoomID))
		return
	case !room.isAdmitted(c.UserID):
		h.reject(c, protocol.WrapError("connect", protocol.ErrNotJoined, c.UserID))
		return
	case room.members[c.UserID] != nil:
		h.reject(c, protocol.WrapError("connect", protocol.ErrDuplicateUser, c.UserID))
		return
	}

	existing := room.memberIDs("")
	room.members[c.UserID] = c
	h.clients[c] = true
	h.clientCount.Store(int64(len(h.clients)))

	h.deliver(c, &signaling.Message{Type: signaling.MessageTypeMembers, RoomID: room.ID, UserID: c.UserID, Members: existing})
	for _, id := range existing {
		h.deliver(room.members[id], &signaling.Message{Type: signaling.MessageTypePeerJoined, RoomID: room.ID, UserID: c.UserID})
	}
	h.log.Info("hub: participant connected", logClient(c), "members", len(room.members))
}

func (h *Hub) handleUnregister(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.clientCount.Store(int64(len(h.clients)))

	room, ok := h.rooms[c.RoomID]
	if !ok || room.members[c.UserID] != c {
		return
	}
	delete(room.members, c.UserID)
	delete(room.admitted, c.UserID)

	if room.empty() {
		delete(h.rooms, room.ID)
		h.roomCount.Store(int64(len(h.rooms)))
		h.log.Info("hub: room deleted", "room", room.ID)
		return
	}

	h.log.Info("hub: participant left", logClient(c), "members", len(room.members))
	for _, m := range room.members {
		h.deliver(m, &signaling.Message{Type: signaling.MessageTypePeerLeft, RoomID: room.ID, UserID: c.UserID})
	}
}

func (h *Hub) handleInbound(c *Client, msg *signaling.Message) {
	if !h.clients[c] {
		return
	}
	room, ok := h.rooms[c.RoomID]
	if !ok {
		h.deliver(c, &signaling.Message{Type: signaling.MessageTypeError, Error: protocol.ErrRoomNotFound.Error()})
		return
	}

	// The hub stamps the origin; clients cannot speak for someone else.
	msg.UserID = c.UserID
	msg.RoomID = room.ID

	switch msg.Type {
	case signaling.MessageTypeSignal:
		target, ok := room.members[msg.To]
		if !ok {
			h.log.Debug("hub: signal target not connected", logClient(c), "to", msg.To)
			h.deliver(c, &signaling.Message{Type: signaling.MessageTypeError, RoomID: room.ID, Error: "peer not connected: " + msg.To})
			return
		}
		h.signalled.Add(1)
		h.deliver(target, msg)

	case signaling.MessageTypeData:
		for _, m := range room.members {
			h.deliver(m, msg)
		}
		h.relayed.Add(1)

	default:
		h.log.Debug("hub: unknown message type", logClient(c), "type", msg.Type)
	}
}

// deliver queues msg for c without blocking the hub. A client that cannot
// keep up loses messages rather than stalling the room.
func (h *Hub) deliver(c *Client, msg *signaling.Message) {
	select {
	case c.send <- msg:
	default:
		h.dropped.Add(1)
		h.log.Debug("hub: client buffer full, message dropped", logClient(c), "type", msg.Type)
	}
}

// expireRooms deletes rooms with no connected member once they are older
// than the room TTL. Rooms that had members are already gone: the last
// member leaving deletes them. Admissions that never attached a WebSocket
// within the TTL are revoked so they stop counting against the room limit.
func (h *Hub) expireRooms() {
	cutoff := h.now().Add(-h.roomTTL)
	for id, room := range h.rooms {
		if room.empty() && room.CreatedAt.Before(cutoff) {
			delete(h.rooms, id)
			h.log.Info("hub: room expired", "room", id, "admitted", len(room.admitted))
			continue
		}
		for user, at := range room.admitted {
			if _, connected := room.members[user]; !connected && at.Before(cutoff) {
				delete(room.admitted, user)
				h.log.Info("hub: admission expired", "room", id, "user", user)
			}
		}
	}
	h.roomCount.Store(int64(len(h.rooms)))
}

// generateRoomID creates a random, memorable room ID: four words from four
// different lists, e.g. "spin-tango-otter-amber".
func (h *Hub) generateRoomID() string {
	for {
		picked := make([]string, 0, 4)
		used := make(map[int]bool)
		for len(picked) < 4 {
			li := randomIndex(len(wordLists))
			if used[li] {
				continue
			}
			used[li] = true
			list := wordLists[li]
			picked = append(picked, list[randomIndex(len(list))])
		}

		id := strings.Join(picked, "-")
		if _, ok := h.rooms[id]; !ok {
			return id
		}
	}
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic("hub: crypto/rand failed: " + err.Error())
	}
	return int(n.Int64())
}
