package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/posecast/internal/hub"
	"github.com/BioHazard786/posecast/internal/signaling"
)

func newTestServer(t *testing.T, opts ...hub.Option) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.NewHub(append([]hub.Option{hub.WithLogger(logger)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	ts := httptest.NewServer(New(h, logger).Router())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts
}

func post(t *testing.T, ts *httptest.Server, path string, body any) (int, Response) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp.StatusCode, out
}

func createAndJoin(t *testing.T, ts *httptest.Server, users ...string) string {
	t.Helper()
	code, res := post(t, ts, "/api/session/create", CreateRequest{UserID: users[0]})
	if code != http.StatusOK || !res.Success || res.RoomID == "" {
		t.Fatalf("create: %d %+v", code, res)
	}
	for _, u := range users {
		code, jr := post(t, ts, "/api/session/join", JoinRequest{RoomID: res.RoomID, UserID: u})
		if code != http.StatusOK || !jr.Success {
			t.Fatalf("join %s: %d %+v", u, code, jr)
		}
	}
	return res.RoomID
}

func dial(t *testing.T, ts *httptest.Server, roomID, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + url.Values{"room_id": {roomID}, "user_id": {userID}}.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) signaling.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg signaling.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestCreateJoinConnect(t *testing.T) {
	ts := newTestServer(t)
	room := createAndJoin(t, ts, "alice", "bob")

	if parts := strings.Split(room, "-"); len(parts) != 4 {
		t.Fatalf("room id %q is not four words", room)
	}

	a := dial(t, ts, room, "alice")
	if m := read(t, a); m.Type != signaling.MessageTypeMembers || len(m.Members) != 0 {
		t.Fatalf("alice first message = %+v", m)
	}

	b := dial(t, ts, room, "bob")
	if m := read(t, b); m.Type != signaling.MessageTypeMembers || len(m.Members) != 1 || m.Members[0] != "alice" {
		t.Fatalf("bob first message = %+v", m)
	}
	if m := read(t, a); m.Type != signaling.MessageTypePeerJoined || m.UserID != "bob" {
		t.Fatalf("alice notification = %+v", m)
	}

	// Relay echoes to every member, sender included, stamped with the origin.
	if err := b.WriteJSON(signaling.Message{Type: signaling.MessageTypeData, UserID: "mallory", Data: []byte(`{"type":"pose_update"}`)}); err != nil {
		t.Fatal(err)
	}
	for name, c := range map[string]*websocket.Conn{"alice": a, "bob": b} {
		m := read(t, c)
		if m.Type != signaling.MessageTypeData || m.UserID != "bob" || string(m.Data) != `{"type":"pose_update"}` {
			t.Fatalf("%s got %+v", name, m)
		}
	}

	// Signals reach only their target.
	if err := a.WriteJSON(signaling.Message{Type: signaling.MessageTypeSignal, To: "bob", Payload: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)}); err != nil {
		t.Fatal(err)
	}
	if m := read(t, b); m.Type != signaling.MessageTypeSignal || m.UserID != "alice" {
		t.Fatalf("bob signal = %+v", m)
	}

	b.Close()
	if m := read(t, a); m.Type != signaling.MessageTypePeerLeft || m.UserID != "bob" {
		t.Fatalf("alice leave notification = %+v", m)
	}
}

func TestJoinErrors(t *testing.T) {
	ts := newTestServer(t, hub.WithMaxParticipants(2))

	code, res := post(t, ts, "/api/session/join", JoinRequest{RoomID: "no-such-room-here", UserID: "alice"})
	if code != http.StatusNotFound || res.Success || res.Error == "" {
		t.Fatalf("unknown room: %d %+v", code, res)
	}

	room := createAndJoin(t, ts, "alice", "bob")
	code, res = post(t, ts, "/api/session/join", JoinRequest{RoomID: room, UserID: "carol"})
	if code != http.StatusConflict || res.Success {
		t.Fatalf("full room: %d %+v", code, res)
	}

	a := dial(t, ts, room, "alice")
	read(t, a)
	code, res = post(t, ts, "/api/session/join", JoinRequest{RoomID: room, UserID: "alice"})
	if code != http.StatusConflict || res.Success {
		t.Fatalf("duplicate user: %d %+v", code, res)
	}

	// Rejoining before connecting is allowed.
	if code, res := post(t, ts, "/api/session/join", JoinRequest{RoomID: room, UserID: "bob"}); code != http.StatusOK || !res.Success {
		t.Fatalf("rejoin: %d %+v", code, res)
	}

	code, res = post(t, ts, "/api/session/create", CreateRequest{})
	if code != http.StatusBadRequest || res.Success {
		t.Fatalf("missing user: %d %+v", code, res)
	}
}

func TestConnectRejected(t *testing.T) {
	ts := newTestServer(t)
	room := createAndJoin(t, ts, "alice")

	c := dial(t, ts, room, "stranger")
	if m := read(t, c); m.Type != signaling.MessageTypeError || m.Error == "" {
		t.Fatalf("stranger got %+v", m)
	}

	c2 := dial(t, ts, "missing-room", "alice")
	if m := read(t, c2); m.Type != signaling.MessageTypeError {
		t.Fatalf("unknown room got %+v", m)
	}
}

func TestRoomTTL(t *testing.T) {
	ts := newTestServer(t, hub.WithRoomTTL(40*time.Millisecond))
	code, res := post(t, ts, "/api/session/create", CreateRequest{UserID: "alice"})
	if code != http.StatusOK {
		t.Fatalf("create: %d", code)
	}

	time.Sleep(200 * time.Millisecond)
	code, _ = post(t, ts, "/api/session/join", JoinRequest{RoomID: res.RoomID, UserID: "alice"})
	if code != http.StatusNotFound {
		t.Fatalf("expired room join status = %d, want 404", code)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	createAndJoin(t, ts, "alice")

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" || h.Rooms != 1 {
		t.Fatalf("health = %+v", h)
	}
}
