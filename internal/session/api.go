package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BioHazard786/posecast/internal/netdns"
	"github.com/BioHazard786/posecast/internal/protocol"
)

// API is the session server's HTTP surface.
type API interface {
	Create(ctx context.Context, userID string) (string, error)
	Join(ctx context.Context, roomID, userID string) error
}

// APIClient talks to the session endpoints of a posecast server.
type APIClient struct {
	base string
	http *http.Client
}

// NewAPIClient returns a client for the server at baseURL. Host lookups go
// through resolver, so a broken system resolver falls back to public DNS.
func NewAPIClient(baseURL string, resolver *netdns.Resolver) *APIClient {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if resolver != nil {
		tr.DialContext = resolver.DialContext
	}
	return &APIClient{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Transport: tr, Timeout: 15 * time.Second},
	}
}

type apiResponse struct {
	Success bool   `json:"success"`
	RoomID  string `json:"room_id"`
	Error   string `json:"error"`
}

// Create asks the server for a new room and returns its id.
func (c *APIClient) Create(ctx context.Context, userID string) (string, error) {
	resp, err := c.post(ctx, "/api/session/create", map[string]string{"user_id": userID})
	if err != nil {
		return "", protocol.SessionError("create session", err)
	}
	if resp.RoomID == "" {
		return "", protocol.SessionError("create session", fmt.Errorf("server returned no room id"))
	}
	return resp.RoomID, nil
}

// Join admits userID to roomID.
func (c *APIClient) Join(ctx context.Context, roomID, userID string) error {
	_, err := c.post(ctx, "/api/session/join", map[string]string{"room_id": roomID, "user_id": userID})
	if err != nil {
		return protocol.SessionError("join session", err)
	}
	return nil
}

func (c *APIClient) post(ctx context.Context, path string, body any) (*apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", res.StatusCode, err)
	}
	if !out.Success {
		return nil, serverError(res.StatusCode, out.Error)
	}
	return &out, nil
}

// serverError maps a rejection back onto the matching sentinel so callers
// can test for it with errors.Is.
func serverError(status int, msg string) error {
	for _, sentinel := range []error{
		protocol.ErrRoomNotFound,
		protocol.ErrRoomFull,
		protocol.ErrDuplicateUser,
		protocol.ErrMissingUserID,
	} {
		if strings.Contains(msg, sentinel.Error()) {
			return protocol.WrapError("server", sentinel, msg)
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("server: %s (status %d)", msg, status)
}
