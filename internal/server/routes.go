package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/posecast/internal/hub"
	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/version"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Participants are CLI clients and browser pages served from anywhere.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CreateRequest is the body of POST /api/session/create.
type CreateRequest struct {
	UserID string `json:"user_id"`
}

// JoinRequest is the body of POST /api/session/join.
type JoinRequest struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// Response is returned by both session endpoints.
type Response struct {
	Success bool   `json:"success"`
	RoomID  string `json:"room_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Health is the body of GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Rooms   int64  `json:"rooms"`
	Clients int64  `json:"clients"`
}

// Server exposes a hub over HTTP.
type Server struct {
	hub    *hub.Hub
	logger *slog.Logger
}

// New returns a server for h.
func New(h *hub.Hub, logger *slog.Logger) *Server {
	return &Server{hub: h, logger: logger}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the session API, the WebSocket endpoint and the health
// check on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Post("/api/session/create", s.handleCreate)
	r.Post("/api/session/join", s.handleJoin)
	r.Get("/ws", s.handleWS)
	r.Get("/health", s.handleHealth)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return
	}

	roomID, err := s.hub.CreateRoom(r.Context(), req.UserID)
	if err != nil {
		s.logger.Warn("server: create failed", "user", req.UserID, "error", err)
		writeJSON(w, statusFor(err), Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, RoomID: roomID})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return
	}
	if req.RoomID == "" {
		writeJSON(w, http.StatusBadRequest, Response{Error: "room_id required"})
		return
	}

	if err := s.hub.JoinRoom(r.Context(), req.RoomID, req.UserID); err != nil {
		s.logger.Warn("server: join failed", "room", req.RoomID, "user", req.UserID, "error", err)
		writeJSON(w, statusFor(err), Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, RoomID: req.RoomID})
}

// handleWS upgrades an admitted participant's connection and hands it to the
// hub. Rejections are reported in-band as an error message.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	userID := r.URL.Query().Get("user_id")
	if roomID == "" || userID == "" {
		http.Error(w, "room_id and user_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server: upgrade failed", "error", err)
		return
	}

	client := hub.NewClient(s.hub, conn, roomID, userID)
	go client.Serve()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.hub.Stats()
	writeJSON(w, http.StatusOK, Health{
		Status:  "ok",
		Version: version.Version,
		Rooms:   st.Rooms,
		Clients: st.Clients,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrMissingUserID):
		return http.StatusBadRequest
	case errors.Is(err, protocol.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, protocol.ErrRoomFull), errors.Is(err, protocol.ErrDuplicateUser):
		return http.StatusConflict
	case errors.Is(err, hub.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
