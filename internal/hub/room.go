package hub

import (
	"sort"
	"time"
)

// Room is one session. Participants are admitted through the session API
// first and then attach a WebSocket.
type Room struct {
	ID        string
	CreatedAt time.Time

	// admitted maps every user that joined through the API and has not left
	// to the time of their latest admission.
	admitted map[string]time.Time

	// members holds the connected WebSocket clients, keyed by user id.
	members map[string]*Client
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		ID:        id,
		CreatedAt: now,
		admitted:  make(map[string]time.Time),
		members:   make(map[string]*Client),
	}
}

// memberIDs returns the connected user ids except skip, sorted.
func (r *Room) memberIDs(skip string) []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != skip {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) empty() bool {
	return len(r.members) == 0
}

// isAdmitted reports whether userID holds an admission.
func (r *Room) isAdmitted(userID string) bool {
	_, ok := r.admitted[userID]
	return ok
}
