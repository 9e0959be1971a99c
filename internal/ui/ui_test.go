package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestParticipantTable(t *testing.T) {
	if got := NewParticipantTable(nil).View(); !strings.Contains(got, "No other participants") {
		t.Fatalf("empty table = %q", got)
	}

	view := NewParticipantTable([]Participant{
		{ID: "alice", Frames: 42, LastSeen: time.Now()},
		{ID: "bob", Stale: 3},
	}).View()
	for _, want := range []string{"Participant", "alice", "42", "bob", "never"} {
		if !strings.Contains(view, want) {
			t.Errorf("table missing %q:\n%s", want, view)
		}
	}
}

func TestRoomInfo(t *testing.T) {
	view := RoomInfo{RoomID: "calm-tiger-red-jump", UserID: "alice", Command: "posecast join calm-tiger-red-jump", Created: true}.View()
	for _, want := range []string{"Room Created!", "calm-tiger-red-jump", "alice", "posecast join"} {
		if !strings.Contains(view, want) {
			t.Errorf("room info missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(RoomInfo{RoomID: "x"}.View(), "Created") {
		t.Error("join banner claims the room was created")
	}
}

func TestSessionSummary(t *testing.T) {
	view := SessionSummaryView("Session Summary", SessionSummary{
		RoomID:   "calm-tiger-red-jump",
		Duration: 1500 * time.Millisecond,
		Sent:     123,
		Received: 456,
	})
	for _, want := range []string{"Session Summary", "calm-tiger-red-jump", "1.5s", "123", "456", "Own echoes"} {
		if !strings.Contains(view, want) {
			t.Errorf("summary missing %q:\n%s", want, view)
		}
	}
}

func TestTruncateString(t *testing.T) {
	for _, tc := range []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a-much-longer-id", 8, "a-muc..."},
		{"abcdef", 2, "ab"},
	} {
		if got := truncateString(tc.in, tc.max); got != tc.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestViewerModel(t *testing.T) {
	updates := make(chan struct{}, 1)
	parts := []Participant{{ID: "bob", Frames: 7, Drawing: " ● \n─●─"}}
	m := newViewerModel("room", func() []Participant { return parts }, updates)

	if !strings.Contains(m.View(), "Waiting for other participants") {
		t.Fatalf("initial view:\n%s", m.View())
	}

	m.Update(refreshMsg{})
	view := m.View()
	if !strings.Contains(view, "bob") || !strings.Contains(view, "7 frames") || !strings.Contains(view, "●") {
		t.Fatalf("view after refresh:\n%s", view)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if m.View() != "" {
		t.Fatal("view not cleared after quit")
	}
}

func TestPanelsWrap(t *testing.T) {
	var parts []Participant
	for _, id := range []string{"a", "b", "c", "d"} {
		parts = append(parts, Participant{ID: id, Drawing: strings.Repeat("─", 20)})
	}
	m := newViewerModel("room", func() []Participant { return parts }, nil)
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 40})
	m.Update(tickMsg(time.Now()))

	lines := strings.Split(m.panels(), "\n")
	// Four 24-wide panels cannot share one 60-column row.
	if len(lines) <= 5 {
		t.Fatalf("panels did not wrap:\n%s", m.panels())
	}
}
