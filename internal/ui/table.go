package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Participant is one row of the participant table and one panel of the
// viewer.
type Participant struct {
	ID       string
	Frames   uint64
	Stale    uint64
	LastSeen time.Time
	// Drawing is the participant's skeleton as terminal text.
	Drawing string
}

// ParticipantTable renders session members with lipgloss/table.
type ParticipantTable struct {
	items []Participant
	now   time.Time
}

func NewParticipantTable(items []Participant) *ParticipantTable {
	return &ParticipantTable{items: items, now: time.Now()}
}

// View renders the table as a string
func (t *ParticipantTable) View() string {
	if len(t.items) == 0 {
		return MutedStyle.Render("No other participants yet")
	}

	var rows [][]string
	for i, p := range t.items {
		last := "never"
		if !p.LastSeen.IsZero() {
			last = formatAge(t.now.Sub(p.LastSeen))
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			truncateString(p.ID, 36),
			fmt.Sprintf("%d", p.Frames),
			fmt.Sprintf("%d", p.Stale),
			last,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Participant", "Frames", "Stale", "Last pose").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderParticipantTable(items []Participant) {
	fmt.Println(NewParticipantTable(items).View())
}

// RoomInfo is the boxed banner shown after a room is created or joined.
type RoomInfo struct {
	RoomID  string
	UserID  string
	Command string
	Created bool
}

func (r RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	heading := "Joined Room"
	if r.Created {
		heading = "Room Created!"
	}
	content := fmt.Sprintf("%s %s\n\n%s Room ID:   %s\n%s You:       %s",
		IconSuccess, heading,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconPeer, MutedStyle.Render(r.UserID),
	)
	if r.Command != "" {
		content += fmt.Sprintf("\n%s Others:    %s", IconJoin, MutedStyle.Render(r.Command))
	}
	return boxStyle.Render(content)
}

func RenderRoomInfo(info RoomInfo) {
	fmt.Println(info.View())
}

func truncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
}
