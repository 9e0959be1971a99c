package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SessionSummary is printed when a participant leaves.
type SessionSummary struct {
	RoomID       string
	Duration     time.Duration
	Participants int

	Ticks           uint64
	Captured        uint64
	Sent            uint64
	CaptureFailures uint64
	SendFailures    uint64
	QueueDropped    uint64

	Received      uint64
	Dispatched    uint64
	ParseErrors   uint64
	UnknownTypes  uint64
	SelfEchoes    uint64
	InboundDrops  uint64
	RoutingMisses uint64
}

// SessionSummaryView renders the summary with go-pretty.
func SessionSummaryView(title string, s SessionSummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.SetTitle(title)

	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", s.RoomID},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
		{"Participants at leave", s.Participants},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Ticks", s.Ticks},
		{"Poses captured", s.Captured},
		{"Poses sent", s.Sent},
		{"Capture failures", s.CaptureFailures},
		{"Send failures", s.SendFailures},
		{"Superseded before send", s.QueueDropped},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Messages received", s.Received},
		{"Messages dispatched", s.Dispatched},
		{"Malformed", s.ParseErrors},
		{"Unknown type", s.UnknownTypes},
		{"Own echoes", s.SelfEchoes},
		{"Dropped (render behind)", s.InboundDrops},
		{"Unknown sender", s.RoutingMisses},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	return t.Render()
}

func RenderSessionSummary(title string, s SessionSummary) {
	fmt.Println(SessionSummaryView(title, s))
}
