package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const viewerRefresh = 250 * time.Millisecond

// Feed returns the participants to show, in display order.
type Feed func() []Participant

type refreshMsg struct{}

type tickMsg time.Time

// viewerModel draws every remote participant's skeleton side by side.
type viewerModel struct {
	title   string
	feed    Feed
	updates <-chan struct{}

	spinner  spinner.Model
	parts    []Participant
	width    int
	quitting bool
}

func newViewerModel(title string, feed Feed, updates <-chan struct{}) *viewerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return &viewerModel{
		title:   title,
		feed:    feed,
		updates: updates,
		spinner: s,
		width:   80,
	}
}

func (m *viewerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(viewerRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// listen waits for the next coalesced state change.
func (m *viewerModel) listen() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-m.updates; !ok {
			return nil
		}
		return refreshMsg{}
	}
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		m.parts = m.feed()
		return m, m.listen()

	case tickMsg:
		m.parts = m.feed()
		if !m.quitting {
			return m, tick()
		}
	}
	return m, nil
}

func (m *viewerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s %s", IconPose, m.title)))
	b.WriteString("\n")

	if len(m.parts) == 0 {
		b.WriteString(fmt.Sprintf("%s Waiting for other participants...\n", m.spinner.View()))
	} else {
		b.WriteString(m.panels())
		b.WriteString("\n")
	}

	b.WriteString(FooterStyle.Render("Press q to leave"))
	return b.String()
}

// panels lays participant panels out left to right, wrapping at the
// terminal width.
func (m *viewerModel) panels() string {
	var (
		rows []string
		row  []string
		used int
	)
	for _, p := range m.parts {
		panel := PanelStyle.Render(
			PanelTitleStyle.Render(truncateString(p.ID, 24)) +
				MutedStyle.Render(fmt.Sprintf("  %d frames", p.Frames)) + "\n" +
				colorize(p.Drawing),
		)
		w := lipgloss.Width(panel)
		if len(row) > 0 && used+w > m.width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, used = nil, 0
		}
		row = append(row, panel)
		used += w
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// colorize paints joints and bones in the renderer's colors.
func colorize(drawing string) string {
	var b strings.Builder
	for i, line := range strings.Split(drawing, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, r := range line {
			switch r {
			case ' ':
				b.WriteRune(r)
			case '●':
				b.WriteString(JointStyle.Render(string(r)))
			default:
				b.WriteString(BoneStyle.Render(string(r)))
			}
		}
	}
	return b.String()
}

// Viewer is a live terminal view of a session.
type Viewer struct {
	model *viewerModel
	opts  []tea.ProgramOption
}

// NewViewer returns a viewer that redraws whenever updates fires, and at a
// fixed interval regardless.
func NewViewer(title string, feed Feed, updates <-chan struct{}) *Viewer {
	return &Viewer{
		model: newViewerModel(title, feed, updates),
		opts:  []tea.ProgramOption{tea.WithAltScreen()},
	}
}

// Run blocks until the user quits or ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	program := tea.NewProgram(v.model, v.opts...)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			program.Quit()
		case <-stop:
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}
