package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/lifi/cli/reader"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewInspectTokens:
		content = m.renderTokens()
	case ViewInspectRecording:
		content = m.renderRecording()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	return content + "\n" + helpLine(keys.Quit)
}

func (m InspectModel) renderTokens() string {
	data, ok := m.data.([]reader.TokenInspection)
	if !ok {
		return "Invalid data type for " + ViewInspectTokens
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Tokens"))
	b.WriteString("\n")
	for i, tok := range data {
		if i > 0 {
			b.WriteString("\n")
		}
		if !tok.Valid {
			writeRow(&b, "Token:", ValueStyle.Render(truncate(tok.Token, 48)))
			writeRow(&b, "Rejected:", StateStyle("invalid").Render(tok.ErrorKind))
			writeRow(&b, "", ErrorStyle.Render(tok.Error))
			continue
		}
		writeRow(&b, "File:", ValueStyle.Render(tok.Filename))
		writeRow(&b, "Chunk:", ValueStyle.Render(fmt.Sprintf("%d of %d", tok.Index, tok.TotalChunks)))
		writeRow(&b, "Payload:", ValueStyle.Render(fmt.Sprintf("%d bytes", tok.PayloadSize)))
	}
	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderRecording() string {
	data, ok := m.data.(*reader.RecordingSummary)
	if !ok {
		return "Invalid data type for " + ViewInspectRecording
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Recording"))
	b.WriteString("\n")
	writeRow(&b, "Tokens:", ValueStyle.Render(fmt.Sprintf("%d", data.Tokens)))
	writeRow(&b, "Repeats:", ValueStyle.Render(fmt.Sprintf("%d", data.Duplicates)))
	writeRow(&b, "Redundant:", ValueStyle.Render(fmt.Sprintf("%d", data.Redundant)))
	writeRow(&b, "Other file:", ValueStyle.Render(fmt.Sprintf("%d", data.Mismatched)))
	for _, kind := range slices.Sorted(maps.Keys(data.Rejected)) {
		writeRow(&b, "Rejected:", ErrorStyle.Render(fmt.Sprintf("%s %d", kind, data.Rejected[kind])))
	}

	b.WriteString("\n")
	if s := data.Session; s != nil {
		state := "incomplete"
		if s.Complete {
			state = "complete"
		}
		b.WriteString(TitleStyle.Render("Session"))
		b.WriteString("\n")
		writeRow(&b, "File:", ValueStyle.Render(s.Filename))
		writeRow(&b, "State:", StateStyle(state).Render(state))
		writeRow(&b, "Chunks:", ValueStyle.Render(fmt.Sprintf("%d/%d", s.Received, s.TotalChunks)))
		writeRow(&b, "", progressBar(s.Received, s.TotalChunks, progressWidth))
		writeRow(&b, "Bytes:", ValueStyle.Render(fmt.Sprintf("%d", s.Bytes)))
		if len(s.Missing) > 0 {
			writeRow(&b, "Missing:", WarningStyle.Render(formatIndices(s.Missing, 16)))
		}
	} else {
		b.WriteString(WarningStyle.Render("no session"))
		b.WriteString("\n")
	}

	for _, o := range data.Others {
		writeRow(&b, "Also seen:", ValueStyle.Render(fmt.Sprintf("%s (%d chunks, %d packets)", o.Filename, o.TotalChunks, o.Packets)))
	}

	return BoxStyle.Render(b.String())
}

func formatIndices(idx []int, limit int) string {
	parts := make([]string, 0, min(len(idx), limit))
	for i, n := range idx {
		if i == limit {
			parts = append(parts, fmt.Sprintf("+%d more", len(idx)-limit))
			break
		}
		parts = append(parts, fmt.Sprintf("%d", n))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
