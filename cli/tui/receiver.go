package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/lifi/capture"
	"github.com/pithecene-io/lifi/metrics"
	"github.com/pithecene-io/lifi/runtime"
)

const progressWidth = 30

// TokenMsg carries one observed token into the model.
type TokenMsg struct {
	Token string
}

// SourceDoneMsg reports that the source stopped yielding tokens.
type SourceDoneMsg struct {
	Err error
}

// ReceiverModel is the interactive receive view.
// All station calls happen in Update, so the station stays single-threaded.
type ReceiverModel struct {
	ctx     context.Context
	station *runtime.Station
	src     capture.Source
	metrics *metrics.Collector

	notice      string
	noticeStyle lipgloss.Style
	sourceDone  bool
	sourceErr   error
	width       int
	height      int
	quitting    bool
}

// NewReceiverModel creates a model reading from src. collector may be nil.
func NewReceiverModel(ctx context.Context, station *runtime.Station, src capture.Source, collector *metrics.Collector) ReceiverModel {
	return ReceiverModel{
		ctx:         ctx,
		station:     station,
		src:         src,
		metrics:     collector,
		noticeStyle: ValueStyle,
	}
}

// Init implements tea.Model.
func (m ReceiverModel) Init() tea.Cmd {
	return m.waitForToken()
}

func (m ReceiverModel) waitForToken() tea.Cmd {
	ctx, src := m.ctx, m.src
	return func() tea.Msg {
		token, err := src.Next(ctx)
		if err != nil {
			return SourceDoneMsg{Err: err}
		}
		return TokenMsg{Token: token}
	}
}

// Update implements tea.Model.
func (m ReceiverModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TokenMsg:
		before := len(m.station.Saved())
		res := m.station.Observe(m.ctx, msg.Token)
		if res.Completed {
			saved := m.station.Saved()
			switch {
			case len(saved) > before:
				m.setNotice(SuccessStyle, "saved to "+saved[len(saved)-1].Location)
			case m.station.LastSaveError() != nil:
				m.setNotice(ErrorStyle, m.station.LastSaveError().Error())
			default:
				m.setNotice(SuccessStyle, "all chunks received")
			}
		}
		return m, m.waitForToken()

	case SourceDoneMsg:
		if errors.Is(msg.Err, capture.ErrDecoderExited) && m.ctx.Err() == nil {
			// The device can be started again; keep listening.
			if err := m.station.SetScanning(m.ctx, false); err != nil {
				m.setNotice(ErrorStyle, err.Error())
			} else {
				m.setNotice(WarningStyle, msg.Err.Error()+"; press space to restart")
			}
			return m, m.waitForToken()
		}
		m.sourceDone = true
		if msg.Err != nil && !errors.Is(msg.Err, io.EOF) && m.ctx.Err() == nil {
			m.sourceErr = msg.Err
			m.setNotice(ErrorStyle, "source failed: "+msg.Err.Error())
		} else {
			m.setNotice(WarningStyle, "source ended")
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			if err := m.station.Toggle(m.ctx); err != nil {
				m.setNotice(ErrorStyle, err.Error())
			} else {
				m.notice = ""
			}
		case key.Matches(msg, keys.Reset):
			if err := m.station.Reset(); err != nil {
				m.setNotice(ErrorStyle, err.Error())
			} else {
				m.setNotice(ValueStyle, "reset")
			}
		case key.Matches(msg, keys.Save):
			m.save()
		}
	}

	return m, nil
}

func (m *ReceiverModel) save() {
	saved, err := m.station.Save(m.ctx)
	switch {
	case errors.Is(err, runtime.ErrNothingToSave):
		m.setNotice(WarningStyle, err.Error())
	case err != nil:
		m.setNotice(ErrorStyle, err.Error())
	default:
		m.setNotice(SuccessStyle, "saved to "+saved.Location)
	}
}

func (m *ReceiverModel) setNotice(style lipgloss.Style, text string) {
	m.noticeStyle = style
	m.notice = text
}

// SourceErr returns the error that ended the source, if it was not EOF.
func (m ReceiverModel) SourceErr() error {
	return m.sourceErr
}

// View implements tea.Model.
func (m ReceiverModel) View() string {
	if m.quitting {
		return ""
	}
	status := m.station.Status()

	var b strings.Builder
	b.WriteString(TitleStyle.Render(status.Mode))
	b.WriteString("\n")
	writeRow(&b, "Status:", StateStyle(status.Connection).Render(status.Connection))
	if status.Live() {
		writeRow(&b, "File:", ValueStyle.Render(status.Filename))
		writeRow(&b, "Chunks:", ValueStyle.Render(fmt.Sprintf("%d/%d", status.Received, status.Total)))
		writeRow(&b, "", progressBar(status.Received, status.Total, progressWidth))
		writeRow(&b, "Bytes:", ValueStyle.Render(fmt.Sprintf("%d", status.Bytes)))
	}
	b.WriteString("\n")

	saveButton := ButtonStyle.Render("Save")
	if status.Ready {
		saveButton = ReadyStyle.Render("Save")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		ButtonStyle.Render(status.PlayLabel), " ",
		ButtonStyle.Render("Reset"), " ",
		saveButton))

	if m.metrics != nil {
		b.WriteString("\n\n")
		b.WriteString(renderCounters(m.metrics.Snapshot()))
	}

	content := BoxStyle.Render(b.String())
	if m.notice != "" {
		content += "\n" + m.noticeStyle.Render(m.notice)
	}
	return content + "\n" + helpLine(keys.Toggle, keys.Reset, keys.Save, keys.Quit)
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(label), value))
}

// progressBar draws received/total as a fixed-width bar.
func progressBar(received, total, width int) string {
	filled := 0
	if total > 0 {
		filled = received * width / total
	}
	style := WarningStyle
	if total > 0 && received == total {
		style = SuccessStyle
	}
	return style.Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(mutedColor).Render(strings.Repeat("░", width-filled))
}

// RunReceiver runs the receive TUI until the user quits or ctx ends and
// returns the final station status.
func RunReceiver(ctx context.Context, station *runtime.Station, src capture.Source, collector *metrics.Collector) (runtime.Status, error) {
	model := NewReceiverModel(ctx, station, src, collector)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return station.Status(), ctxErr
	}
	if err != nil {
		return station.Status(), err
	}
	if fm, ok := final.(ReceiverModel); ok && fm.SourceErr() != nil {
		return station.Status(), fmt.Errorf("capture source failed: %w", fm.SourceErr())
	}
	return station.Status(), nil
}
