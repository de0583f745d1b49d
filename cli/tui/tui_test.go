package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/lifi/capture"
	"github.com/pithecene-io/lifi/cli/reader"
	"github.com/pithecene-io/lifi/metrics"
	"github.com/pithecene-io/lifi/runtime"
	"github.com/pithecene-io/lifi/sink"
)

const (
	tok0 = "L1FB,1,foo.txt,3,0,VGVz"
	tok1 = "L1FB,1,foo.txt,3,1,dCBk"
	tok2 = "L1FB,1,foo.txt,3,2,YXRhIQ=="
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{ViewInspectTokens, true},
		{ViewInspectRecording, true},
		{"receive", false},
		{"version", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("receive", nil); err == nil {
		t.Error("Expected error for unsupported view type")
	}
}

type fixture struct {
	model   ReceiverModel
	station *runtime.Station
	sink    *sink.StubSink
}

func newFixture(t *testing.T, tokens ...string) *fixture {
	t.Helper()
	stub := &sink.StubSink{}
	collector := metrics.NewCollector("rx", "test", "stub")
	station := runtime.NewStation(runtime.Config{
		ReceiverID: "rx",
		Sink:       stub,
		Metrics:    collector,
	})
	return &fixture{
		model:   NewReceiverModel(t.Context(), station, capture.NewSliceSource(tokens...), collector),
		station: station,
		sink:    stub,
	}
}

func (f *fixture) send(msg tea.Msg) tea.Cmd {
	next, cmd := f.model.Update(msg)
	f.model = next.(ReceiverModel)
	return cmd
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestReceiverModel_InitReadsSource(t *testing.T) {
	f := newFixture(t, tok0)
	msg := f.model.Init()()
	if got, ok := msg.(TokenMsg); !ok || got.Token != tok0 {
		t.Fatalf("Init produced %#v", msg)
	}
	if done, ok := f.model.Init()().(SourceDoneMsg); !ok || !errors.Is(done.Err, io.EOF) {
		t.Errorf("exhausted source produced %#v", done)
	}
}

func TestReceiverModel_ReceiveAndSave(t *testing.T) {
	f := newFixture(t)

	f.send(tea.KeyMsg{Type: tea.KeySpace})
	if !f.station.Scanning() {
		t.Fatal("space should start scanning")
	}
	if !strings.Contains(f.model.View(), "Pause") {
		t.Error("play button should read Pause while scanning")
	}

	for _, tok := range []string{tok0, tok1} {
		if cmd := f.send(TokenMsg{Token: tok}); cmd == nil {
			t.Fatal("token handling should wait for the next token")
		}
	}
	view := f.model.View()
	for _, want := range []string{"receiving", "foo.txt", "2/3"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	f.send(TokenMsg{Token: tok2})
	if !f.station.Status().Ready {
		t.Fatal("expected ready after last chunk")
	}
	if !strings.Contains(f.model.View(), "all chunks received") {
		t.Errorf("expected completion notice:\n%s", f.model.View())
	}

	f.send(keyRune('s'))
	if len(f.sink.Saves) != 1 || string(f.sink.Saves[0].Data) != "Test data!" {
		t.Fatalf("Saves = %+v", f.sink.Saves)
	}
	if !strings.Contains(f.model.View(), "saved to stub://foo.txt") {
		t.Errorf("expected save notice:\n%s", f.model.View())
	}
}

func TestReceiverModel_SaveBeforeComplete(t *testing.T) {
	f := newFixture(t)
	f.send(TokenMsg{Token: tok0})
	f.send(keyRune('s'))

	if len(f.sink.Saves) != 0 {
		t.Error("incomplete session must not be saved")
	}
	if !strings.Contains(f.model.View(), runtime.ErrNothingToSave.Error()) {
		t.Errorf("expected nothing-to-save notice:\n%s", f.model.View())
	}
}

func TestReceiverModel_Reset(t *testing.T) {
	f := newFixture(t)
	f.send(keyRune('p'))
	f.send(TokenMsg{Token: tok0})
	f.send(keyRune('r'))

	if f.station.Scanning() {
		t.Error("reset should stop scanning")
	}
	status := f.station.Status()
	if status.Live() || status.PlayLabel != runtime.PlayLabelScan {
		t.Errorf("status after reset = %+v", status)
	}
	if strings.Contains(f.model.View(), "foo.txt") {
		t.Error("view should not show the old session")
	}
}

func TestReceiverModel_SourceDone(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
		notice  string
	}{
		{"eof", io.EOF, false, "source ended"},
		{"failure", errors.New("decoder crashed"), true, "source failed: decoder crashed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if cmd := f.send(SourceDoneMsg{Err: tt.err}); cmd != nil {
				t.Error("no further reads after the source ends")
			}
			if (f.model.SourceErr() != nil) != tt.wantErr {
				t.Errorf("SourceErr() = %v", f.model.SourceErr())
			}
			if !strings.Contains(f.model.View(), tt.notice) {
				t.Errorf("view missing %q", tt.notice)
			}
		})
	}
}

func TestReceiverModel_DecoderExitPauses(t *testing.T) {
	f := newFixture(t)
	f.send(tea.KeyMsg{Type: tea.KeySpace})
	if !f.station.Scanning() {
		t.Fatal("space should start scanning")
	}

	cmd := f.send(SourceDoneMsg{Err: fmt.Errorf("%w: exit status 1", capture.ErrDecoderExited)})
	if cmd == nil {
		t.Error("the model should keep reading after a decoder exit")
	}
	if f.station.Scanning() {
		t.Error("a dead decoder should leave the receiver paused")
	}
	if f.model.SourceErr() != nil {
		t.Errorf("SourceErr() = %v, want nil", f.model.SourceErr())
	}
	view := f.model.View()
	for _, want := range []string{"press space to restart", "Scan"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestReceiverModel_Quit(t *testing.T) {
	f := newFixture(t)
	cmd := f.send(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if f.model.View() != "" {
		t.Error("view should be empty after quit")
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name            string
		received, total int
		filled          int
	}{
		{"empty", 0, 3, 0},
		{"partial", 1, 2, 5},
		{"full", 3, 3, 10},
		{"no total", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := progressBar(tt.received, tt.total, 10)
			if got := strings.Count(bar, "█"); got != tt.filled {
				t.Errorf("filled = %d, want %d", got, tt.filled)
			}
			if got := strings.Count(bar, "░"); got != 10-tt.filled {
				t.Errorf("empty = %d, want %d", got, 10-tt.filled)
			}
		})
	}
}

func TestInspectModel_Tokens(t *testing.T) {
	data := reader.InspectTokens([]string{tok2, "L2FB,1,foo.txt,3,0,VGVz"})
	view := NewInspectModel(ViewInspectTokens, data).View()
	for _, want := range []string{"foo.txt", "2 of 3", "4 bytes", "bad_signature"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestInspectModel_Recording(t *testing.T) {
	sum, err := reader.Summarize(t.Context(), capture.NewSliceSource(tok0, "junk", tok2))
	if err != nil {
		t.Fatal(err)
	}
	view := RenderInspectStatic(ViewInspectRecording, sum)
	for _, want := range []string{"foo.txt", "incomplete", "2/3", "malformed 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestInspectModel_WrongData(t *testing.T) {
	view := NewInspectModel(ViewInspectRecording, "nope").View()
	if !strings.Contains(view, "Invalid data type") {
		t.Errorf("view = %q", view)
	}
}
