package runtime

import (
	"fmt"

	"github.com/pithecene-io/lifi/receiver"
)

// ModeLabel is the mode shown at the start of every status line.
const ModeLabel = "Lifi Receiver"

// Connection labels.
const (
	ConnectionReceiving = "receiving"
	ConnectionWaiting   = "waiting"
)

// Play labels name the action the play control performs next.
const (
	PlayLabelPause = "Pause"
	PlayLabelScan  = "Scan"
)

// Status is what a front end renders after every processed token or control action.
type Status struct {
	Mode       string `json:"mode" yaml:"mode"`
	Connection string `json:"connection" yaml:"connection"`
	Filename   string `json:"filename" yaml:"filename"`
	Received   int    `json:"received" yaml:"received"`
	Total      int    `json:"total" yaml:"total"`
	Bytes      int64  `json:"bytes" yaml:"bytes"`
	Ready      bool   `json:"ready" yaml:"ready"`
	Playing    bool   `json:"playing" yaml:"playing"`
	PlayLabel  string `json:"play_label" yaml:"play_label"`
}

// NewStatus derives a Status from controller progress and the scanning flag.
func NewStatus(p receiver.Progress, playing bool) Status {
	s := Status{
		Mode:       ModeLabel,
		Connection: ConnectionWaiting,
		Playing:    playing,
		PlayLabel:  PlayLabelScan,
	}
	if playing {
		s.PlayLabel = PlayLabelPause
	}
	if p.State == receiver.StateActive {
		s.Connection = ConnectionReceiving
		s.Filename = p.Filename
		s.Received = p.Received
		s.Total = p.TotalChunks
		s.Bytes = p.Bytes
		s.Ready = p.Ready
	}
	return s
}

// Live reports whether a session is bound.
func (s Status) Live() bool {
	return s.Connection == ConnectionReceiving
}

// Line renders the one-line status, e.g.
// "Lifi Receiver receiving foo.txt 2/3 chunks, 9 bytes".
func (s Status) Line() string {
	if !s.Live() {
		return fmt.Sprintf("%s %s", s.Mode, s.Connection)
	}
	return fmt.Sprintf("%s %s %s %d/%d chunks, %d bytes",
		s.Mode, s.Connection, s.Filename, s.Received, s.Total, s.Bytes)
}
