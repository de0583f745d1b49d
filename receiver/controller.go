// Package receiver implements the receive-side state machine for L1FB broadcasts.
//
// A Controller owns at most one Session. Tokens pass a Deduplicator gate, are
// parsed by the packet codec, and are applied to the session's ChunkStore.
// Every decision is returned as a Result; nothing here logs or blocks.
//
// States:
//   - Idle: no session. Any parseable packet creates one.
//   - Active: a session exists. Packets for the same filename and chunk count
//     are applied; any other packet is ignored until Reset.
//
// Completion does not change state. A complete session stays Active until Reset.
package receiver

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/lifi/packet"
)

// ErrSessionMismatch is carried by Results for packets that belong to a
// different transfer than the active session.
var ErrSessionMismatch = errors.New("packet does not match active session")

// State is the controller state.
type State int

const (
	// StateIdle means no session exists.
	StateIdle State = iota
	// StateActive means a session exists (complete or not).
	StateActive
)

// String returns the state name.
func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// Outcome classifies how one token was handled.
type Outcome int

const (
	// OutcomeDuplicate: identical to the previous token, dropped before parsing.
	OutcomeDuplicate Outcome = iota
	// OutcomeRejected: the codec rejected the token; Result.Err is a *packet.ParseError.
	OutcomeRejected
	// OutcomeMismatch: valid packet for a different filename or chunk count.
	OutcomeMismatch
	// OutcomeApplied: a new chunk was stored.
	OutcomeApplied
	// OutcomeAlreadyPresent: the chunk index was already stored.
	OutcomeAlreadyPresent
)

// String returns the snake_case outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeApplied:
		return "applied"
	case OutcomeAlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// Result describes the effect of one token or packet.
type Result struct {
	Outcome Outcome
	// Err explains Rejected and Mismatch outcomes.
	Err error
	// Packet is the parsed packet, nil for Duplicate and Rejected.
	Packet *packet.Packet
	// SessionStarted is true when this packet created the session.
	SessionStarted bool
	// Completed is true when this packet filled the last missing chunk.
	Completed bool
}

// Progress is a point-in-time view of the controller for rendering.
type Progress struct {
	State       State
	Filename    string
	Received    int
	TotalChunks int
	Bytes       int64
	Ready       bool
}

// Controller is the session state machine.
// It is not safe for concurrent use; callers feed it one event at a time.
type Controller struct {
	dedup   Deduplicator
	session *Session
}

// NewController creates an idle controller.
func NewController() *Controller {
	return &Controller{}
}

// Handle runs one raw token through dedup, parsing, and session update.
// The last-seen token is recorded for every non-duplicate, whether or not it parses.
func (c *Controller) Handle(token string) Result {
	if !c.dedup.ShouldProcess(token) {
		return Result{Outcome: OutcomeDuplicate}
	}

	p, err := packet.Parse(token)
	if err != nil {
		return Result{Outcome: OutcomeRejected, Err: err}
	}
	return c.HandlePacket(p)
}

// HandlePacket applies an already-parsed packet, bypassing the dedup gate.
// Nil packets and packets violating the chunk-range invariant are rejected
// without creating a session.
func (c *Controller) HandlePacket(p *packet.Packet) Result {
	if p == nil {
		return Result{
			Outcome: OutcomeRejected,
			Err:     &packet.ParseError{Kind: packet.ErrorMalformed, Msg: "nil packet"},
		}
	}
	if p.TotalChunks > packet.MaxTotalChunks {
		return Result{
			Outcome: OutcomeRejected,
			Packet:  p,
			Err: &packet.ParseError{
				Kind:  packet.ErrorOutOfRange,
				Field: "total_chunks",
				Msg:   fmt.Sprintf("chunk count %d exceeds %d", p.TotalChunks, packet.MaxTotalChunks),
			},
		}
	}
	if p.TotalChunks <= 0 || p.Index < 0 || p.Index >= p.TotalChunks {
		return Result{
			Outcome: OutcomeRejected,
			Packet:  p,
			Err: &packet.ParseError{
				Kind:  packet.ErrorOutOfRange,
				Field: "index",
				Msg:   fmt.Sprintf("chunk index %d outside [0, %d)", p.Index, p.TotalChunks),
			},
		}
	}

	started := false
	if c.session == nil {
		c.session = newSession(p.Filename, p.TotalChunks)
		started = true
	} else if !c.session.matches(p.Filename, p.TotalChunks) {
		return Result{
			Outcome: OutcomeMismatch,
			Packet:  p,
			Err: fmt.Errorf("%w: have %s/%d, got %s/%d", ErrSessionMismatch,
				c.session.filename, c.session.total, p.Filename, p.TotalChunks),
		}
	}

	if c.session.store.Apply(p.Index, p.Payload) == AlreadyPresent {
		return Result{Outcome: OutcomeAlreadyPresent, Packet: p}
	}
	return Result{
		Outcome:        OutcomeApplied,
		Packet:         p,
		SessionStarted: started,
		Completed:      c.session.IsComplete(),
	}
}

// Reset discards the session and the last-seen token. Safe in any state.
func (c *Controller) Reset() {
	c.session = nil
	c.dedup.Reset()
}

// State returns Idle or Active.
func (c *Controller) State() State {
	if c.session == nil {
		return StateIdle
	}
	return StateActive
}

// Session returns the active session, or nil when idle.
func (c *Controller) Session() *Session {
	return c.session
}

// LastToken returns the token the dedup gate currently remembers.
func (c *Controller) LastToken() (string, bool) {
	return c.dedup.Last()
}

// IsComplete reports whether an active session has every chunk.
func (c *Controller) IsComplete() bool {
	return c.session != nil && c.session.IsComplete()
}

// Assemble returns the reassembled file for a complete session.
func (c *Controller) Assemble() ([]byte, error) {
	return Assemble(c.session)
}

// Progress returns the current rendering view. An idle controller reports zeros.
func (c *Controller) Progress() Progress {
	if c.session == nil {
		return Progress{State: StateIdle}
	}
	return Progress{
		State:       StateActive,
		Filename:    c.session.filename,
		Received:    c.session.Received(),
		TotalChunks: c.session.total,
		Bytes:       c.session.Bytes(),
		Ready:       c.session.IsComplete(),
	}
}
