// Package reader provides the read-side views used by the lifi CLI.
//
// Everything here is read-only: tokens and recordings are examined with the
// same codec and state machine the receiver uses, but nothing is saved.
package reader

// TokenInspection describes one parsed (or rejected) token.
type TokenInspection struct {
	Token       string `json:"token" yaml:"token"`
	Valid       bool   `json:"valid" yaml:"valid"`
	Filename    string `json:"filename,omitempty" yaml:"filename,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty" yaml:"total_chunks,omitempty"`
	Index       int    `json:"index" yaml:"index"`
	PayloadSize int    `json:"payload_bytes" yaml:"payload_bytes"`
	ErrorKind   string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RecordingSummary is the result of replaying a token stream through a
// fresh receiver.
type RecordingSummary struct {
	Tokens     int              `json:"tokens" yaml:"tokens"`
	Skipped    int              `json:"skipped_frames" yaml:"skipped_frames"`
	Duplicates int              `json:"duplicates" yaml:"duplicates"`
	Rejected   map[string]int   `json:"rejected" yaml:"rejected"`
	Mismatched int              `json:"mismatched" yaml:"mismatched"`
	Redundant  int              `json:"redundant" yaml:"redundant"`
	Session    *SessionSummary  `json:"session" yaml:"session"`
	Others     []ForeignSession `json:"other_sessions" yaml:"other_sessions"`
}

// SessionSummary describes the session the replay locked onto.
type SessionSummary struct {
	Filename    string `json:"filename" yaml:"filename"`
	TotalChunks int    `json:"total_chunks" yaml:"total_chunks"`
	Received    int    `json:"received" yaml:"received"`
	Bytes       int64  `json:"bytes" yaml:"bytes"`
	Complete    bool   `json:"complete" yaml:"complete"`
	Missing     []int  `json:"missing" yaml:"missing"`
}

// ForeignSession counts packets seen for a transfer other than the locked one.
type ForeignSession struct {
	Filename    string `json:"filename" yaml:"filename"`
	TotalChunks int    `json:"total_chunks" yaml:"total_chunks"`
	Packets     int    `json:"packets" yaml:"packets"`
}
