// Package packet implements the L1FB broadcast token codec.
//
// A token is one printable observation carrying a single chunk of a file:
//
//	magic,version,filename,totalChunks,index,payload
//	L1FB,1,foo.txt,3,1,TWFuIGlzIGRpc3Rpbm
//
// Parse is pure: it never touches receiver state and never logs.
package packet

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// Wire constants.
const (
	// Magic identifies an L1FB broadcast token.
	Magic = "L1FB"
	// Version is the only supported wire version.
	Version = "1"
	// Delimiter separates token fields. The payload alphabet excludes it.
	Delimiter = ","
	// FieldCount is the exact number of fields in a token.
	FieldCount = 6
	// MaxTotalChunks caps the chunk count a token may announce. A receiver
	// sizes its chunk store from the first accepted token, so a corrupt count
	// must not be trusted. At DefaultChunkSize this allows files up to 16 MiB.
	MaxTotalChunks = 1 << 16
)

// Packet is one decoded token.
// Invariant after Parse: 0 < TotalChunks <= MaxTotalChunks and 0 <= Index < TotalChunks.
type Packet struct {
	Magic       string
	Version     string
	Filename    string
	TotalChunks int
	Index       int
	Payload     []byte
}

// Parse decodes a raw token into a Packet.
//
// Errors are always *ParseError:
//   - ErrorMalformed: not exactly six fields
//   - ErrorBadSignature: wrong magic or version
//   - ErrorBadInteger: totalChunks or index not a non-negative decimal
//   - ErrorOutOfRange: totalChunks == 0, totalChunks > MaxTotalChunks, or index >= totalChunks
//   - ErrorBadPayload: payload is not valid base64
//
// The filename is taken verbatim; path safety is the sink's concern.
func Parse(token string) (*Packet, error) {
	fields := strings.Split(token, Delimiter)
	if len(fields) != FieldCount {
		return nil, &ParseError{
			Kind: ErrorMalformed,
			Msg:  "expected " + strconv.Itoa(FieldCount) + " fields, got " + strconv.Itoa(len(fields)),
		}
	}

	if fields[0] != Magic || fields[1] != Version {
		return nil, &ParseError{
			Kind:  ErrorBadSignature,
			Field: "magic",
			Msg:   "not an L1FB v" + Version + " packet",
		}
	}

	total, err := parseCount(fields[3])
	if err != nil {
		return nil, &ParseError{Kind: ErrorBadInteger, Field: "total_chunks", Msg: "invalid chunk count " + strconv.Quote(fields[3]), Err: err}
	}
	index, err := parseCount(fields[4])
	if err != nil {
		return nil, &ParseError{Kind: ErrorBadInteger, Field: "index", Msg: "invalid chunk index " + strconv.Quote(fields[4]), Err: err}
	}

	if total == 0 {
		return nil, &ParseError{Kind: ErrorOutOfRange, Field: "total_chunks", Msg: "chunk count must be positive"}
	}
	if total > MaxTotalChunks {
		return nil, &ParseError{
			Kind:  ErrorOutOfRange,
			Field: "total_chunks",
			Msg:   "chunk count " + strconv.Itoa(total) + " exceeds " + strconv.Itoa(MaxTotalChunks),
		}
	}
	if index >= total {
		return nil, &ParseError{
			Kind:  ErrorOutOfRange,
			Field: "index",
			Msg:   "chunk index " + strconv.Itoa(index) + " outside [0, " + strconv.Itoa(total) + ")",
		}
	}

	payload, err := DecodePayload(fields[5])
	if err != nil {
		return nil, &ParseError{Kind: ErrorBadPayload, Field: "payload", Msg: "payload decode failed", Err: err}
	}

	return &Packet{
		Magic:       fields[0],
		Version:     fields[1],
		Filename:    fields[2],
		TotalChunks: total,
		Index:       index,
		Payload:     payload,
	}, nil
}

// DecodePayload decodes the standard base64 alphabet. Trailing padding is
// optional.
func DecodePayload(s string) ([]byte, error) {
	if len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// parseCount accepts only ASCII digits; signs and whitespace are rejected.
func parseCount(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
