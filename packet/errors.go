package packet

import (
	"errors"
	"fmt"
)

// ErrorKind classifies token rejections.
type ErrorKind int

const (
	// ErrorMalformed indicates the token does not split into exactly six fields.
	ErrorMalformed ErrorKind = iota
	// ErrorBadSignature indicates a magic or version mismatch.
	ErrorBadSignature
	// ErrorBadInteger indicates a chunk count or index that is not a non-negative decimal.
	ErrorBadInteger
	// ErrorOutOfRange indicates a zero chunk count or an index past the end.
	ErrorOutOfRange
	// ErrorBadPayload indicates the payload failed base64 decoding.
	ErrorBadPayload
)

// String returns the snake_case name used in logs and metrics labels.
func (k ErrorKind) String() string {
	switch k {
	case ErrorMalformed:
		return "malformed"
	case ErrorBadSignature:
		return "bad_signature"
	case ErrorBadInteger:
		return "bad_integer"
	case ErrorOutOfRange:
		return "out_of_range"
	case ErrorBadPayload:
		return "bad_payload"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseError is returned by Parse for every rejected token.
type ParseError struct {
	Kind  ErrorKind
	Field string
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err if it is a *ParseError.
func KindOf(err error) (ErrorKind, bool) {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Kind, true
	}
	return 0, false
}
