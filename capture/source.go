// Package capture delivers raw tokens to the receiver and controls the capture device.
//
// A Source yields one raw token per observation. Sources never interpret
// tokens; duplicates and garbage are passed through for the receiver to judge.
package capture

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// MaxTokenSize bounds a single line-delimited token.
const MaxTokenSize = 64 * 1024

// Source yields raw tokens. Next returns io.EOF when the stream has ended
// and ctx.Err() when ctx is canceled first.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// LineSource reads newline-delimited tokens from a reader, such as the
// stdout of a barcode decoder or a text file of captured tokens.
//
// Blank lines are skipped and a trailing carriage return is dropped. When
// TrimPrefix is set, it is removed from lines that carry it (e.g. "QR-Code:").
type LineSource struct {
	TrimPrefix string

	r      io.Reader
	once   sync.Once
	lines  chan lineResult
	done   chan struct{}
	closed sync.Once
}

type lineResult struct {
	token string
	err   error
}

// NewLineSource creates a LineSource over r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{
		r:     r,
		lines: make(chan lineResult),
		done:  make(chan struct{}),
	}
}

// Next returns the next non-blank line. Reads happen on a background
// goroutine so that a blocked reader does not prevent cancellation.
func (s *LineSource) Next(ctx context.Context) (string, error) {
	s.once.Do(func() { go s.scan() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return res.token, res.err
	}
}

// Close stops the background reader. It does not close the underlying reader.
func (s *LineSource) Close() error {
	s.closed.Do(func() { close(s.done) })
	return nil
}

func (s *LineSource) scan() {
	defer close(s.lines)

	sc := bufio.NewScanner(s.r)
	sc.Buffer(make([]byte, 0, 4096), MaxTokenSize)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if s.TrimPrefix != "" {
			line = strings.TrimPrefix(line, s.TrimPrefix)
		}
		if line == "" {
			continue
		}
		select {
		case s.lines <- lineResult{token: line}:
		case <-s.done:
			return
		}
	}

	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case s.lines <- lineResult{err: err}:
	case <-s.done:
	}
}

// ChannelSource yields tokens received on a channel. A closed channel is io.EOF.
type ChannelSource struct {
	ch <-chan string
}

// NewChannelSource creates a source reading from ch.
func NewChannelSource(ch <-chan string) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// Next implements Source.
func (s *ChannelSource) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case tok, ok := <-s.ch:
		if !ok {
			return "", io.EOF
		}
		return tok, nil
	}
}

// SliceSource yields a fixed list of tokens, then io.EOF.
type SliceSource struct {
	tokens []string
	pos    int
}

// NewSliceSource creates a source over tokens.
func NewSliceSource(tokens ...string) *SliceSource {
	return &SliceSource{tokens: tokens}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.tokens) {
		return "", io.EOF
	}
	tok := s.tokens[s.pos]
	s.pos++
	return tok, nil
}

// Verify implementations.
var (
	_ Source = (*LineSource)(nil)
	_ Source = (*ChannelSource)(nil)
	_ Source = (*SliceSource)(nil)
)
