// Package sink emits completed transfers.
//
// The receiver hands over the assembled bytes and the filename announced by
// the sender. That filename is untrusted broadcast input, so every sink runs
// it through SafeName before using it as a storage key.
package sink

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
)

// ErrUnsafeFilename is returned when a broadcast filename has no usable base name.
var ErrUnsafeFilename = errors.New("unsafe filename")

// MaxFilenameLength matches common filesystem limits.
const MaxFilenameLength = 255

// Sink receives completed files.
type Sink interface {
	// Save stores data under filename and returns where it landed.
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// SafeName reduces a broadcast filename to a single path element.
// Directory components are dropped, so "../../etc/passwd" becomes "passwd".
// Names that reduce to nothing, ".", or ".." are rejected.
func SafeName(filename string) (string, error) {
	name := strings.ReplaceAll(filename, "\\", "/")
	name = path.Base(path.Clean("/" + name))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("%w: %q", ErrUnsafeFilename, filename)
	}
	if len(name) > MaxFilenameLength {
		return "", fmt.Errorf("%w: name longer than %d bytes", ErrUnsafeFilename, MaxFilenameLength)
	}
	return name, nil
}

// StubSink records saves for testing.
type StubSink struct {
	mu    sync.Mutex
	Saves []StubSave
	// Err, when set, is returned by every Save.
	Err error
}

// StubSave is a recorded save.
type StubSave struct {
	Filename string
	Data     []byte
}

// NewStubSink creates a new stub sink.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// Save implements Sink by recording the call.
func (s *StubSink) Save(_ context.Context, filename string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.Saves = append(s.Saves, StubSave{Filename: filename, Data: data})
	return "stub://" + filename, nil
}

// Verify StubSink implements Sink.
var _ Sink = (*StubSink)(nil)
