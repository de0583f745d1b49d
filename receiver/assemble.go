package receiver

import "errors"

// ErrNotComplete is returned by Assemble while chunks are still missing.
var ErrNotComplete = errors.New("transfer not complete")

// Assemble concatenates the session's chunks in index order.
// It does not modify the session and may be called any number of times.
func Assemble(s *Session) ([]byte, error) {
	if s == nil || !s.IsComplete() {
		return nil, ErrNotComplete
	}

	out := make([]byte, 0, s.Bytes())
	for i := range s.total {
		out = append(out, s.store.Chunk(i)...)
	}
	return out, nil
}
