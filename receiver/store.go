package receiver

import "bytes"

// ApplyResult reports what ChunkStore.Apply did.
type ApplyResult int

const (
	// Applied means the chunk was stored and counted.
	Applied ApplyResult = iota
	// AlreadyPresent means the index was filled before; nothing changed.
	AlreadyPresent
	// OutOfRange means the index is outside [0, Total()); nothing changed.
	OutOfRange
)

// String returns the snake_case result name.
func (r ApplyResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case AlreadyPresent:
		return "already_present"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// ChunkStore holds the chunks received for one session.
// Capacity is fixed at construction; an index is filled at most once.
type ChunkStore struct {
	chunks   [][]byte
	present  []bool
	received int
	bytes    int64
}

// NewChunkStore creates an empty store for total chunks.
func NewChunkStore(total int) *ChunkStore {
	if total < 0 {
		total = 0
	}
	return &ChunkStore{
		chunks:  make([][]byte, total),
		present: make([]bool, total),
	}
}

// Apply stores data at index unless the index is already filled.
// The store keeps its own copy of data.
func (s *ChunkStore) Apply(index int, data []byte) ApplyResult {
	if index < 0 || index >= len(s.chunks) {
		return OutOfRange
	}
	if s.present[index] {
		return AlreadyPresent
	}
	s.chunks[index] = bytes.Clone(data)
	s.present[index] = true
	s.received++
	s.bytes += int64(len(data))
	return Applied
}

// Has reports whether index has been filled.
func (s *ChunkStore) Has(index int) bool {
	return index >= 0 && index < len(s.present) && s.present[index]
}

// Chunk returns the bytes stored at index, or nil if absent.
func (s *ChunkStore) Chunk(index int) []byte {
	if !s.Has(index) {
		return nil
	}
	return s.chunks[index]
}

// Total returns the fixed chunk capacity.
func (s *ChunkStore) Total() int { return len(s.chunks) }

// Received returns the number of distinct indices filled.
func (s *ChunkStore) Received() int { return s.received }

// Bytes returns the sum of stored chunk lengths.
func (s *ChunkStore) Bytes() int64 { return s.bytes }

// IsComplete reports whether every index has been filled.
func (s *ChunkStore) IsComplete() bool { return s.received == len(s.chunks) }

// Missing returns the unfilled indices in ascending order.
func (s *ChunkStore) Missing() []int {
	missing := make([]int, 0, len(s.chunks)-s.received)
	for i, ok := range s.present {
		if !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
