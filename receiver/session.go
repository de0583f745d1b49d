package receiver

// Session is the in-progress state of one file transfer.
// Filename and TotalChunks are fixed when the session is created.
type Session struct {
	filename string
	total    int
	store    *ChunkStore
}

func newSession(filename string, total int) *Session {
	return &Session{
		filename: filename,
		total:    total,
		store:    NewChunkStore(total),
	}
}

// Filename returns the file name announced by the first accepted packet.
func (s *Session) Filename() string { return s.filename }

// TotalChunks returns the chunk count announced by the first accepted packet.
func (s *Session) TotalChunks() int { return s.total }

// Received returns the number of distinct chunks stored.
func (s *Session) Received() int { return s.store.Received() }

// Bytes returns the number of payload bytes stored.
func (s *Session) Bytes() int64 { return s.store.Bytes() }

// IsComplete reports whether every chunk has been received.
func (s *Session) IsComplete() bool { return s.store.IsComplete() }

// Has reports whether chunk index has been received.
func (s *Session) Has(index int) bool { return s.store.Has(index) }

// Missing returns the indices not yet received.
func (s *Session) Missing() []int { return s.store.Missing() }

// matches reports whether a packet belongs to this session.
func (s *Session) matches(filename string, total int) bool {
	return s.filename == filename && s.total == total
}
