// Package metrics provides receiver metrics collection.
//
// The Collector accumulates counters for the lifetime of a receiver process.
// It is a leaf package with no internal dependencies: parse failures are
// recorded by kind name so the packet package is not imported here.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all receiver metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Intake
	TokensObserved   int64
	TokensDuplicate  int64
	TokensRejected   int64
	RejectedByKind   map[string]int64
	SessionMismatch  int64
	ChunksApplied    int64
	ChunksRedundant  int64
	SessionsStarted  int64
	SessionsComplete int64
	Resets           int64

	// Emission
	SavesSucceeded  int64
	SavesFailed     int64
	PublishFailures int64

	// Dimensions (informational, set at construction)
	ReceiverID  string
	Source      string
	SinkBackend string
}

// Collector accumulates receiver metrics.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	tokensObserved   int64
	tokensDuplicate  int64
	rejectedByKind   map[string]int64
	sessionMismatch  int64
	chunksApplied    int64
	chunksRedundant  int64
	sessionsStarted  int64
	sessionsComplete int64
	resets           int64

	savesSucceeded  int64
	savesFailed     int64
	publishFailures int64

	receiverID  string
	source      string
	sinkBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(receiverID, source, sinkBackend string) *Collector {
	return &Collector{
		rejectedByKind: make(map[string]int64),
		receiverID:     receiverID,
		source:         source,
		sinkBackend:    sinkBackend,
	}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Intake ---

// IncTokenObserved records a token read from the capture source.
func (c *Collector) IncTokenObserved() {
	if c == nil {
		return
	}
	c.inc(&c.tokensObserved)
}

// IncDuplicate records a token dropped as a repeat of its predecessor.
func (c *Collector) IncDuplicate() {
	if c == nil {
		return
	}
	c.inc(&c.tokensDuplicate)
}

// IncRejected records a token that failed to parse, keyed by error kind.
func (c *Collector) IncRejected(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rejectedByKind[kind]++
	c.mu.Unlock()
}

// IncSessionMismatch records a packet ignored because it belongs to another file.
func (c *Collector) IncSessionMismatch() {
	if c == nil {
		return
	}
	c.inc(&c.sessionMismatch)
}

// IncChunkApplied records a chunk stored for the first time.
func (c *Collector) IncChunkApplied() {
	if c == nil {
		return
	}
	c.inc(&c.chunksApplied)
}

// IncChunkRedundant records a chunk that was already present.
func (c *Collector) IncChunkRedundant() {
	if c == nil {
		return
	}
	c.inc(&c.chunksRedundant)
}

// IncSessionStarted records a session bound to a new file.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsStarted)
}

// IncSessionComplete records a session receiving its last missing chunk.
func (c *Collector) IncSessionComplete() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsComplete)
}

// IncReset records a receiver reset.
func (c *Collector) IncReset() {
	if c == nil {
		return
	}
	c.inc(&c.resets)
}

// --- Emission ---

// IncSaveSucceeded records a file handed to the sink successfully.
func (c *Collector) IncSaveSucceeded() {
	if c == nil {
		return
	}
	c.inc(&c.savesSucceeded)
}

// IncSaveFailed records a sink failure.
func (c *Collector) IncSaveFailed() {
	if c == nil {
		return
	}
	c.inc(&c.savesFailed)
}

// IncPublishFailure records an adapter publish failure.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.inc(&c.publishFailures)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var rejected int64
	byKind := make(map[string]int64, len(c.rejectedByKind))
	for k, v := range c.rejectedByKind {
		byKind[k] = v
		rejected += v
	}

	return Snapshot{
		TokensObserved:   c.tokensObserved,
		TokensDuplicate:  c.tokensDuplicate,
		TokensRejected:   rejected,
		RejectedByKind:   byKind,
		SessionMismatch:  c.sessionMismatch,
		ChunksApplied:    c.chunksApplied,
		ChunksRedundant:  c.chunksRedundant,
		SessionsStarted:  c.sessionsStarted,
		SessionsComplete: c.sessionsComplete,
		Resets:           c.resets,

		SavesSucceeded:  c.savesSucceeded,
		SavesFailed:     c.savesFailed,
		PublishFailures: c.publishFailures,

		ReceiverID:  c.receiverID,
		Source:      c.source,
		SinkBackend: c.sinkBackend,
	}
}
