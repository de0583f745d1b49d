package receiver

// Deduplicator drops a token identical to the one observed immediately before it.
//
// Capture devices keep reporting the same code while it stays on screen; the
// gate absorbs those repeats before any parsing. It knows nothing about packet
// semantics: two distinct tokens carrying the same chunk both pass, and the
// chunk store's presence check handles them.
type Deduplicator struct {
	last string
	seen bool
}

// ShouldProcess reports whether token differs from the previous call's token.
// A true result records token as the new last-seen value.
func (d *Deduplicator) ShouldProcess(token string) bool {
	if d.seen && token == d.last {
		return false
	}
	d.last = token
	d.seen = true
	return true
}

// Last returns the last recorded token and whether one has been recorded.
func (d *Deduplicator) Last() (string, bool) {
	return d.last, d.seen
}

// Reset forgets the last-seen token.
func (d *Deduplicator) Reset() {
	d.last = ""
	d.seen = false
}
