package receiver

import "testing"

func TestDeduplicator_ConsecutiveIdentical(t *testing.T) {
	var d Deduplicator

	if !d.ShouldProcess("a") {
		t.Error("first token should pass")
	}
	if d.ShouldProcess("a") {
		t.Error("repeat of previous token should be dropped")
	}
	if d.ShouldProcess("a") {
		t.Error("third repeat should still be dropped")
	}
	if !d.ShouldProcess("b") {
		t.Error("distinct token should pass")
	}
	if !d.ShouldProcess("a") {
		t.Error("token equal to an older (non-previous) token should pass")
	}
}

func TestDeduplicator_EmptyFirstToken(t *testing.T) {
	var d Deduplicator
	if !d.ShouldProcess("") {
		t.Error("empty first token should pass: nothing has been seen yet")
	}
	if d.ShouldProcess("") {
		t.Error("repeated empty token should be dropped")
	}
}

func TestDeduplicator_Reset(t *testing.T) {
	var d Deduplicator
	d.ShouldProcess("a")
	d.Reset()

	if last, ok := d.Last(); ok || last != "" {
		t.Errorf("Last() after Reset = %q, %v; want empty, false", last, ok)
	}
	if !d.ShouldProcess("a") {
		t.Error("token should pass again after Reset")
	}
}

func TestDeduplicator_Last(t *testing.T) {
	var d Deduplicator
	d.ShouldProcess("x")
	d.ShouldProcess("x")
	d.ShouldProcess("y")

	last, ok := d.Last()
	if !ok || last != "y" {
		t.Errorf("Last() = %q, %v; want y, true", last, ok)
	}
}
