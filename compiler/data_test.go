package compiler

import "testing"

func TestDataAddStringDedupesIdenticalLiterals(t *testing.T) {
	d := NewData()
	first := d.AddString("hello")
	second := d.AddString("hello")
	assert(t, first == second, "expected repeated interning of the same literal to reuse its address")
}

func TestDataAddStringDistinctLiteralsGetDistinctRanges(t *testing.T) {
	d := NewData()
	a := d.AddString("hello")
	b := d.AddString("goodbye")
	assert(t, a != b, "expected distinct literals to get distinct addresses")

	ranges := d.Pointers()
	ra, ok := ranges[a]
	assert(t, ok, "expected a range recorded for %q", "hello")
	assert(t, ra.End-ra.Start == 5, "expected a 5-byte range for %q, got %d", "hello", ra.End-ra.Start)

	rb, ok := ranges[b]
	assert(t, ok, "expected a range recorded for %q", "goodbye")
	assert(t, rb.End-rb.Start == 7, "expected a 7-byte range for %q, got %d", "goodbye", rb.End-rb.Start)
}

func TestDataBytesConcatenatesInOrder(t *testing.T) {
	d := NewData()
	d.AddString("ab")
	d.AddString("cd")
	b := d.Bytes()
	assert(t, string(b) == "abcd", "expected the data region to be \"abcd\", got %q", string(b))
}
