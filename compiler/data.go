package compiler

import "github.com/ktstephano/pscript/vm"

// Data interns string literal bodies into a single byte blob that is
// prepended to the instruction stream when a Program is built, so strings
// can be addressed with a plain data-region offset instead of carrying
// their bytes inline in every instruction. Grounded on
// original_source/pgs/pgs/src/codegen/data.rs.
type Data struct {
	raw     []byte
	ranges  map[uint64]vm.DataRange
	strings map[string]uint64
}

// NewData returns an empty interning table.
func NewData() *Data {
	return &Data{
		ranges:  map[uint64]vm.DataRange{},
		strings: map[string]uint64{},
	}
}

// AddString interns s, returning its data-region address. Repeated calls
// with the same string return the same address rather than duplicating
// bytes.
func (d *Data) AddString(s string) uint64 {
	if addr, ok := d.strings[s]; ok {
		return addr
	}
	addr := uint64(len(d.raw))
	bs := []byte(s)
	d.raw = append(d.raw, bs...)
	d.ranges[addr] = vm.DataRange{Start: addr, End: addr + uint64(len(bs))}
	d.strings[s] = addr
	return addr
}

// Bytes returns the accumulated data-region bytes.
func (d *Data) Bytes() []byte {
	out := make([]byte, len(d.raw))
	copy(out, d.raw)
	return out
}

// Pointers returns the address -> byte-range table for the interned
// strings, consumed by vm.Program.DataPointers.
func (d *Data) Pointers() map[uint64]vm.DataRange {
	out := make(map[uint64]vm.DataRange, len(d.ranges))
	for k, v := range d.ranges {
		out[k] = v
	}
	return out
}
