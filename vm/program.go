package vm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// DataRange is the byte range of one interned static-data object within
// Program.Code (component B, spec.md §3 "Program").
type DataRange struct {
	Start, End uint64
}

// Program is the immutable output of compilation: a contiguous byte vector
// combining the static-data region (read-only string bodies) followed by
// code, plus the out-of-band function-UID -> offset table and the
// data-address -> byte-range table. Once built a Program never changes;
// every VM that loads it gets its own stack (spec.md §5).
type Program struct {
	// Code is data-region bytes followed by instruction bytes.
	Code []byte
	// DataLen is the length of the static-data prefix of Code.
	DataLen uint64
	// FuncOffsets maps a function UID to its absolute byte offset in Code.
	// Foreign functions are present in the UID space (see api package) but
	// never appear here, since they have no code offset.
	FuncOffsets map[uint64]uint64
	// DataPointers maps a data-region address to its byte range, used to
	// slice out interned string bodies.
	DataPointers map[uint64]DataRange
}

const programMagic uint32 = 0x70677376 // "pgsv"

// Save writes the binary program layout described in spec.md §6: a magic
// number, then the data length, then the two out-of-band maps, then the
// code bytes. Uses encoding/binary throughout, matching gvm's own
// LittleEndian-everywhere convention rather than reaching for a generic
// serialization library - the pack carries no such dependency (see
// SPEC_FULL.md §1 "Errors").
func (p *Program) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, programMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, p.DataLen); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(p.FuncOffsets))); err != nil {
		return err
	}
	for uid, off := range p.FuncOffsets {
		if err := binary.Write(bw, binary.LittleEndian, uid); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, off); err != nil {
			return err
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(p.DataPointers))); err != nil {
		return err
	}
	for addr, rng := range p.DataPointers {
		if err := binary.Write(bw, binary.LittleEndian, addr); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, rng.Start); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, rng.End); err != nil {
			return err
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(p.Code))); err != nil {
		return err
	}
	if _, err := bw.Write(p.Code); err != nil {
		return err
	}
	return bw.Flush()
}

// Load reads back a Program previously written by Save.
func Load(r io.Reader) (*Program, error) {
	br := bufio.NewReader(r)

	var magic uint32
	if err := binary.Read(br, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}
	if magic != programMagic {
		return nil, fmt.Errorf("not a pscript program (bad magic %#x)", magic)
	}

	p := &Program{FuncOffsets: map[uint64]uint64{}, DataPointers: map[uint64]DataRange{}}
	if err := binary.Read(br, binary.LittleEndian, &p.DataLen); err != nil {
		return nil, err
	}

	var numFuncs uint64
	if err := binary.Read(br, binary.LittleEndian, &numFuncs); err != nil {
		return nil, err
	}
	for i := uint64(0); i < numFuncs; i++ {
		var uid, off uint64
		if err := binary.Read(br, binary.LittleEndian, &uid); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.LittleEndian, &off); err != nil {
			return nil, err
		}
		p.FuncOffsets[uid] = off
	}

	var numPtrs uint64
	if err := binary.Read(br, binary.LittleEndian, &numPtrs); err != nil {
		return nil, err
	}
	for i := uint64(0); i < numPtrs; i++ {
		var addr uint64
		var rng DataRange
		if err := binary.Read(br, binary.LittleEndian, &addr); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.LittleEndian, &rng.Start); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.LittleEndian, &rng.End); err != nil {
			return nil, err
		}
		p.DataPointers[addr] = rng
	}

	var codeLen uint64
	if err := binary.Read(br, binary.LittleEndian, &codeLen); err != nil {
		return nil, err
	}
	p.Code = make([]byte, codeLen)
	if _, err := io.ReadFull(br, p.Code); err != nil {
		return nil, err
	}

	return p, nil
}

// FuncOffset looks up the absolute code offset for uid.
func (p *Program) FuncOffset(uid uint64) (uint64, bool) {
	off, ok := p.FuncOffsets[uid]
	return off, ok
}

// String returns the interned string body at data-region address addr.
func (p *Program) String(addr uint64) (string, bool) {
	rng, ok := p.DataPointers[addr]
	if !ok {
		return "", false
	}
	return string(p.Code[rng.Start:rng.End]), true
}
