package vm

import (
	"encoding/binary"
	"fmt"
)

// Instruction is an opcode byte followed by zero or more bytes of operand,
// serialized little endian. Ported from the opcode+operand-bytes shape of
// original_source/pgs/pgs/src/codegen/instruction.rs, re-expressed with
// gvm's habit of keeping raw byte conversions next to the struct instead of
// behind a serialization library.
type Instruction struct {
	Op      Opcode
	Operand []byte
}

// NewInstruction builds a bare instruction with no operand.
func NewInstruction(op Opcode) Instruction {
	return Instruction{Op: op}
}

// WithI64 appends a signed 64-bit operand (stack offsets, byte counts).
func (i Instruction) WithI64(v int64) Instruction {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	i.Operand = append(i.Operand, buf...)
	return i
}

// WithU64 appends an unsigned 64-bit operand (addresses, UIDs).
func (i Instruction) WithU64(v uint64) Instruction {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	i.Operand = append(i.Operand, buf...)
	return i
}

// WithI64At builds a new instruction for opcode op carrying a signed
// 64-bit operand.
func WithI64At(op Opcode, v int64) Instruction {
	return NewInstruction(op).WithI64(v)
}

// WithU64At builds a new instruction for opcode op carrying an unsigned
// 64-bit operand.
func WithU64At(op Opcode, v uint64) Instruction {
	return NewInstruction(op).WithU64(v)
}

// WithBytesAt builds a new instruction for opcode op carrying the given
// raw operand bytes.
func WithBytesAt(op Opcode, operand []byte) Instruction {
	return Instruction{Op: op, Operand: append([]byte(nil), operand...)}
}

// Size returns the number of bytes this instruction will occupy in the
// final program image: the opcode byte plus its operand.
func (i Instruction) Size() int {
	return 1 + len(i.Operand)
}

// Encode serializes the instruction to its final byte form.
func (i Instruction) Encode() []byte {
	out := make([]byte, 0, i.Size())
	out = append(out, byte(i.Op))
	out = append(out, i.Operand...)
	return out
}

// OperandI64 decodes the operand as a signed 64-bit integer.
func (i Instruction) OperandI64() int64 {
	return int64(binary.LittleEndian.Uint64(i.Operand))
}

// OperandU64 decodes the operand as an unsigned 64-bit integer.
func (i Instruction) OperandU64() uint64 {
	return binary.LittleEndian.Uint64(i.Operand)
}

// WithOffsetAndSize builds the 16-byte operand SDUPN/SMOVN carry: a signed
// stack offset followed by a byte count, so the variable-size duplicate and
// move opcodes can address containers wider than the fixed-suffix opcodes.
func WithOffsetAndSize(op Opcode, offset int64, size uint64) Instruction {
	return NewInstruction(op).WithI64(offset).WithU64(size)
}

// OperandOffset decodes the leading signed offset of a 16-byte
// offset+size operand (SDUPN/SMOVN).
func (i Instruction) OperandOffset() int64 {
	return int64(binary.LittleEndian.Uint64(i.Operand[0:8]))
}

// OperandSize decodes the trailing byte count of a 16-byte offset+size
// operand (SDUPN/SMOVN).
func (i Instruction) OperandSize() uint64 {
	return binary.LittleEndian.Uint64(i.Operand[8:16])
}

func (i Instruction) String() string {
	if len(i.Operand) == 0 {
		return i.Op.String()
	}
	return fmt.Sprintf("%s %d", i.Op, i.OperandI64())
}
