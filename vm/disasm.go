package vm

import (
	"fmt"
	"io"
)

// Disassemble writes one line per instruction in p's code region (the bytes
// after DataLen) to w, labelling any offset that a function UID resolves
// to. It never touches a VM - the instruction stream is self-describing via
// Opcode.OperandWidth, whose widths match the operands Step fetches.
func Disassemble(p *Program, w io.Writer) error {
	labels := make(map[uint64]string)
	for uid, off := range p.FuncOffsets {
		labels[off] = fmt.Sprintf("func#%d", uid)
	}

	offset := p.DataLen
	for int(offset) < len(p.Code) {
		if name, ok := labels[offset]; ok {
			if _, err := fmt.Fprintf(w, "%s:\n", name); err != nil {
				return err
			}
		}

		op := Opcode(p.Code[offset])
		width := op.OperandWidth()
		instr := Instruction{Op: op}
		if width > 0 {
			instr.Operand = p.Code[offset+1 : offset+1+uint64(width)]
		}

		if _, err := fmt.Fprintf(w, "  %06d  %s\n", offset, describe(instr)); err != nil {
			return err
		}
		offset += uint64(instr.Size())
	}
	return nil
}

func describe(i Instruction) string {
	switch len(i.Operand) {
	case 0:
		return i.Op.String()
	case 16:
		return fmt.Sprintf("%s %d, %d", i.Op, i.OperandOffset(), i.OperandSize())
	default:
		return i.String()
	}
}
