package compiler

import "github.com/ktstephano/pscript/vm"

// Builder assembles the whole program's instructions in emission order,
// tracking named labels (function entry points), numeric tags (forward
// patch targets for not-yet-known jump destinations) and which
// instructions are jumps so their operands can be shifted once the final
// data-region prefix length is known.
//
// Grounded on original_source/pgs/pgs/src/codegen/builder.rs, re-expressed
// with plain Go slices/maps instead of Rust's owned-self builder-pattern
// methods.
type Builder struct {
	instructions []vm.Instruction
	jmpIndexes   []int
	labels       map[string]int
	tags         map[uint64]int
}

// NewBuilder starts an empty instruction builder.
func NewBuilder() *Builder {
	return &Builder{
		labels: map[string]int{},
		tags:   map[uint64]int{},
	}
}

// Label records that the instruction about to be pushed is the entry
// point for name (a function's mangled full name).
func (b *Builder) Label(name string) {
	b.labels[name] = len(b.instructions)
}

// Tag binds tag to the instruction about to be pushed, so Patch can later
// rewrite that instruction's operand (e.g. a forward jump whose destination
// is not yet known).
func (b *Builder) Tag(tag uint64) {
	b.tags[tag] = len(b.instructions)
}

// Patch rewrites the operand of the instruction tagged tag - used once a
// jump's real destination offset is known.
func (b *Builder) Patch(tag uint64, operand []byte) bool {
	idx, ok := b.tags[tag]
	if !ok {
		return false
	}
	b.instructions[idx].Operand = operand
	return true
}

// Push appends instr, recording its index for later patching if it is a
// jump.
func (b *Builder) Push(instr vm.Instruction) {
	if instr.Op.IsJump() {
		b.jmpIndexes = append(b.jmpIndexes, len(b.instructions))
	}
	b.instructions = append(b.instructions, instr)
}

// CurrentOffset returns the byte offset, relative to the start of this
// builder's own code (not counting the eventual data-region prefix), that
// the next pushed instruction will land at.
func (b *Builder) CurrentOffset() int {
	offset := 0
	for _, instr := range b.instructions {
		offset += instr.Size()
	}
	return offset
}

// LabelOffset returns the byte offset of a previously recorded label, or
// false if it was never registered.
func (b *Builder) LabelOffset(name string) (int, bool) {
	idx, ok := b.labels[name]
	if !ok {
		return 0, false
	}
	offset := 0
	for i := 0; i < idx; i++ {
		offset += b.instructions[i].Size()
	}
	return offset, true
}

// JumpIndexes returns the instruction indexes of every jump pushed so far,
// for the final data-length rebase pass.
func (b *Builder) JumpIndexes() []int {
	return append([]int(nil), b.jmpIndexes...)
}

// InstructionAt returns a pointer to the instruction at idx, for rebasing
// its operand in place.
func (b *Builder) InstructionAt(idx int) *vm.Instruction {
	return &b.instructions[idx]
}

// Build serializes every instruction in emission order into its final
// byte form.
func (b *Builder) Build() []byte {
	var code []byte
	for _, instr := range b.instructions {
		code = append(code, instr.Encode()...)
	}
	return code
}
