package compiler

import (
	"testing"

	"github.com/ktstephano/pscript/vm"
)

func TestBuilderLabelOffsetAccountsForPriorInstructions(t *testing.T) {
	b := NewBuilder()
	b.Push(vm.Instruction{Op: vm.Pushi, Operand: make([]byte, vm.SizeInt)})
	b.Label("second")
	b.Push(vm.Instruction{Op: vm.Ret})

	off, ok := b.LabelOffset("second")
	assert(t, ok, "expected label second to be recorded")
	assert(t, off == vm.SizeInt+1, "expected offset %d, got %d", vm.SizeInt+1, off)
}

func TestBuilderUnknownLabelNotFound(t *testing.T) {
	b := NewBuilder()
	_, ok := b.LabelOffset("nope")
	assert(t, !ok, "expected an unregistered label to report not found")
}

func TestBuilderPatchRewritesTaggedJump(t *testing.T) {
	b := NewBuilder()
	b.Tag(99)
	b.Push(vm.Instruction{Op: vm.Jmpf, Operand: make([]byte, 8)})
	b.Push(vm.Instruction{Op: vm.Ret})

	target := make([]byte, 8)
	target[0] = 0x2a
	ok := b.Patch(99, target)
	assert(t, ok, "expected tag 99 to be patchable")

	patched := b.InstructionAt(0)
	assert(t, patched.Operand[0] == 0x2a, "expected patched operand to stick")
}

func TestBuilderJumpIndexesTracksOnlyJumps(t *testing.T) {
	b := NewBuilder()
	b.Push(vm.Instruction{Op: vm.Pushi, Operand: make([]byte, vm.SizeInt)})
	b.Push(vm.Instruction{Op: vm.Jmp, Operand: make([]byte, 8)})
	b.Push(vm.Instruction{Op: vm.Ret})

	idxs := b.JumpIndexes()
	assert(t, len(idxs) == 1, "expected exactly one jump index, got %d", len(idxs))
	assert(t, idxs[0] == 1, "expected the jump at instruction index 1, got %d", idxs[0])
}

func TestBuilderBuildConcatenatesEncodedInstructions(t *testing.T) {
	b := NewBuilder()
	b.Push(vm.Instruction{Op: vm.Ret})
	code := b.Build()
	assert(t, len(code) == 1, "expected a single-byte encoding for a Ret, got %d bytes", len(code))
	assert(t, code[0] == byte(vm.Ret), "expected the encoded byte to be the Ret opcode")
}
