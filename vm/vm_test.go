package vm

import (
	"bytes"
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func encode(instrs ...Instruction) []byte {
	var out []byte
	for _, i := range instrs {
		out = append(out, i.Encode()...)
	}
	return out
}

func programFromCode(code []byte) *Program {
	return &Program{
		Code:         code,
		FuncOffsets:  map[uint64]uint64{},
		DataPointers: map[uint64]DataRange{},
	}
}

func TestArithmeticAddI(t *testing.T) {
	code := encode(
		WithI64At(Pushi, 2),
		WithI64At(Pushi, 3),
		NewInstruction(Addi),
		NewInstruction(Halt),
	)

	m := New(0)
	m.LoadProgram(programFromCode(code))
	err := m.Run()
	assert(t, err == nil, "unexpected error: %v", err)

	got, err := m.popBytes(SizeInt)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, decodeI64(got) == 5, "expected 5, got %d", decodeI64(got))
}

func TestDivisionByZero(t *testing.T) {
	code := encode(
		WithI64At(Pushi, 1),
		WithI64At(Pushi, 0),
		NewInstruction(Divi),
		NewInstruction(Halt),
	)

	m := New(0)
	m.LoadProgram(programFromCode(code))
	err := m.Run()
	assert(t, err == ErrDivisionByZero, "expected division by zero, got %v", err)
}

func TestJmpfFallsThroughWhenConditionTrue(t *testing.T) {
	// 1 < 2 is true, so JMPF does not jump: the body executes and pushes 222.
	cond := encode(WithI64At(Pushi, 1), WithI64At(Pushi, 2), NewInstruction(Lti))
	jmpf := WithU64At(Jmpf, 0) // patched below, target is the trailing Halt
	body := encode(WithI64At(Pushi, 222))
	halt := encode(NewInstruction(Halt))

	target := uint64(len(cond) + jmpf.Size() + len(body))
	code := append(append(append(append([]byte{}, cond...), WithU64At(Jmpf, target).Encode()...), body...), halt...)

	m := New(0)
	m.LoadProgram(programFromCode(code))
	err := m.Run()
	assert(t, err == nil, "unexpected error: %v", err)

	got, err := m.popBytes(SizeInt)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, decodeI64(got) == 222, "expected the body to execute, got %d", decodeI64(got))
}

func TestJmpfSkipsBodyWhenConditionFalse(t *testing.T) {
	// 2 < 1 is false, so JMPF jumps straight to Halt, skipping the body.
	cond := encode(WithI64At(Pushi, 2), WithI64At(Pushi, 1), NewInstruction(Lti))
	jmpf := WithU64At(Jmpf, 0)
	body := encode(WithI64At(Pushi, 222))
	halt := encode(NewInstruction(Halt))

	target := uint64(len(cond) + jmpf.Size() + len(body))
	code := append(append(append(append([]byte{}, cond...), WithU64At(Jmpf, target).Encode()...), body...), halt...)

	m := New(0)
	m.LoadProgram(programFromCode(code))
	err := m.Run()
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, m.sp == 0, "expected the body's push to be skipped, sp=%d", m.sp)
}

func TestCallAndRet(t *testing.T) {
	const fnUID = uint64(1)

	main := encode(WithU64At(Call, fnUID), NewInstruction(Halt))
	fnOffset := uint64(len(main))
	fn := encode(WithI64At(Pushi, 9), NewInstruction(Ret))

	p := programFromCode(append(append([]byte{}, main...), fn...))
	p.FuncOffsets[fnUID] = fnOffset

	m := New(0)
	m.LoadProgram(p)
	err := m.Run()
	assert(t, err == nil, "unexpected error: %v", err)

	got, err := m.popBytes(SizeInt)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, decodeI64(got) == 9, "expected function to push 9, got %d", decodeI64(got))
}

func TestForeignCall(t *testing.T) {
	code := encode(WithU64At(Call, 42), NewInstruction(Halt))
	m := New(0)
	m.LoadProgram(programFromCode(code))

	called := false
	m.RegisterForeign(42, func(vm *VM) error {
		called = true
		vm.pushBytes(encodeI64(7))
		return nil
	})

	err := m.Run()
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, called, "expected foreign function to run")

	got, err := m.popBytes(SizeInt)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, decodeI64(got) == 7, "expected foreign push to land on stack, got %d", decodeI64(got))
}

func TestSmovAssignsLocal(t *testing.T) {
	// pushi 1 (local slot)
	// pushi 99
	// smovi -16   (assign top value into the local at offset -16 from the
	//              post-push sp, i.e. the original "pushi 1" slot)
	code := encode(
		WithI64At(Pushi, 1),
		WithI64At(Pushi, 99),
		WithI64At(Smovi, -16),
		NewInstruction(Halt),
	)

	m := New(0)
	m.LoadProgram(programFromCode(code))
	err := m.Run()
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, m.sp == SizeInt, "expected sp to shrink back to one int, got %d", m.sp)

	got, err := m.popBytes(SizeInt)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, decodeI64(got) == 99, "expected local to be overwritten with 99, got %d", decodeI64(got))
}

func TestSdupDuplicatesLocal(t *testing.T) {
	code := encode(
		WithI64At(Pushi, 41),
		WithI64At(Sdupi, -8),
		NewInstruction(Halt),
	)

	m := New(0)
	m.LoadProgram(programFromCode(code))
	err := m.Run()
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, m.sp == 2*SizeInt, "expected two ints on the stack, got sp=%d", m.sp)

	got, err := m.popBytes(SizeInt)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, decodeI64(got) == 41, "expected duplicate to equal original, got %d", decodeI64(got))
}

func TestSwapPreservesValueAcrossPop(t *testing.T) {
	code := encode(
		WithI64At(Pushi, 5),
		NewInstruction(Svswpi),
		WithI64At(Pushi, 1000), // unrelated stack traffic
		NewInstruction(Popi),
		NewInstruction(Ldswpi),
		NewInstruction(Halt),
	)

	m := New(0)
	m.LoadProgram(programFromCode(code))
	err := m.Run()
	assert(t, err == nil, "unexpected error: %v", err)

	got, err := m.popBytes(SizeInt)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, decodeI64(got) == 5, "expected swap to preserve 5, got %d", decodeI64(got))
}

func TestProgramSaveLoadRoundTrip(t *testing.T) {
	p := &Program{
		Code:        encode(WithI64At(Pushi, 3), NewInstruction(Halt)),
		DataLen:     0,
		FuncOffsets: map[uint64]uint64{7: 11},
		DataPointers: map[uint64]DataRange{
			3: {Start: 0, End: 5},
		},
	}

	var buf bytes.Buffer
	assert(t, p.Save(&buf) == nil, "unexpected save error")

	loaded, err := Load(&buf)
	assert(t, err == nil, "unexpected load error: %v", err)
	assert(t, bytes.Equal(loaded.Code, p.Code), "code mismatch after round trip")

	off, ok := loaded.FuncOffset(7)
	assert(t, ok && off == 11, "expected function offset 11, got %d ok=%v", off, ok)

	str, ok := loaded.DataPointers[3]
	assert(t, ok && str.Start == 0 && str.End == 5, "data pointer mismatch after round trip")
}

func TestAddressPackUnpack(t *testing.T) {
	a := NewAddress(TagHeap, 0x1234)
	raw := a.Pack()
	back := UnpackAddress(raw)
	assert(t, back.Tag == TagHeap, "expected tag to round trip, got %v", back.Tag)
	assert(t, back.Offset == 0x1234, "expected offset to round trip, got %d", back.Offset)
}

func TestStackGrows(t *testing.T) {
	m := New(8)
	for i := 0; i < 200; i++ {
		m.pushBytes(encodeI64(int64(i)))
	}
	assert(t, len(m.stack) > 8, "expected stack to have grown past its initial size")
}
