package vm

// Run starts execution at byte offset 0 of Program.Code (the start of the
// data region when the program has one) and runs until RET pops an empty
// call stack or HALT fires.
func (vm *VM) Run() error {
	return vm.RunAt(0)
}

// RunFunc starts execution at the code offset registered for fn uid.
func (vm *VM) RunFunc(uid uint64) error {
	if vm.program == nil {
		return ErrNoProgram
	}
	off, ok := vm.program.FuncOffset(uid)
	if !ok {
		return ErrUnknownFuncUID
	}
	return vm.RunAt(int(off))
}

// RunAt runs the fetch-decode-execute loop starting at code offset.
// Grounded on original_source/pgs/src/vm/core.rs's Core::run_at, and on
// gvm's own ExecProgram loop shape (single-threaded, no goroutines, a
// plain for loop over Step).
func (vm *VM) RunAt(offset int) (err error) {
	if vm.program == nil {
		return ErrNoProgram
	}

	// A malformed program (or a bug in a foreign function) can index past
	// the stack, heap or code slice. Recover it into a plain error instead
	// of letting it crash the host process, mirroring gvm's own
	// getDefaultRecoverFuncForVM.
	defer func() {
		if r := recover(); r != nil {
			err = ErrSegmentationFault
		}
	}()

	vm.ip = offset
	end := len(vm.program.Code)

	for vm.ip < end {
		if vm.onStep != nil {
			vm.onStep(vm)
		}
		halted, err := vm.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
	return nil
}

// Step fetches and executes exactly one instruction, reporting whether
// execution should halt (an empty-call-stack RET, or HALT).
func (vm *VM) Step() (halted bool, err error) {
	op, err := vm.fetchOpcode()
	if err != nil {
		return false, err
	}

	switch op {
	case Noop:
		// nothing to do

	case Halt:
		return true, nil

	case Ret:
		if len(vm.callStack) == 0 {
			return true, nil
		}
		vm.ip = vm.callStack[len(vm.callStack)-1]
		vm.callStack = vm.callStack[:len(vm.callStack)-1]

	case Call:
		uid := decodeU64(vm.fetchOperand(8))
		if err := vm.call(uid); err != nil {
			return false, err
		}

	case Jmp:
		target := decodeU64(vm.fetchOperand(8))
		vm.ip = int(target)

	case Jmpt:
		target := decodeU64(vm.fetchOperand(8))
		b, err := vm.popBytes(SizeBool)
		if err != nil {
			return false, err
		}
		if decodeBool(b) {
			vm.ip = int(target)
		}

	case Jmpf:
		target := decodeU64(vm.fetchOperand(8))
		b, err := vm.popBytes(SizeBool)
		if err != nil {
			return false, err
		}
		if !decodeBool(b) {
			vm.ip = int(target)
		}

	case Pushi:
		vm.pushBytes(vm.fetchOperand(SizeInt))
	case Pushf:
		vm.pushBytes(vm.fetchOperand(SizeFloat))
	case Pushb:
		vm.pushBytes(vm.fetchOperand(SizeBool))
	case Pusha:
		vm.pushBytes(vm.fetchOperand(8))
	case Pushn:
		n := int(decodeU64(vm.fetchOperand(8)))
		vm.pushN(n)

	case Popi:
		_, err = vm.popBytes(SizeInt)
	case Popf:
		_, err = vm.popBytes(SizeFloat)
	case Popb:
		_, err = vm.popBytes(SizeBool)
	case Popn:
		n := int(decodeU64(vm.fetchOperand(8)))
		err = vm.popN(n)

	case Sdupi:
		offset := decodeI64(vm.fetchOperand(8))
		err = vm.dup(offset, SizeInt)
	case Sdupf:
		offset := decodeI64(vm.fetchOperand(8))
		err = vm.dup(offset, SizeFloat)
	case Sdupb:
		offset := decodeI64(vm.fetchOperand(8))
		err = vm.dup(offset, SizeBool)
	case Sdupa:
		offset := decodeI64(vm.fetchOperand(8))
		err = vm.dup(offset, 8)
	case Sdupn:
		raw := vm.fetchOperand(16)
		offset := decodeI64(raw[0:8])
		size := int(decodeU64(raw[8:16]))
		err = vm.dup(offset, size)

	case Smovi:
		offset := decodeI64(vm.fetchOperand(8))
		err = vm.move(offset, SizeInt)
	case Smovf:
		offset := decodeI64(vm.fetchOperand(8))
		err = vm.move(offset, SizeFloat)
	case Smovn:
		raw := vm.fetchOperand(16)
		offset := decodeI64(raw[0:8])
		size := int(decodeU64(raw[8:16]))
		err = vm.move(offset, size)

	case Svswpi:
		b, e := vm.popBytes(SizeInt)
		if e != nil {
			return false, e
		}
		vm.saveSwap(b)
	case Svswpf:
		b, e := vm.popBytes(SizeFloat)
		if e != nil {
			return false, e
		}
		vm.saveSwap(b)
	case Svswpb:
		b, e := vm.popBytes(SizeBool)
		if e != nil {
			return false, e
		}
		vm.saveSwap(b)
	case Svswpn:
		n := int(decodeU64(vm.fetchOperand(8)))
		b, e := vm.popBytes(n)
		if e != nil {
			return false, e
		}
		vm.saveSwap(b)

	case Ldswpi:
		vm.pushBytes(vm.loadSwap(SizeInt))
	case Ldswpf:
		vm.pushBytes(vm.loadSwap(SizeFloat))
	case Ldswpb:
		vm.pushBytes(vm.loadSwap(SizeBool))
	case Ldswpn:
		n := int(decodeU64(vm.fetchOperand(8)))
		vm.pushBytes(vm.loadSwap(n))

	case Sref:
		offset := decodeI64(vm.fetchOperand(8))
		at := vm.sp + int(offset)
		if at < 0 {
			return false, ErrInvalidStackPtr
		}
		addr := NewAddress(TagStack, uint64(at))
		vm.pushBytes(encodeU64(addr.Pack()))

	case Not:
		b, e := vm.popBytes(SizeBool)
		if e != nil {
			return false, e
		}
		vm.pushBytes(encodeBool(!decodeBool(b)))

	case Addi, Subi, Muli, Divi, Eqi, Gti, Lti, Gteqi, Lteqi:
		err = vm.execIntBinary(op)
	case Addf, Subf, Mulf, Divf, Eqf, Gtf, Ltf, Gteqf, Lteqf:
		err = vm.execFloatBinary(op)

	case Itof:
		b, e := vm.popBytes(SizeInt)
		if e != nil {
			return false, e
		}
		vm.pushBytes(encodeF32(float32(decodeI64(b))))
	case Ftoi:
		b, e := vm.popBytes(SizeFloat)
		if e != nil {
			return false, e
		}
		vm.pushBytes(encodeI64(int64(decodeF32(b))))

	default:
		return false, &ErrUnimplementedOpcode{Op: op}
	}

	return false, err
}

func (vm *VM) execIntBinary(op Opcode) error {
	rb, err := vm.popBytes(SizeInt)
	if err != nil {
		return err
	}
	lb, err := vm.popBytes(SizeInt)
	if err != nil {
		return err
	}
	rhs, lhs := decodeI64(rb), decodeI64(lb)

	switch op {
	case Addi:
		vm.pushBytes(encodeI64(lhs + rhs))
	case Subi:
		vm.pushBytes(encodeI64(lhs - rhs))
	case Muli:
		vm.pushBytes(encodeI64(lhs * rhs))
	case Divi:
		if rhs == 0 {
			return ErrDivisionByZero
		}
		vm.pushBytes(encodeI64(lhs / rhs))
	case Eqi:
		vm.pushBytes(encodeBool(lhs == rhs))
	case Gti:
		vm.pushBytes(encodeBool(lhs > rhs))
	case Lti:
		vm.pushBytes(encodeBool(lhs < rhs))
	case Gteqi:
		vm.pushBytes(encodeBool(lhs >= rhs))
	case Lteqi:
		vm.pushBytes(encodeBool(lhs <= rhs))
	}
	return nil
}

func (vm *VM) execFloatBinary(op Opcode) error {
	rb, err := vm.popBytes(SizeFloat)
	if err != nil {
		return err
	}
	lb, err := vm.popBytes(SizeFloat)
	if err != nil {
		return err
	}
	rhs, lhs := decodeF32(rb), decodeF32(lb)

	switch op {
	case Addf:
		vm.pushBytes(encodeF32(lhs + rhs))
	case Subf:
		vm.pushBytes(encodeF32(lhs - rhs))
	case Mulf:
		vm.pushBytes(encodeF32(lhs * rhs))
	case Divf:
		if rhs == 0 {
			return ErrDivisionByZero
		}
		vm.pushBytes(encodeF32(lhs / rhs))
	case Eqf:
		vm.pushBytes(encodeBool(lhs == rhs))
	case Gtf:
		vm.pushBytes(encodeBool(lhs > rhs))
	case Ltf:
		vm.pushBytes(encodeBool(lhs < rhs))
	case Gteqf:
		vm.pushBytes(encodeBool(lhs >= rhs))
	case Lteqf:
		vm.pushBytes(encodeBool(lhs <= rhs))
	}
	return nil
}

// call dispatches a CALL instruction: foreign functions are tried first
// (by UID), then the program's own function-offset table. Grounded on
// Core::call - foreign functions are removed from the registry for the
// duration of the call and reinserted after, so a foreign function is free
// to call back into the VM without racing its own re-entry.
func (vm *VM) call(uid uint64) error {
	if fn, ok := vm.foreign[uid]; ok {
		delete(vm.foreign, uid)
		err := fn(vm)
		vm.foreign[uid] = fn
		if err != nil {
			return ErrForeignCallFailed
		}
		return nil
	}

	if vm.program == nil {
		return ErrNoProgram
	}
	off, ok := vm.program.FuncOffset(uid)
	if !ok {
		return ErrUnknownFuncUID
	}
	vm.callStack = append(vm.callStack, vm.ip)
	vm.ip = int(off)
	return nil
}

func (vm *VM) fetchOpcode() (Opcode, error) {
	if vm.program == nil {
		return 0, ErrNoProgram
	}
	if vm.ip >= len(vm.program.Code) {
		return 0, ErrNoProgram
	}
	op := Opcode(vm.program.Code[vm.ip])
	vm.ip++
	return op, nil
}

func (vm *VM) fetchOperand(n int) []byte {
	b := vm.program.Code[vm.ip : vm.ip+n]
	vm.ip += n
	return b
}
