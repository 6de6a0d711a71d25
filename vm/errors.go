package vm

import (
	"errors"
	"fmt"
)

// Runtime errors surfaced synchronously to the host, per spec.md §7.
// Sentinel values and a small wrapping type, mirroring gvm's
// package-level errSegmentationFault/errIllegalOperation/errUnknownInstruction
// style rather than an error-wrapping library - nothing in the retrieved
// pack reaches for one (see SPEC_FULL.md §1).
var (
	ErrNoProgram        = errors.New("no program loaded")
	ErrEmptyCallStack   = errors.New("empty call stack")
	ErrUnknownFuncUID   = errors.New("unknown function uid")
	ErrInvalidStackPtr  = errors.New("invalid stack pointer")
	ErrInvalidRegister  = errors.New("invalid register")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrOperatorDecode   = errors.New("could not deserialize instruction operand")
	ErrOperatorEncode   = errors.New("could not serialize instruction operand")
	ErrForeignCallFailed = errors.New("foreign function call failed")
	ErrSegmentationFault = errors.New("segmentation fault")
)

// ErrUnimplementedOpcode reports an opcode the VM fetched but does not
// execute - either a genuinely unknown byte or one of the reserved
// register-family opcodes (spec.md §9).
type ErrUnimplementedOpcode struct {
	Op Opcode
}

func (e *ErrUnimplementedOpcode) Error() string {
	return fmt.Sprintf("unimplemented opcode: %s", e.Op)
}
