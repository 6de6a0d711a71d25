package compiler

import (
	"encoding/binary"
	"math"

	"github.com/ktstephano/pscript/ast"
	"github.com/ktstephano/pscript/vm"
)

// compileExpr emits the instructions that leave expr's value on top of the
// stack, and records the size it pushed against the active block.
// Grounded on compiler.rs's compile_expr.
func (c *Compiler) compileExpr(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.IntLit:
		c.builder.Push(vm.WithI64At(vm.Pushi, e.Value))
		c.currentBlock().Push(vm.SizeInt)
		return nil

	case *ast.FloatLit:
		c.builder.Push(vm.WithBytesAt(vm.Pushf, encodeF32(e.Value)))
		c.currentBlock().Push(vm.SizeFloat)
		return nil

	case *ast.BoolLit:
		b := byte(0)
		if e.Value {
			b = 1
		}
		c.builder.Push(vm.WithBytesAt(vm.Pushb, []byte{b}))
		c.currentBlock().Push(vm.SizeBool)
		return nil

	case *ast.StringLit:
		addr := c.data.AddString(e.Value)
		c.builder.Push(vm.WithI64At(vm.Pusha, int64(len(e.Value))))
		c.builder.Push(vm.WithU64At(vm.Pusha, vm.NewAddress(vm.TagProgram, addr).Pack()))
		c.currentBlock().Push(vm.SizeString)
		return nil

	case *ast.Ident:
		return c.compileIdent(e)

	case *ast.Call:
		return c.compileCall(e)

	case *ast.MemberCall:
		return c.compileMemberCall(e)

	case *ast.BinaryExpr:
		return c.compileBinaryExpr(e)

	case *ast.UnaryExpr:
		return c.compileUnaryExpr(e)

	default:
		return ErrNotImplemented
	}
}

func (c *Compiler) compileIdent(e *ast.Ident) error {
	name := e.Segments[len(e.Segments)-1]
	typ, offset, err := c.resolveVar(name)
	if err != nil {
		return err
	}
	size, err := c.sizeOfType(typ)
	if err != nil {
		return err
	}
	c.emitDup(typ, offset, size)
	c.currentBlock().Push(int64(size))
	return nil
}

// emitDup pushes the right SDUP* opcode for typ's representation.
func (c *Compiler) emitDup(typ ast.Type, offset int64, size int) {
	switch typ.Kind {
	case ast.KindInt:
		c.builder.Push(vm.WithI64At(vm.Sdupi, offset))
	case ast.KindFloat:
		c.builder.Push(vm.WithI64At(vm.Sdupf, offset))
	case ast.KindBool:
		c.builder.Push(vm.WithI64At(vm.Sdupb, offset))
	case ast.KindReference:
		c.builder.Push(vm.WithI64At(vm.Sdupa, offset))
	default:
		c.builder.Push(vm.WithOffsetAndSize(vm.Sdupn, offset, uint64(size)))
	}
}

// compileCall compiles a direct function call: each argument in order,
// then CALL uid. Grounded on compiler.rs's compile_call_expr.
func (c *Compiler) compileCall(e *ast.Call) error {
	def, err := c.resolveFunction(e.Callee)
	if err != nil {
		return err
	}
	if err := c.compileArgs(def.Params, e.Args); err != nil {
		return err
	}
	c.builder.Push(vm.WithU64At(vm.Call, def.UID))

	retSize, err := c.sizeOfType(def.Ret)
	if err != nil {
		return err
	}
	c.currentBlock().Push(int64(retSize))
	return nil
}

// compileMemberCall resolves the target's container type, pushes `this`
// (by reference), then the remaining arguments, then CALL. Grounded on
// compiler.rs's compile_member_access_expr.
func (c *Compiler) compileMemberCall(e *ast.MemberCall) error {
	targetType, err := NewChecker(c).CheckExprType(e.Target)
	if err != nil {
		return err
	}
	cont, err := c.resolveContainerType(targetType)
	if err != nil {
		return err
	}
	fn, err := cont.Function(e.Method)
	if err != nil {
		return err
	}
	if len(fn.Params) == 0 || fn.Params[0].Name != "this" {
		return ErrMissingThisReceiver
	}

	if err := c.pushThis(e.Target, targetType); err != nil {
		return err
	}

	if err := c.compileArgs(fn.Params[1:], e.Args); err != nil {
		return err
	}
	c.builder.Push(vm.WithU64At(vm.Call, fn.UID))

	retSize, err := c.sizeOfType(fn.Ret)
	if err != nil {
		return err
	}
	c.currentBlock().Push(int64(retSize))
	return nil
}

// pushThis pushes the address of target onto the stack: SDUPA if target is
// already a reference variable, SREF (take-the-address-of) if target is
// the container value itself.
func (c *Compiler) pushThis(target ast.Expr, targetType ast.Type) error {
	ident, ok := target.(*ast.Ident)
	if !ok {
		return ErrMissingThisReceiver
	}
	name := ident.Segments[len(ident.Segments)-1]
	_, offset, err := c.resolveVar(name)
	if err != nil {
		return err
	}

	if targetType.Kind == ast.KindReference {
		c.builder.Push(vm.WithI64At(vm.Sdupa, offset))
	} else {
		c.builder.Push(vm.WithI64At(vm.Sref, offset))
	}
	c.currentBlock().Push(vm.SizeReference)
	return nil
}

// compileArgs validates arg count/types against params then compiles each
// argument expression in order.
func (c *Compiler) compileArgs(params []ast.Param, args []ast.Expr) error {
	if len(params) != len(args) {
		return ErrInvalidArgumentCount
	}
	for i, arg := range args {
		got, err := NewChecker(c).CheckExprType(arg)
		if err != nil {
			return err
		}
		if !got.Equal(params[i].Type) {
			return &ErrTypeMismatch{Context: "argument " + params[i].Name, Expected: params[i].Type.String(), Got: got.String()}
		}
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	return nil
}

// compileBinaryExpr compiles both operands then the arithmetic/comparison
// opcode matching their (already type-checked, identical) operand type.
func (c *Compiler) compileBinaryExpr(e *ast.BinaryExpr) error {
	lhsType, err := NewChecker(c).CheckExprType(e.Left)
	if err != nil {
		return err
	}
	rhsType, err := NewChecker(c).CheckExprType(e.Right)
	if err != nil {
		return err
	}
	if !lhsType.Equal(rhsType) {
		return &ErrTypeMismatch{Context: "binary expression", Expected: lhsType.String(), Got: rhsType.String()}
	}

	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}

	operandSize, err := c.sizeOfType(lhsType)
	if err != nil {
		return err
	}

	op, resultSize, err := binaryOpcode(e.Op, lhsType.Kind)
	if err != nil {
		return err
	}
	c.builder.Push(vm.NewInstruction(op))
	if e.Op == ast.OpNeq {
		c.builder.Push(vm.NewInstruction(vm.Not))
	}

	c.currentBlock().Pop(int64(operandSize) * 2)
	c.currentBlock().Push(int64(resultSize))
	return nil
}

// binaryOpcode maps a binary operator plus operand kind to its opcode and
// result size. Only Int and Float operands have an opcode family - Bool,
// String, Reference and container operands are rejected, mirroring
// compiler.rs's own Type::Int/Type::Float match with an unimplemented/
// NotImplemented fallthrough for every other type. OpNeq reuses Eq followed
// by a NOT, emitted by the caller.
func binaryOpcode(op ast.BinaryOp, kind ast.Kind) (vm.Opcode, int, error) {
	if kind != ast.KindInt && kind != ast.KindFloat {
		return 0, 0, ErrNotImplemented
	}
	isFloat := kind == ast.KindFloat
	switch op {
	case ast.OpAdd:
		if isFloat {
			return vm.Addf, vm.SizeFloat, nil
		}
		return vm.Addi, vm.SizeInt, nil
	case ast.OpSub:
		if isFloat {
			return vm.Subf, vm.SizeFloat, nil
		}
		return vm.Subi, vm.SizeInt, nil
	case ast.OpMul:
		if isFloat {
			return vm.Mulf, vm.SizeFloat, nil
		}
		return vm.Muli, vm.SizeInt, nil
	case ast.OpDiv:
		if isFloat {
			return vm.Divf, vm.SizeFloat, nil
		}
		return vm.Divi, vm.SizeInt, nil
	case ast.OpEq, ast.OpNeq:
		if isFloat {
			return vm.Eqf, vm.SizeBool, nil
		}
		return vm.Eqi, vm.SizeBool, nil
	case ast.OpLt:
		if isFloat {
			return vm.Ltf, vm.SizeBool, nil
		}
		return vm.Lti, vm.SizeBool, nil
	case ast.OpGt:
		if isFloat {
			return vm.Gtf, vm.SizeBool, nil
		}
		return vm.Gti, vm.SizeBool, nil
	case ast.OpLtEq:
		if isFloat {
			return vm.Lteqf, vm.SizeBool, nil
		}
		return vm.Lteqi, vm.SizeBool, nil
	case ast.OpGtEq:
		if isFloat {
			return vm.Gteqf, vm.SizeBool, nil
		}
		return vm.Gteqi, vm.SizeBool, nil
	default:
		return 0, 0, ErrNotImplemented
	}
}

// compileUnaryExpr compiles logical negation: the operand's single byte is
// replaced in place by NOT, so no net stack size change.
func (c *Compiler) compileUnaryExpr(e *ast.UnaryExpr) error {
	if err := c.compileExpr(e.Operand); err != nil {
		return err
	}
	c.builder.Push(vm.NewInstruction(vm.Not))
	return nil
}

func encodeF32(v float32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	return buf
}
