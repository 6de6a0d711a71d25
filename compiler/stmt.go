package compiler

import (
	"github.com/ktstephano/pscript/ast"
	"github.com/ktstephano/pscript/vm"
)

// compileStatementList compiles each statement in order.
func (c *Compiler) compileStatementList(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := c.compileStatement(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStatement(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		return c.compileVarDeclStmt(s)
	case *ast.AssignStmt:
		return c.compileAssignStmt(s)
	case *ast.IfStmt:
		return c.compileIfStmt(s)
	case *ast.WhileStmt:
		return c.compileWhileStmt(s)
	case *ast.BreakStmt:
		return c.compileBreakStmt(s)
	case *ast.ContinueStmt:
		return c.compileContinueStmt(s)
	case *ast.ReturnStmt:
		return c.compileReturnStmt(s)
	case *ast.ExprStmt:
		return c.compileExprStmt(s)
	default:
		return ErrNotImplemented
	}
}

// compileVarDeclStmt evaluates Init (leaving its value on the stack) and
// declares Name as occupying the bytes that just landed. Grounded on
// compiler.rs's compile_var_decl_stmt.
func (c *Compiler) compileVarDeclStmt(s *ast.VarDeclStmt) error {
	got, err := NewChecker(c).CheckExprType(s.Init)
	if err != nil {
		return err
	}
	if !got.Equal(s.Type) {
		return &ErrTypeMismatch{Context: "var " + s.Name, Expected: s.Type.String(), Got: got.String()}
	}
	if err := c.compileExpr(s.Init); err != nil {
		return err
	}
	size, err := c.sizeOfType(s.Type)
	if err != nil {
		return err
	}
	c.currentBlock().SetVar(s.Name, s.Type, int64(size))
	return nil
}

// compileAssignStmt desugars AddAssign/SubAssign/MulAssign/DivAssign into a
// plain Assign(var, BinaryOp(var, value)) before compiling, mirroring
// compiler.rs's compile_stmt_expr.
func (c *Compiler) compileAssignStmt(s *ast.AssignStmt) error {
	value := s.Value
	if op, ok := compoundOp(s.Op); ok {
		value = &ast.BinaryExpr{Op: op, Left: s.Target, Right: s.Value}
	}

	ident, ok := s.Target.(*ast.Ident)
	if !ok {
		return ErrUnsupportedStmtExpr
	}
	name := ident.Segments[len(ident.Segments)-1]

	varType, _, err := c.resolveVar(name)
	if err != nil {
		return err
	}
	got, err := NewChecker(c).CheckExprType(value)
	if err != nil {
		return err
	}
	if !got.Equal(varType) {
		return &ErrTypeMismatch{Context: "assignment to " + name, Expected: varType.String(), Got: got.String()}
	}

	if err := c.compileExpr(value); err != nil {
		return err
	}

	// SMOV measures its offset from SP with the value still pushed.
	_, offset, err := c.resolveVar(name)
	if err != nil {
		return err
	}
	size, err := c.sizeOfType(varType)
	if err != nil {
		return err
	}

	switch varType.Kind {
	case ast.KindInt:
		c.builder.Push(vm.WithI64At(vm.Smovi, offset))
	case ast.KindFloat:
		c.builder.Push(vm.WithI64At(vm.Smovf, offset))
	default:
		c.builder.Push(vm.WithOffsetAndSize(vm.Smovn, offset, uint64(size)))
	}
	c.currentBlock().Pop(int64(size))
	return nil
}

// compoundOp maps a compound assignment operator to the binary operator it
// desugars through, e.g. AssignAdd -> target = target + value.
func compoundOp(op ast.AssignOp) (ast.BinaryOp, bool) {
	switch op {
	case ast.AssignAdd:
		return ast.OpAdd, true
	case ast.AssignSub:
		return ast.OpSub, true
	case ast.AssignMul:
		return ast.OpMul, true
	case ast.AssignDiv:
		return ast.OpDiv, true
	default:
		return 0, false
	}
}

// compileIfStmt emits: Cond, JMPF -> past body, Body. JMPF jumps only when
// the popped condition is false, so the body falls straight through when
// it's true. Grounded on compiler.rs's compile_if_stmt.
func (c *Compiler) compileIfStmt(s *ast.IfStmt) error {
	got, err := NewChecker(c).CheckExprType(s.Cond)
	if err != nil {
		return err
	}
	if !got.Equal(ast.Bool) {
		return ErrIfWantsBool
	}
	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	c.currentBlock().Pop(int64(vm.SizeBool))

	jmpfIdx := len(c.builder.instructions)
	c.builder.Push(vm.WithI64At(vm.Jmpf, 0))

	blk := NewWeakFunctionContext(c.currentBlock())
	c.pushBlock(blk)
	if err := c.compileStatementList(s.Body); err != nil {
		return err
	}
	if blk.BlockSize != 0 {
		c.builder.Push(vm.WithI64At(vm.Popn, blk.BlockSize))
	}
	c.popBlock()
	blk.Frame.Total -= blk.BlockSize

	target := int64(c.builder.CurrentOffset())
	*c.builder.InstructionAt(jmpfIdx) = vm.WithI64At(vm.Jmpf, target)
	return nil
}

// compileWhileStmt emits: [loop start] Cond, JMPF -> past body, Body, JMP ->
// loop start, [loop end]. Grounded on compiler.rs's compile_while_stmt.
func (c *Compiler) compileWhileStmt(s *ast.WhileStmt) error {
	got, err := NewChecker(c).CheckExprType(s.Cond)
	if err != nil {
		return err
	}
	if !got.Equal(ast.Bool) {
		return ErrWhileWantsBool
	}

	loopStart := c.builder.CurrentOffset()
	loop := NewLoopContext(loopStart, LoopWhile)
	c.pushLoop(loop)

	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	c.currentBlock().Pop(int64(vm.SizeBool))
	loop.FrameBase = c.currentBlock().Frame.Total

	jmpfIdx := len(c.builder.instructions)
	c.builder.Push(vm.WithI64At(vm.Jmpf, 0))

	blk := NewWeakFunctionContext(c.currentBlock())
	c.pushBlock(blk)
	if err := c.compileStatementList(s.Body); err != nil {
		return err
	}
	if blk.BlockSize != 0 {
		c.builder.Push(vm.WithI64At(vm.Popn, blk.BlockSize))
	}
	c.popBlock()
	blk.Frame.Total -= blk.BlockSize

	c.builder.Push(vm.WithI64At(vm.Jmp, int64(loopStart)))

	end := int64(c.builder.CurrentOffset())
	c.builder.instructions[jmpfIdx] = vm.WithI64At(vm.Jmpf, end)

	c.popLoop()
	for _, idx := range loop.BreakTags {
		*c.builder.InstructionAt(int(idx)) = vm.WithI64At(vm.Jmp, end)
	}
	return nil
}

// compileBreakStmt jumps straight to an address patched in once the
// enclosing loop's compileWhileStmt knows where its body ends - emitted as
// a forward JMP tagged for later rewriting is unnecessary here since the
// loop already rewrites its own trailing JMPF; break instead jumps to the
// same loop-end offset via a second pass: we emit a JMP now and record its
// builder index so the loop can overwrite it once the end is known.
func (c *Compiler) compileBreakStmt(s *ast.BreakStmt) error {
	loop, err := c.currentLoop(ErrBreakOutsideLoop)
	if err != nil {
		return err
	}
	c.emitLoopUnwind(loop)
	idx := len(c.builder.instructions)
	c.builder.Push(vm.WithI64At(vm.Jmp, 0))
	loop.BreakTags = append(loop.BreakTags, uint64(idx))
	return nil
}

// compileContinueStmt jumps back to the loop's condition check.
func (c *Compiler) compileContinueStmt(s *ast.ContinueStmt) error {
	loop, err := c.currentLoop(ErrContinueOutsideLoop)
	if err != nil {
		return err
	}
	c.emitLoopUnwind(loop)
	c.builder.Push(vm.WithI64At(vm.Jmp, int64(loop.InstrStart)))
	return nil
}

// emitLoopUnwind pops however many bytes the loop body has pushed since it
// started - however many nested blocks deep the break/continue is - so the
// jump target's static stack bookkeeping still matches the runtime SP.
// Grounded on compiler.rs's compile_break_stmt/compile_continue_stmt, which
// compute the same popn_size from the innermost function context's
// stack_size before emitting JMP.
func (c *Compiler) emitLoopUnwind(loop *LoopContext) {
	popSize := c.currentBlock().Frame.Total - loop.FrameBase
	if popSize > 0 {
		c.builder.Push(vm.WithI64At(vm.Popn, popSize))
	}
}

// compileReturnStmt compiles the optional return value, saves it to the
// scratch swap buffer, tears the whole function frame down with a single
// POPN, restores the value from swap, then emits RET. Grounded on
// compiler.rs's compile_return_stmt; the original sums stack_size across
// every nested fn_context by hand, which here is just Frame.Total already.
func (c *Compiler) compileReturnStmt(s *ast.ReturnStmt) error {
	blk := c.currentBlock()
	frame := blk.Frame

	size := 0
	if s.Value != nil {
		got, err := NewChecker(c).CheckExprType(s.Value)
		if err != nil {
			return err
		}
		if !got.Equal(blk.ReturnType) {
			return &ErrTypeMismatch{Context: "return", Expected: blk.ReturnType.String(), Got: got.String()}
		}
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		size, err = c.sizeOfType(blk.ReturnType)
		if err != nil {
			return err
		}
	}

	if size > 0 {
		c.emitSaveSwap(size)
	}

	popSize := frame.Total - int64(size)
	if popSize > 0 {
		c.builder.Push(vm.WithI64At(vm.Popn, popSize))
	}

	if size > 0 {
		c.emitLoadSwap(size)
	}

	c.builder.Push(vm.NewInstruction(vm.Ret))
	return nil
}

func (c *Compiler) emitSaveSwap(size int) {
	switch size {
	case vm.SizeInt:
		c.builder.Push(vm.NewInstruction(vm.Svswpi))
	case vm.SizeFloat:
		c.builder.Push(vm.NewInstruction(vm.Svswpf))
	case vm.SizeBool:
		c.builder.Push(vm.NewInstruction(vm.Svswpb))
	default:
		c.builder.Push(vm.WithI64At(vm.Svswpn, int64(size)))
	}
}

func (c *Compiler) emitLoadSwap(size int) {
	switch size {
	case vm.SizeInt:
		c.builder.Push(vm.NewInstruction(vm.Ldswpi))
	case vm.SizeFloat:
		c.builder.Push(vm.NewInstruction(vm.Ldswpf))
	case vm.SizeBool:
		c.builder.Push(vm.NewInstruction(vm.Ldswpb))
	default:
		c.builder.Push(vm.WithI64At(vm.Ldswpn, int64(size)))
	}
}

// compileExprStmt compiles a call used for its side effects, discarding any
// return value it leaves behind. Grounded on compiler.rs's
// compile_call_stmt_expr.
func (c *Compiler) compileExprStmt(s *ast.ExprStmt) error {
	var retType ast.Type
	switch e := s.Expr.(type) {
	case *ast.Call:
		def, err := c.resolveFunction(e.Callee)
		if err != nil {
			return err
		}
		retType = def.Ret
	case *ast.MemberCall:
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
		retType = fn.Ret
	default:
		return ErrUnsupportedStmtExpr
	}

	if err := c.compileExpr(s.Expr); err != nil {
		return err
	}

	size, err := c.sizeOfType(retType)
	if err != nil {
		return err
	}
	if size > 0 {
		c.builder.Push(vm.WithI64At(vm.Popn, int64(size)))
		c.currentBlock().Pop(int64(size))
	}
	return nil
}
