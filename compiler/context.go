package compiler

import "github.com/ktstephano/pscript/ast"

// ModuleContext is one level of the module tree being declared: its own
// functions, containers, child modules, and import aliases. Grounded on
// original_source/pgs/pgs/src/codegen/context.rs's ModuleContext.
type ModuleContext struct {
	Name       string
	Modules    map[string]*ModuleContext
	Functions  map[string]*FunctionDef
	Containers map[string]*ContainerDef
	Imports    map[string]string
}

// NewModuleContext starts an empty module named name.
func NewModuleContext(name string) *ModuleContext {
	return &ModuleContext{
		Name:       name,
		Modules:    map[string]*ModuleContext{},
		Functions:  map[string]*FunctionDef{},
		Containers: map[string]*ContainerDef{},
		Imports:    map[string]string{},
	}
}

func (m *ModuleContext) AddFunction(def *FunctionDef) error {
	if _, ok := m.Functions[def.Name]; ok {
		return &ErrDuplicateFunction{Name: def.Name}
	}
	m.Functions[def.Name] = def
	return nil
}

func (m *ModuleContext) AddModule(child *ModuleContext) error {
	if _, ok := m.Modules[child.Name]; ok {
		return ErrUnknownModule
	}
	m.Modules[child.Name] = child
	return nil
}

func (m *ModuleContext) AddContainer(def *ContainerDef) error {
	if _, ok := m.Containers[def.Name]; ok {
		return &ErrDuplicateContainer{Name: def.Name}
	}
	m.Containers[def.Name] = def
	return nil
}

func (m *ModuleContext) Function(name string) (*FunctionDef, bool) {
	f, ok := m.Functions[name]
	return f, ok
}

func (m *ModuleContext) Container(name string) (*ContainerDef, bool) {
	c, ok := m.Containers[name]
	return c, ok
}

// FunctionDef is the pre-declared shape of a function: its UID (so calls
// compiled before the function body exist still know what to CALL), return
// type and parameters. Grounded on
// original_source/pgs/pgs/src/codegen/def.rs's FunctionDef.
type FunctionDef struct {
	Name    string
	UID     uint64
	Ret     ast.Type
	Params  []ast.Param
	Foreign bool
}

// Frame is the running byte counter for one function call's worth of
// stack traffic, shared by every block context active inside that call.
// It plays the role that summing stack_size across
// original_source/pgs/pgs/src/codegen/compiler.rs's whole fn_context_stack
// plays in compile_return_stmt - kept as a single running total instead of
// a sum recomputed on every lookup.
type Frame struct {
	Total int64
}

type localVar struct {
	typ      ast.Type
	absolute int64 // Frame.Total at the moment the value finished being pushed, minus its own size
}

// FunctionContext tracks one lexical block's locals and its share of the
// enclosing Frame's stack traffic - the function body itself, or a nested
// if/while body. A block context's BlockSize is exactly how many bytes it
// personally pushed, which is what its closing POPN needs to unwind;
// Frame.Total (shared with every enclosing block) is what variable offsets
// are computed against, so an inner block can still see and assign to a
// variable declared by an enclosing one.
//
// Grounded on the FunctionContext usage throughout
// original_source/pgs/pgs/src/codegen/compiler.rs (set_var/offset_of/
// stack_size/new_weak) - the context.rs file shipped alongside it is a
// stale stub that predates this usage, so this type matches the call
// sites rather than that file, and additionally lets nested blocks see
// outer locals (original_source's front-context-only lookup could not).
type FunctionContext struct {
	Def        *FunctionDef
	Weak       bool
	ReturnType ast.Type
	Frame      *Frame
	BlockSize  int64

	vars map[string]localVar
}

// NewFunctionContext starts the top-level context for a function body.
func NewFunctionContext(def *FunctionDef) *FunctionContext {
	return &FunctionContext{
		Def:        def,
		ReturnType: def.Ret,
		Frame:      &Frame{},
		vars:       map[string]localVar{},
	}
}

// NewWeakFunctionContext starts a nested block context (if/while body)
// that shares the parent's Frame but starts its own BlockSize at zero, so
// the block's closing POPN only unwinds what the block itself pushed.
func NewWeakFunctionContext(parent *FunctionContext) *FunctionContext {
	return &FunctionContext{
		Def:        parent.Def,
		Weak:       true,
		ReturnType: parent.ReturnType,
		Frame:      parent.Frame,
		vars:       map[string]localVar{},
	}
}

// Push records that size bytes were just pushed onto the stack while this
// context was the active (innermost) one.
func (f *FunctionContext) Push(size int64) {
	f.Frame.Total += size
	f.BlockSize += size
}

// Pop records that size bytes were just popped (or consumed by an operator
// - compileBinaryExpr Pops both operands' bytes, then Pushes the result's).
func (f *FunctionContext) Pop(size int64) {
	f.Frame.Total -= size
	f.BlockSize -= size
}

// SetVar declares name as occupying the size bytes most recently pushed -
// i.e. at frame offset Frame.Total-size, mirroring
// compiler.rs's `front_context.stack_size - size`.
func (f *FunctionContext) SetVar(name string, typ ast.Type, size int64) {
	f.vars[name] = localVar{typ: typ, absolute: f.Frame.Total - size}
}

// lookup returns the declaration for name if this context declared it.
func (f *FunctionContext) lookup(name string) (localVar, bool) {
	v, ok := f.vars[name]
	return v, ok
}

// relativeOffset converts a var's absolute frame offset into the
// SP-relative offset SDUP/SMOV/SREF expect, given the Frame's current
// total.
func (v localVar) relativeOffset(frame *Frame) int64 {
	return v.absolute - frame.Total
}

// LoopType distinguishes the looping constructs break/continue can target.
type LoopType int

const (
	LoopWhile LoopType = iota
)

// LoopContext tracks the information break/continue need while compiling a
// loop body: where continue jumps back to, and the builder instruction
// indexes of pending break jumps to patch once the loop's exit offset is
// known (kept in BreakTags). Grounded on
// original_source/pgs/pgs/src/codegen/compiler.rs's LoopContext usage in
// compile_while_stmt/compile_break_stmt/compile_continue_stmt.
type LoopContext struct {
	Type       LoopType
	InstrStart int
	BreakTags  []uint64
	// FrameBase is the enclosing Frame's Total at the moment the loop body
	// starts compiling - break/continue unwind back down to this, since
	// both jump out from under however many nested blocks the body has
	// pushed by the time they're compiled.
	FrameBase int64
}

// NewLoopContext starts tracking a loop whose continue target is
// instrStart.
func NewLoopContext(instrStart int, typ LoopType) *LoopContext {
	return &LoopContext{Type: typ, InstrStart: instrStart}
}

// AddBreakTag records the builder index of a break's forward jump, to patch
// once the loop's exit offset is known.
func (l *LoopContext) AddBreakTag(tag uint64) {
	l.BreakTags = append(l.BreakTags, tag)
}
