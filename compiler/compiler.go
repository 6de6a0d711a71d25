package compiler

import (
	"encoding/binary"
	"strings"

	"github.com/ktstephano/pscript/ast"
	"github.com/ktstephano/pscript/vm"
)

// Compiler turns a declaration tree into a vm.Program in two passes:
// Declare walks every module/function/container signature first (so a
// function can call another declared later in the same or a sibling
// module), then Compile walks the same tree again and emits instructions
// for every function body. Grounded on
// original_source/pgs/pgs/src/codegen/compiler.rs's Compiler, restructured
// from its VecDeque-of-contexts fields into plain Go slices used as
// stacks.
type Compiler struct {
	root     *ModuleContext
	modStack []*ModuleContext // index 0 = innermost active module

	blocks []*FunctionContext // index 0 = innermost active block
	loops  []*LoopContext

	builder *Builder
	data    *Data

	funcUIDs   map[string]uint64
	nextUID    uint64
	foreignSet map[uint64]bool

	currentContainer string
}

// New starts a compiler with an empty root module.
func New() *Compiler {
	root := NewModuleContext("")
	return &Compiler{
		root:       root,
		modStack:   []*ModuleContext{root},
		builder:    NewBuilder(),
		data:       NewData(),
		funcUIDs:   map[string]uint64{},
		foreignSet: map[uint64]bool{},
	}
}

// currentModule returns the innermost module currently being declared or
// compiled.
func (c *Compiler) currentModule() *ModuleContext {
	return c.modStack[0]
}

// nextFunctionUID mints a new UID the first time name is seen, or returns
// the one already minted for it. A monotonic counter stands in for
// original_source's rand::thread_rng()-based UIDs: uniqueness within one
// compiled program is all CALL needs, and a counter keeps compiled output
// reproducible across runs, which cmd/pscriptvm's fixed std UIDs rely on.
func (c *Compiler) nextFunctionUID(name string) uint64 {
	if uid, ok := c.funcUIDs[name]; ok {
		return uid
	}
	c.nextUID++
	uid := c.nextUID
	c.funcUIDs[name] = uid
	return uid
}

// FunctionUID resolves a fully-qualified (`mod::sub::name`) function name
// to the UID minted for it during compilation. A host wires a foreign
// module's callbacks into a VM through this, since RegisterForeign needs
// the UID CALL actually carries, not the source-level name.
func (c *Compiler) FunctionUID(name string) (uint64, bool) {
	uid, ok := c.funcUIDs[name]
	return uid, ok
}

// fullName prefixes name with the active module path and, if compiling
// inside an impl block, the container name - mirrors
// compiler.rs's get_full_function_name.
func (c *Compiler) fullName(name string) string {
	var b strings.Builder
	for i := len(c.modStack) - 2; i >= 0; i-- {
		b.WriteString(c.modStack[i].Name)
		b.WriteString("::")
	}
	if c.currentContainer != "" {
		b.WriteString(c.currentContainer)
		b.WriteString("::")
	}
	b.WriteString(name)
	return b.String()
}

// sizeOfType returns the byte footprint of t per the fixed size table,
// resolving Other(name) against the currently known containers.
func (c *Compiler) sizeOfType(t ast.Type) (int, error) {
	switch t.Kind {
	case ast.KindInt:
		return vm.SizeInt, nil
	case ast.KindFloat:
		return vm.SizeFloat, nil
	case ast.KindBool:
		return vm.SizeBool, nil
	case ast.KindString:
		return vm.SizeString, nil
	case ast.KindVoid:
		return vm.SizeVoid, nil
	case ast.KindReference:
		if t.Elem != nil && t.Elem.Kind == ast.KindAutoArray {
			return vm.SizeString, nil
		}
		return vm.SizeReference, nil
	case ast.KindOther:
		cont, err := c.resolveContainer(t.Name)
		if err != nil {
			return 0, err
		}
		return cont.Size(c.sizeOfType)
	default:
		return 0, ErrUnknownType
	}
}

// resolveContainer looks a container definition up by its declared name,
// searching the active module chain from innermost to the root.
func (c *Compiler) resolveContainer(name string) (*ContainerDef, error) {
	for _, mod := range c.modStack {
		if cont, ok := mod.Container(name); ok {
			return cont, nil
		}
	}
	if cont, ok := c.root.Container(name); ok {
		return cont, nil
	}
	return nil, ErrUnknownContainer
}

// resolveContainerType unwraps t (which must be Other or Reference(Other))
// down to its ContainerDef.
func (c *Compiler) resolveContainerType(t ast.Type) (*ContainerDef, error) {
	switch {
	case t.Kind == ast.KindOther:
		return c.resolveContainer(t.Name)
	case t.Kind == ast.KindReference && t.Elem != nil && t.Elem.Kind == ast.KindOther:
		return c.resolveContainer(t.Elem.Name)
	default:
		return nil, ErrUnknownContainer
	}
}

// resolveFunction looks a function up by the last segment of its
// identifier, searching the active module chain from innermost to root.
// Qualifying segments (`mod::`, `root::`, `super::`) are ignored: child
// modules that are not on the active chain and import aliases are not
// searched.
func (c *Compiler) resolveFunction(id ast.Ident) (*FunctionDef, error) {
	name := id.Segments[len(id.Segments)-1]
	for _, mod := range c.modStack {
		if fn, ok := mod.Function(name); ok {
			return fn, nil
		}
	}
	if fn, ok := c.root.Function(name); ok {
		return fn, nil
	}
	return nil, &ErrUnknownFunction{Name: name}
}

// typeOfVar searches the active block chain from innermost to outermost
// for name, generalizing original_source's front-context-only lookup so a
// nested if/while body can see a variable declared by an enclosing one.
func (c *Compiler) typeOfVar(name string) (ast.Type, bool) {
	for _, blk := range c.blocks {
		if v, ok := blk.lookup(name); ok {
			return v.typ, true
		}
	}
	return ast.Type{}, false
}

// resolveVar searches the active block chain for name and returns its
// type plus its SP-relative offset for the current Frame state.
func (c *Compiler) resolveVar(name string) (ast.Type, int64, error) {
	for _, blk := range c.blocks {
		if v, ok := blk.lookup(name); ok {
			return v.typ, v.relativeOffset(blk.Frame), nil
		}
	}
	return ast.Type{}, 0, &ErrUnknownVariable{Name: name}
}

func (c *Compiler) pushBlock(blk *FunctionContext) {
	c.blocks = append([]*FunctionContext{blk}, c.blocks...)
}

func (c *Compiler) popBlock() *FunctionContext {
	blk := c.blocks[0]
	c.blocks = c.blocks[1:]
	return blk
}

func (c *Compiler) currentBlock() *FunctionContext {
	return c.blocks[0]
}

func (c *Compiler) pushLoop(l *LoopContext) {
	c.loops = append([]*LoopContext{l}, c.loops...)
}

func (c *Compiler) popLoop() *LoopContext {
	l := c.loops[0]
	c.loops = c.loops[1:]
	return l
}

func (c *Compiler) currentLoop(outsideErr error) (*LoopContext, error) {
	if len(c.loops) == 0 {
		return nil, outsideErr
	}
	return c.loops[0], nil
}

// Declare walks root, registering every module, function and container
// signature (but emitting no code) so forward references across the tree
// resolve during Compile. Grounded on compiler.rs's decl_decl_list family.
func (c *Compiler) Declare(root *ast.ModuleDecl) error {
	return c.declDeclList(root.Decls)
}

func (c *Compiler) declDeclList(decls []ast.Decl) error {
	for _, d := range decls {
		if err := c.declDecl(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) declDecl(decl ast.Decl) error {
	switch d := decl.(type) {
	case *ast.ModuleDecl:
		return c.declModuleDecl(d)
	case *ast.FunctionDecl:
		return c.declFunctionDecl(d)
	case *ast.ContainerDecl:
		return c.declContainerDecl(d)
	case *ast.ImplDecl:
		return c.declImplDecl(d)
	case *ast.ImportDecl:
		return c.declImportDecl(d)
	default:
		return ErrNotImplemented
	}
}

func (c *Compiler) declModuleDecl(d *ast.ModuleDecl) error {
	mod := NewModuleContext(d.Name)
	c.modStack = append([]*ModuleContext{mod}, c.modStack...)
	if err := c.declDeclList(d.Decls); err != nil {
		return err
	}
	c.modStack = c.modStack[1:]
	return c.currentModule().AddModule(mod)
}

func (c *Compiler) declFunctionDecl(d *ast.FunctionDecl) error {
	name := c.fullName(d.Name)
	def := &FunctionDef{
		Name:    d.Name,
		UID:     c.nextFunctionUID(name),
		Ret:     d.Returns,
		Params:  d.Params,
		Foreign: d.Body == nil,
	}
	if def.Foreign {
		c.foreignSet[def.UID] = true
	}
	return c.currentModule().AddFunction(def)
}

func (c *Compiler) declContainerDecl(d *ast.ContainerDecl) error {
	cont := NewContainerDef(d.Name)
	for _, m := range d.Members {
		cont.AddMember(ContainerMemberDef{Name: m.Name, Type: m.Type})
	}
	return c.currentModule().AddContainer(cont)
}

func (c *Compiler) declImplDecl(d *ast.ImplDecl) error {
	cont, err := c.resolveContainer(d.Container)
	if err != nil {
		return err
	}
	prevContainer := c.currentContainer
	c.currentContainer = d.Container
	defer func() { c.currentContainer = prevContainer }()

	for _, inner := range d.Funcs {
		fd, ok := inner.(*ast.FunctionDecl)
		if !ok {
			return ErrOnlyFunctionsInImpl
		}
		if len(fd.Params) == 0 || fd.Params[0].Name != "this" {
			return ErrMissingThisReceiver
		}
		name := c.fullName(fd.Name)
		uid := c.nextFunctionUID(name)
		if err := cont.AddFunction(fd.Name, ContainerFunctionDef{UID: uid, Ret: fd.Returns, Params: fd.Params}); err != nil {
			return err
		}
		if err := c.currentModule().AddFunction(&FunctionDef{
			Name:    name,
			UID:     uid,
			Ret:     fd.Returns,
			Params:  fd.Params,
			Foreign: fd.Body == nil,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) declImportDecl(d *ast.ImportDecl) error {
	c.currentModule().Imports[d.Alias] = d.Path
	return nil
}

// Compile emits instructions for every function body in root, having
// already been Declare'd. Grounded on compiler.rs's compile_decl_list
// family.
func (c *Compiler) Compile(root *ast.ModuleDecl) error {
	return c.compileDeclList(root.Decls)
}

func (c *Compiler) compileDeclList(decls []ast.Decl) error {
	for _, d := range decls {
		if err := c.compileDecl(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileDecl(decl ast.Decl) error {
	switch d := decl.(type) {
	case *ast.ModuleDecl:
		mod, ok := c.currentModule().Modules[d.Name]
		if !ok {
			return ErrUnknownModule
		}
		c.modStack = append([]*ModuleContext{mod}, c.modStack...)
		err := c.compileDeclList(d.Decls)
		c.modStack = c.modStack[1:]
		return err
	case *ast.FunctionDecl:
		return c.compileFunctionDecl(d.Name, d)
	case *ast.ContainerDecl:
		return nil
	case *ast.ImplDecl:
		return c.compileImplDecl(d)
	case *ast.ImportDecl:
		return nil
	default:
		return ErrNotImplemented
	}
}

func (c *Compiler) compileImplDecl(d *ast.ImplDecl) error {
	prevContainer := c.currentContainer
	c.currentContainer = d.Container
	defer func() { c.currentContainer = prevContainer }()

	for _, inner := range d.Funcs {
		fd, ok := inner.(*ast.FunctionDecl)
		if !ok {
			return ErrOnlyFunctionsInImpl
		}
		if err := c.compileFunctionDecl(fd.Name, fd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileFunctionDecl(localName string, d *ast.FunctionDecl) error {
	if d.Body == nil {
		return nil // foreign prototype, nothing to emit
	}

	name := c.fullName(localName)
	def, ok := c.currentModule().Function(localNameForLookup(c, localName))
	if !ok {
		return &ErrUnknownFunction{Name: name}
	}

	c.builder.Label(name)

	ctx := NewFunctionContext(def)
	c.pushBlock(ctx)

	// Parameters were pushed by the caller, so they sit at negative frame
	// offsets (leftmost lowest) and are not part of this frame's total.
	paramSizes := make([]int64, len(def.Params))
	for i, p := range def.Params {
		size, err := c.sizeOfType(p.Type)
		if err != nil {
			return err
		}
		paramSizes[i] = int64(size)
		ctx.Pop(int64(size))
	}
	for i, p := range def.Params {
		ctx.Push(paramSizes[i])
		ctx.SetVar(p.Name, p.Type, paramSizes[i])
	}

	if err := c.compileStatementList(d.Body); err != nil {
		return err
	}

	if def.Ret.Kind == ast.KindVoid {
		if err := c.compileReturnStmt(&ast.ReturnStmt{}); err != nil {
			return err
		}
	}

	c.popBlock()
	return nil
}

// localNameForLookup picks the key compileFunctionDecl's ModuleContext
// lookup was registered under: a plain function uses its own name, a
// member function was registered under its already-mangled full name.
func localNameForLookup(c *Compiler, localName string) string {
	if c.currentContainer == "" {
		return localName
	}
	return c.fullName(localName)
}

// Program finalizes the builder and data into a vm.Program: the data
// region is prepended to the code, every function offset and jump operand
// is rebased by the data region's length, matching compiler.rs's
// get_program.
func (c *Compiler) Program() (*vm.Program, error) {
	data := c.data.Bytes()
	dataLen := uint64(len(data))

	funcOffsets := map[uint64]uint64{}
	for name, uid := range c.funcUIDs {
		if c.foreignSet[uid] {
			continue
		}
		off, ok := c.builder.LabelOffset(name)
		if !ok {
			continue
		}
		funcOffsets[uid] = uint64(off) + dataLen
	}

	for _, idx := range c.builder.JumpIndexes() {
		instr := c.builder.InstructionAt(idx)
		target := instr.OperandU64() + dataLen
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, target)
		instr.Operand = buf
	}

	code := append(data, c.builder.Build()...)

	return &vm.Program{
		Code:         code,
		DataLen:      dataLen,
		FuncOffsets:  funcOffsets,
		DataPointers: c.data.Pointers(),
	}, nil
}
