package compiler

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/ktstephano/pscript/ast"
	"github.com/ktstephano/pscript/vm"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

// buildAndRun declares and compiles mod, then runs entryName and returns
// the raw bytes left on the stack (sized size) once execution halts.
func buildAndRun(t *testing.T, mod *ast.ModuleDecl, entryName string, size int) []byte {
	t.Helper()
	c := New()
	assert(t, c.Declare(mod) == nil, "declare failed")
	assert(t, c.Compile(mod) == nil, "compile failed")
	program, err := c.Program()
	assert(t, err == nil, "program assembly failed: %v", err)

	uid, ok := c.FunctionUID(entryName)
	assert(t, ok, "no UID minted for %s", entryName)

	machine := vm.New(0)
	machine.LoadProgram(program)
	err = machine.RunFunc(uid)
	assert(t, err == nil, "run failed: %v", err)

	if size == 0 {
		return nil
	}
	b, err := machine.GetStack(int64(-size), size)
	assert(t, err == nil, "reading result failed: %v", err)
	return b
}

func decodeI64(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }
func decodeBool(b []byte) bool { return b[0] != 0 }

// add(a, b) { return a + b; } ; main() { return add(3, 4); }
func TestCompileCallAndArithmetic(t *testing.T) {
	mod := &ast.ModuleDecl{Decls: []ast.Decl{
		&ast.FunctionDecl{
			Name:    "add",
			Params:  []ast.Param{{Name: "a", Type: ast.Int}, {Name: "b", Type: ast.Int}},
			Returns: ast.Int,
			Body: []ast.Stmt{
				&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: ast.OpAdd, Left: ast.SimpleIdent("a"), Right: ast.SimpleIdent("b")}},
			},
		},
		&ast.FunctionDecl{
			Name:    "main",
			Returns: ast.Int,
			Body: []ast.Stmt{
				&ast.ReturnStmt{Value: &ast.Call{
					Callee: *ast.SimpleIdent("add"),
					Args:   []ast.Expr{&ast.IntLit{Value: 3}, &ast.IntLit{Value: 4}},
				}},
			},
		},
	}}

	got := buildAndRun(t, mod, "main", vm.SizeInt)
	assert(t, decodeI64(got) == 7, "expected 7, got %d", decodeI64(got))
}

// main() { var total: Int = 0; var i: Int = 0; while (i < 5) { total += i;
// i += 1; } return total; } — sums 0..4 == 10, exercising a while loop and
// compound-assign desugaring via the += path.
func TestCompileWhileLoopSum(t *testing.T) {
	body := []ast.Stmt{
		&ast.VarDeclStmt{Name: "total", Type: ast.Int, Init: &ast.IntLit{Value: 0}},
		&ast.VarDeclStmt{Name: "i", Type: ast.Int, Init: &ast.IntLit{Value: 0}},
		&ast.WhileStmt{
			Cond: &ast.BinaryExpr{Op: ast.OpLt, Left: ast.SimpleIdent("i"), Right: &ast.IntLit{Value: 5}},
			Body: []ast.Stmt{
				&ast.AssignStmt{Target: ast.SimpleIdent("total"), Op: ast.AssignAdd, Value: ast.SimpleIdent("i")},
				&ast.AssignStmt{Target: ast.SimpleIdent("i"), Op: ast.AssignAdd, Value: &ast.IntLit{Value: 1}},
			},
		},
		&ast.ReturnStmt{Value: ast.SimpleIdent("total")},
	}
	mod := &ast.ModuleDecl{Decls: []ast.Decl{
		&ast.FunctionDecl{Name: "main", Returns: ast.Int, Body: body},
	}}

	got := buildAndRun(t, mod, "main", vm.SizeInt)
	assert(t, decodeI64(got) == 10, "expected 10, got %d", decodeI64(got))
}

// main() { var i: Int = 0; while (true) { if (i == 3) { break; } i = i + 1;
// } return i; } — exercises break patching lands past the loop, not at
// offset zero.
func TestCompileBreakExitsLoop(t *testing.T) {
	body := []ast.Stmt{
		&ast.VarDeclStmt{Name: "i", Type: ast.Int, Init: &ast.IntLit{Value: 0}},
		&ast.WhileStmt{
			Cond: &ast.BoolLit{Value: true},
			Body: []ast.Stmt{
				&ast.IfStmt{
					Cond: &ast.BinaryExpr{Op: ast.OpEq, Left: ast.SimpleIdent("i"), Right: &ast.IntLit{Value: 3}},
					Body: []ast.Stmt{&ast.BreakStmt{}},
				},
				&ast.AssignStmt{Target: ast.SimpleIdent("i"), Op: ast.AssignSet, Value: &ast.BinaryExpr{Op: ast.OpAdd, Left: ast.SimpleIdent("i"), Right: &ast.IntLit{Value: 1}}},
			},
		},
		&ast.ReturnStmt{Value: ast.SimpleIdent("i")},
	}
	mod := &ast.ModuleDecl{Decls: []ast.Decl{
		&ast.FunctionDecl{Name: "main", Returns: ast.Int, Body: body},
	}}

	got := buildAndRun(t, mod, "main", vm.SizeInt)
	assert(t, decodeI64(got) == 3, "expected loop to exit with i == 3, got %d", decodeI64(got))
}

// main() { var i: Int = 0; var total: Int = 0; while (true) { var junk: Int
// = 99; if (i == 3) { break; } total = total + i; i = i + 1; } return
// total; } — junk is a loop-body local still on the stack at the point of
// break, so break must pop it (and everything else the body pushed since
// the loop started) before jumping clear, or the stack offsets the
// compiler computed for `total`/`i` after the loop no longer match the
// runtime SP. Sums 0+1+2 == 3.
func TestCompileBreakUnwindsLocalsPushedInLoopBody(t *testing.T) {
	body := []ast.Stmt{
		&ast.VarDeclStmt{Name: "i", Type: ast.Int, Init: &ast.IntLit{Value: 0}},
		&ast.VarDeclStmt{Name: "total", Type: ast.Int, Init: &ast.IntLit{Value: 0}},
		&ast.WhileStmt{
			Cond: &ast.BoolLit{Value: true},
			Body: []ast.Stmt{
				&ast.VarDeclStmt{Name: "junk", Type: ast.Int, Init: &ast.IntLit{Value: 99}},
				&ast.IfStmt{
					Cond: &ast.BinaryExpr{Op: ast.OpEq, Left: ast.SimpleIdent("i"), Right: &ast.IntLit{Value: 3}},
					Body: []ast.Stmt{&ast.BreakStmt{}},
				},
				&ast.AssignStmt{Target: ast.SimpleIdent("total"), Op: ast.AssignAdd, Value: ast.SimpleIdent("i")},
				&ast.AssignStmt{Target: ast.SimpleIdent("i"), Op: ast.AssignSet, Value: &ast.BinaryExpr{Op: ast.OpAdd, Left: ast.SimpleIdent("i"), Right: &ast.IntLit{Value: 1}}},
			},
		},
		&ast.ReturnStmt{Value: ast.SimpleIdent("total")},
	}
	mod := &ast.ModuleDecl{Decls: []ast.Decl{
		&ast.FunctionDecl{Name: "main", Returns: ast.Int, Body: body},
	}}

	got := buildAndRun(t, mod, "main", vm.SizeInt)
	assert(t, decodeI64(got) == 3, "expected total == 0+1+2 == 3, got %d", decodeI64(got))
}

// Declaring a container and an impl block registers the container's
// members and mints a UID for its bound method under its mangled
// `Container::method` name - exercised here without a full Compile/Run,
// since a container-typed local has no literal initializer syntax in this
// AST (a var declaration always needs an Init expression, and no expression
// node produces a container value).
func TestDeclareContainerAndImpl(t *testing.T) {
	pointMembers := []ast.Param{{Name: "x", Type: ast.Int}, {Name: "y", Type: ast.Int}}
	mod := &ast.ModuleDecl{Decls: []ast.Decl{
		&ast.ContainerDecl{Name: "Point", Members: pointMembers},
		&ast.ImplDecl{Container: "Point", Funcs: []ast.Decl{
			&ast.FunctionDecl{
				Name:    "magic",
				Params:  []ast.Param{{Name: "this", Type: ast.Reference(ast.Other("Point"))}},
				Returns: ast.Int,
				Body: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.IntLit{Value: 42}},
				},
			},
		}},
	}}

	c := New()
	assert(t, c.Declare(mod) == nil, "declare failed")

	cont, err := c.resolveContainer("Point")
	assert(t, err == nil, "expected Point to resolve, got %v", err)
	size, err := cont.Size(c.sizeOfType)
	assert(t, err == nil, "expected Point to size, got %v", err)
	assert(t, size == 2*vm.SizeInt, "expected Point to be %d bytes, got %d", 2*vm.SizeInt, size)

	fn, err := cont.Function("magic")
	assert(t, err == nil, "expected magic to be registered on Point, got %v", err)
	assert(t, fn.Ret.Equal(ast.Int), "expected magic to return Int, got %s", fn.Ret)

	_, ok := c.FunctionUID("Point::magic")
	assert(t, ok, "expected a UID minted for Point::magic")
}

func TestCheckerCatchesTypeMismatch(t *testing.T) {
	c := New()
	root := &ast.ModuleDecl{Decls: []ast.Decl{
		&ast.FunctionDecl{Name: "main", Returns: ast.Void, Body: []ast.Stmt{}},
	}}
	assert(t, c.Declare(root) == nil, "declare failed")

	ctx := NewFunctionContext(&FunctionDef{Name: "main", Ret: ast.Void})
	c.pushBlock(ctx)
	ctx.SetVar("n", ast.Int, 8)
	ctx.Push(8)

	_, err := NewChecker(c).CheckExprType(&ast.BinaryExpr{Op: ast.OpAdd, Left: ast.SimpleIdent("n"), Right: &ast.BoolLit{Value: true}})
	var mismatch *ErrTypeMismatch
	assert(t, err != nil, "expected a type mismatch error")
	ok := false
	if e, isMismatch := err.(*ErrTypeMismatch); isMismatch {
		mismatch = e
		ok = true
	}
	assert(t, ok, "expected *ErrTypeMismatch, got %T: %v", err, err)
	assert(t, mismatch.Expected == "int", "expected lhs type int, got %s", mismatch.Expected)
}

func TestResolveFunctionUnknown(t *testing.T) {
	c := New()
	root := &ast.ModuleDecl{}
	assert(t, c.Declare(root) == nil, "declare failed")
	_, err := c.resolveFunction(*ast.SimpleIdent("nope"))
	assert(t, err != nil, "expected an error resolving an undeclared function")
}

func TestBreakOutsideLoopErrors(t *testing.T) {
	mod := &ast.ModuleDecl{Decls: []ast.Decl{
		&ast.FunctionDecl{Name: "main", Returns: ast.Void, Body: []ast.Stmt{
			&ast.BreakStmt{},
		}},
	}}
	c := New()
	assert(t, c.Declare(mod) == nil, "declare failed")
	err := c.Compile(mod)
	assert(t, err == ErrBreakOutsideLoop, "expected ErrBreakOutsideLoop, got %v", err)
}
