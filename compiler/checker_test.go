package compiler

import (
	"testing"

	"github.com/ktstephano/pscript/ast"
)

func TestCheckerLiteralTypes(t *testing.T) {
	c := New()
	assert(t, c.Declare(&ast.ModuleDecl{}) == nil, "declare failed")
	ch := NewChecker(c)

	cases := []struct {
		expr ast.Expr
		want ast.Type
	}{
		{&ast.IntLit{Value: 1}, ast.Int},
		{&ast.FloatLit{Value: 1.5}, ast.Float},
		{&ast.BoolLit{Value: true}, ast.Bool},
		{&ast.StringLit{Value: "hi"}, ast.String},
	}
	for _, tc := range cases {
		got, err := ch.CheckExprType(tc.expr)
		assert(t, err == nil, "unexpected error checking %T: %v", tc.expr, err)
		assert(t, got.Equal(tc.want), "expected %s, got %s", tc.want, got)
	}
}

func TestCheckerResolvesCallReturnType(t *testing.T) {
	mod := &ast.ModuleDecl{Decls: []ast.Decl{
		&ast.FunctionDecl{Name: "pi", Returns: ast.Float, Body: []ast.Stmt{
			&ast.ReturnStmt{Value: &ast.FloatLit{Value: 3.14}},
		}},
	}}
	c := New()
	assert(t, c.Declare(mod) == nil, "declare failed")

	got, err := NewChecker(c).CheckExprType(&ast.Call{Callee: *ast.SimpleIdent("pi")})
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, got.Equal(ast.Float), "expected pi() to check as Float, got %s", got)
}

func TestCheckerUnknownVariableErrors(t *testing.T) {
	c := New()
	assert(t, c.Declare(&ast.ModuleDecl{}) == nil, "declare failed")
	_, err := NewChecker(c).CheckExprType(ast.SimpleIdent("ghost"))
	assert(t, err != nil, "expected an error for an undeclared identifier")
	_, ok := err.(*ErrUnknownVariable)
	assert(t, ok, "expected *ErrUnknownVariable, got %T", err)
}

func TestCheckerUnaryAlwaysYieldsBool(t *testing.T) {
	c := New()
	assert(t, c.Declare(&ast.ModuleDecl{}) == nil, "declare failed")
	got, err := NewChecker(c).CheckExprType(&ast.UnaryExpr{Operand: &ast.BoolLit{Value: false}})
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, got.Equal(ast.Bool), "expected unary negation to check as Bool, got %s", got)
}

func TestCheckerComparisonYieldsBoolNotOperandType(t *testing.T) {
	c := New()
	assert(t, c.Declare(&ast.ModuleDecl{}) == nil, "declare failed")
	got, err := NewChecker(c).CheckExprType(&ast.BinaryExpr{Op: ast.OpLt, Left: &ast.IntLit{Value: 1}, Right: &ast.IntLit{Value: 2}})
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, got.Equal(ast.Bool), "expected a comparison to check as Bool even though its operands are Int, got %s", got)
}
