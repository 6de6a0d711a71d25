package compiler

import "github.com/ktstephano/pscript/ast"

// Checker infers the static type of an expression against a Compiler's
// current declarations (variables in scope, known functions, known
// containers), without emitting any instructions. Grounded on
// original_source/pgs/pgs/src/codegen/checker.rs's Checker/check_expr_type.
type Checker struct {
	c *Compiler
}

// NewChecker builds a type checker bound to c's current compilation state.
func NewChecker(c *Compiler) *Checker {
	return &Checker{c: c}
}

// CheckExprType returns the static type expr evaluates to, or an error if
// expr references something undeclared or combines operands whose types
// don't agree.
func (ch *Checker) CheckExprType(expr ast.Expr) (ast.Type, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		return ast.Int, nil
	case *ast.FloatLit:
		return ast.Float, nil
	case *ast.BoolLit:
		return ast.Bool, nil
	case *ast.StringLit:
		return ast.String, nil

	case *ast.Ident:
		if t, ok := ch.c.typeOfVar(e.Segments[len(e.Segments)-1]); ok {
			return t, nil
		}
		return ast.Type{}, &ErrUnknownVariable{Name: identName(e)}

	case *ast.Call:
		def, err := ch.c.resolveFunction(e.Callee)
		if err != nil {
			return ast.Type{}, err
		}
		return def.Ret, nil

	case *ast.MemberCall:
		targetType, err := ch.CheckExprType(e.Target)
		if err != nil {
			return ast.Type{}, err
		}
		cont, err := ch.c.resolveContainerType(targetType)
		if err != nil {
			return ast.Type{}, err
		}
		fn, err := cont.Function(e.Method)
		if err != nil {
			return ast.Type{}, err
		}
		return fn.Ret, nil

	case *ast.UnaryExpr:
		if _, err := ch.CheckExprType(e.Operand); err != nil {
			return ast.Type{}, err
		}
		return ast.Bool, nil

	case *ast.BinaryExpr:
		lhs, err := ch.CheckExprType(e.Left)
		if err != nil {
			return ast.Type{}, err
		}
		rhs, err := ch.CheckExprType(e.Right)
		if err != nil {
			return ast.Type{}, err
		}
		if !lhs.Equal(rhs) {
			return ast.Type{}, &ErrTypeMismatch{Context: "binary expression", Expected: lhs.String(), Got: rhs.String()}
		}
		switch e.Op {
		case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv:
			return lhs, nil
		default:
			return ast.Bool, nil
		}
	}

	return ast.Type{}, ErrNotImplemented
}

func identName(i *ast.Ident) string {
	if len(i.Segments) == 0 {
		return ""
	}
	return i.Segments[len(i.Segments)-1]
}
