package api

import (
	"github.com/ktstephano/pscript/ast"
	"github.com/ktstephano/pscript/vm"
)

// Function describes one foreign (host-implemented) function: the
// signature a compiled program's CALL sees, and the Go closure that
// actually runs when the VM dispatches to it. Grounded on
// original_source/pgs/pgs/src/api/function.rs's Function, re-expressed
// with Go's pointer-receiver builder idiom (cobra.Command's own style)
// instead of Rust's consuming-self one.
type Function struct {
	Name     string
	Args     []ast.Type
	Return   ast.Type
	Callback vm.ForeignFunc
}

// NewFunction starts a foreign function declaration named name.
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// WithArg appends an argument type, in call order.
func (f *Function) WithArg(t ast.Type) *Function {
	f.Args = append(f.Args, t)
	return f
}

// WithReturn sets the function's return type.
func (f *Function) WithReturn(t ast.Type) *Function {
	f.Return = t
	return f
}

// WithCallback attaches the Go implementation invoked on CALL.
func (f *Function) WithCallback(fn vm.ForeignFunc) *Function {
	f.Callback = fn
	return f
}

// ArgSizes returns the byte width of each argument, used to build the
// Adapter an implementation reads its arguments through.
func (f *Function) ArgSizes(sizeOf func(ast.Type) (int, error)) ([]int, error) {
	sizes := make([]int, len(f.Args))
	for i, t := range f.Args {
		size, err := sizeOf(t)
		if err != nil {
			return nil, err
		}
		sizes[i] = size
	}
	return sizes, nil
}
