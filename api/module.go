package api

import "github.com/ktstephano/pscript/vm"

// Module is a named group of foreign functions and nested sub-modules, the
// host-side counterpart of an ast.ModuleDecl containing only prototype
// (body-less) function declarations. Grounded on
// original_source/pgs/src/api/module.rs's Module.
type Module struct {
	Name      string
	Modules   map[string]*Module
	Functions map[string]*Function
}

// NewModule starts a foreign module named name. name is empty for the
// implicit top-level module.
func NewModule(name string) *Module {
	return &Module{
		Name:      name,
		Modules:   make(map[string]*Module),
		Functions: make(map[string]*Function),
	}
}

// WithModule registers a nested foreign module.
func (m *Module) WithModule(child *Module) *Module {
	m.Modules[child.Name] = child
	return m
}

// WithFunction registers a foreign function living directly in this module.
func (m *Module) WithFunction(fn *Function) *Module {
	m.Functions[fn.Name] = fn
	return m
}

// FunctionUID resolves the `::`-qualified name a compiled program gives a
// declared-but-bodyless function to its minted call UID. Anything that
// mints function UIDs the way compiler.Compiler does satisfies this.
type FunctionUID func(qualifiedName string) (uint64, bool)

// Bind walks the module tree and registers every foreign function's
// Callback against v, resolving each qualified name (`mod::sub::name`,
// matching compiler.Compiler.fullName's own convention) through resolve.
// It returns ErrUnboundFunction the first time a registered foreign
// function has no matching declaration in the compiled program - a
// foreign module exposing a function the source never declared a
// prototype for is a binding error, not a silent no-op.
func (m *Module) Bind(v *vm.VM, resolve FunctionUID) error {
	return m.bind(v, "", resolve)
}

func (m *Module) bind(v *vm.VM, prefix string, resolve FunctionUID) error {
	for _, fn := range m.Functions {
		qualified := qualify(prefix, fn.Name)
		uid, ok := resolve(qualified)
		if !ok {
			return &ErrUnboundFunction{Name: qualified}
		}
		v.RegisterForeign(uid, fn.Callback)
	}
	for _, child := range m.Modules {
		if err := child.bind(v, qualify(prefix, child.Name), resolve); err != nil {
			return err
		}
	}
	return nil
}

func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}
