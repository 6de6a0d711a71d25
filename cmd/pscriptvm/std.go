package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/ktstephano/pscript/api"
	"github.com/ktstephano/pscript/ast"
	"github.com/ktstephano/pscript/vm"
)

// Foreign function UIDs a program.bin's `module std { ... }` prototypes are
// expected to have been minted as, in declaration order. Program.Save
// carries only the UID->offset table for functions with bodies (see
// vm.Program.FuncOffsets), so a loaded binary alone has no name for a
// foreign UID; a real toolchain would ship the symbol table alongside the
// binary. Here registerStdModule works by the convention that source
// compiled against pscriptvm declares `std` first and in this order, so
// these are exactly the UIDs compiler.Compiler.nextFunctionUID mints for
// them.
const (
	stdPrintlnUID uint64 = 1
	stdReadIntUID uint64 = 2
)

// stdModule builds the `std` foreign module: println(String) and
// readint() Int, the concrete host functions a pscript program can call
// into for line-based console I/O.
func stdModule() *api.Module {
	stdin := bufio.NewReader(os.Stdin)

	m := api.NewModule("std")
	m.WithFunction(api.NewFunction("println").
		WithArg(ast.String).
		WithReturn(ast.Void).
		WithCallback(func(v *vm.VM) error {
			adapter := api.NewAdapter(v, []int{vm.SizeString})
			s, err := adapter.GetArgString(0)
			if err != nil {
				return err
			}
			fmt.Println(s)
			return nil
		}))
	m.WithFunction(api.NewFunction("readint").
		WithReturn(ast.Int).
		WithCallback(func(v *vm.VM) error {
			line, err := stdin.ReadString('\n')
			if err != nil {
				return err
			}
			var n int64
			if _, err := fmt.Sscanf(line, "%d", &n); err != nil {
				return err
			}
			api.NewAdapter(v, nil).PushStackInt(n)
			return nil
		}))
	return m
}

// registerStd wires the std module's callbacks directly onto v at the
// reserved UIDs above, bypassing Module.Bind's name resolution since a
// loaded program.bin has no Compiler to resolve qualified names against.
func registerStd(v *vm.VM) {
	m := stdModule()
	v.RegisterForeign(stdPrintlnUID, m.Functions["println"].Callback)
	v.RegisterForeign(stdReadIntUID, m.Functions["readint"].Callback)
}
