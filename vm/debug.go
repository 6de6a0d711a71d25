package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SetBreakpoint arms a breakpoint at the given code offset. RunDebug stops
// and waits for input whenever IP reaches one of these before executing
// the instruction there.
func (vm *VM) SetBreakpoint(offset int) {
	if vm.breakpoints == nil {
		vm.breakpoints = make(map[int]bool)
	}
	vm.breakpoints[offset] = true
}

// ClearBreakpoint disarms a previously armed breakpoint.
func (vm *VM) ClearBreakpoint(offset int) {
	delete(vm.breakpoints, offset)
}

// OnStep installs a hook called before every instruction RunAt executes.
// Passing nil removes it.
func (vm *VM) OnStep(fn func(vm *VM)) {
	vm.onStep = fn
}

// RunDebug drives an interactive single-step session over in/out, in the
// same vein as gvm's RunProgramDebugMode: "n"/"next" executes one
// instruction, "r"/"run" free-runs until a breakpoint or halt, "b <offset>"
// toggles a breakpoint, "stack" prints the current stack depth.
func (vm *VM) RunDebug(in io.Reader, out io.Writer) error {
	if vm.program == nil {
		return ErrNoProgram
	}

	w := bufio.NewWriter(out)
	defer w.Flush()

	fmt.Fprintf(w, "commands:\n\tn or next: execute next instruction\n\tr or run: run until breakpoint or halt\n\tb <offset>: toggle breakpoint\n\tstack: print stack pointer\n\n")

	reader := bufio.NewReader(in)
	waitForInput := true

	for vm.ip < len(vm.program.Code) {
		if !waitForInput && vm.breakpoints[vm.ip] {
			fmt.Fprintf(w, "breakpoint at %d\n", vm.ip)
			waitForInput = true
		}

		if waitForInput {
			fmt.Fprintf(w, "ip=%d sp=%d ->", vm.ip, vm.sp)
			w.Flush()
			line, _ := reader.ReadString('\n')
			line = strings.ToLower(strings.TrimSpace(line))

			switch {
			case line == "n" || line == "next":
				halted, err := vm.Step()
				if err != nil {
					fmt.Fprintln(w, err)
					return err
				}
				if halted {
					return nil
				}
			case line == "r" || line == "run":
				waitForInput = false
			case strings.HasPrefix(line, "b"):
				arg := strings.TrimSpace(strings.TrimPrefix(line, "b"))
				off, err := strconv.Atoi(arg)
				if err != nil {
					fmt.Fprintln(w, "unknown offset:", arg)
					continue
				}
				if vm.breakpoints[off] {
					vm.ClearBreakpoint(off)
				} else {
					vm.SetBreakpoint(off)
				}
			case line == "stack":
				fmt.Fprintf(w, "sp=%d\n", vm.sp)
			}
			continue
		}

		halted, err := vm.Step()
		if err != nil {
			fmt.Fprintln(w, err)
			return err
		}
		if halted {
			return nil
		}
	}
	return nil
}
