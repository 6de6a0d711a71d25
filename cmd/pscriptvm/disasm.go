package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ktstephano/pscript/vm"
)

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <program.bin>",
		Short: "Print every instruction in a compiled program, labelling function entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			program, err := vm.Load(f)
			if err != nil {
				return fmt.Errorf("loading program: %w", err)
			}
			return vm.Disassemble(program, cmd.OutOrStdout())
		},
	}
}
