package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ktstephano/pscript/vm"
)

func newRunCmd() *cobra.Command {
	var entry uint64
	var intArgs []string
	var floatArgs []string
	var boolArgs []string

	cmd := &cobra.Command{
		Use:   "run <program.bin>",
		Short: "Load a compiled program and run one of its functions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			program, err := vm.Load(f)
			if err != nil {
				return fmt.Errorf("loading program: %w", err)
			}

			machine := vm.New(cfg.StackSize)
			machine.LoadProgram(program)

			if cfg.RegisterStdModule {
				registerStd(machine)
			}

			if err := pushTypedArgs(machine, intArgs, floatArgs, boolArgs); err != nil {
				return err
			}

			if cfg.Debug {
				off, ok := program.FuncOffset(entry)
				if !ok {
					return fmt.Errorf("unknown function UID %d", entry)
				}
				machine.SeekTo(int(off))
				return machine.RunDebug(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if err := machine.RunFunc(entry); err != nil {
				return fmt.Errorf("running function %d: %w", entry, err)
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&entry, "entry", 0, "function UID to run (required)")
	cmd.MarkFlagRequired("entry")
	cmd.Flags().StringArrayVar(&intArgs, "int", nil, "push an Int argument before running")
	cmd.Flags().StringArrayVar(&floatArgs, "float", nil, "push a Float argument before running")
	cmd.Flags().StringArrayVar(&boolArgs, "bool", nil, "push a Bool argument before running")
	return cmd
}

func pushTypedArgs(v *vm.VM, intArgs, floatArgs, boolArgs []string) error {
	for _, s := range intArgs {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing --int %q: %w", s, err)
		}
		v.PushInt(n)
	}
	for _, s := range floatArgs {
		n, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return fmt.Errorf("parsing --float %q: %w", s, err)
		}
		v.PushFloat(float32(n))
	}
	for _, s := range boolArgs {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("parsing --bool %q: %w", s, err)
		}
		v.PushBool(b)
	}
	return nil
}
