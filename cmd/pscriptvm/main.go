// Command pscriptvm loads and runs compiled pscript programs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pscriptvm",
		Short:         "pscriptvm runs and inspects compiled pscript bytecode programs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "pscriptvm.yaml", "path to a pscriptvm config file")
	root.AddCommand(newRunCmd())
	root.AddCommand(newDisasmCmd())
	return root
}
