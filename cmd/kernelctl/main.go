// kernelctl drives the VM/IPC/security core from the command line: a
// harness for exercising address-space, port, and token operations
// without a full scheduler/process model around them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aejsmith/kiwi-sub003/cmd/kernelctl/internal/shell"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kernelctl",
		Short: "Exercise the VM/IPC/security core from the command line",
	}
	root.AddCommand(shell.NewASCmd())
	root.AddCommand(shell.NewPortCmd())
	root.AddCommand(shell.NewTokenCmd())
	return root
}
