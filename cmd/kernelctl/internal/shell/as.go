// Package shell implements kernelctl's subcommands, each standing up a
// small in-process instance of the subsystem it demonstrates (there is
// no persistent kernel process for the CLI to attach to — every
// invocation is a self-contained scenario).
package shell

import (
	"fmt"

	"github.com/spf13/cobra"

	"klog"
	"mem"
	"vm"
)

const demoFrames = 4096
const demoMin = uintptr(0x1000)
const demoMax = uintptr(1) << 40

func newDemoAS() *vm.AddressSpace_t {
	phys := mem.NewPhysmem(demoFrames)
	return vm.NewAddressSpace(phys, vm.DefaultPageMapFactory, nil, demoMin, demoMax)
}

/// NewASCmd builds the `as` command group: map and fork scenarios
/// against a fresh, in-process address space.
func NewASCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "as",
		Short: "Exercise address-space mapping and fault resolution",
	}
	root.AddCommand(newASMapCmd())
	root.AddCommand(newASForkCmd())
	return root
}

func newASMapCmd() *cobra.Command {
	var base, length int64
	var write, private bool

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map an anonymous region and fault in its first page",
		RunE: func(cmd *cobra.Command, args []string) error {
			as := newDemoAS()
			flags := vm.FlagRead
			if write {
				flags |= vm.FlagWrite
			}
			if private {
				flags |= vm.FlagPrivate
			}

			as.Lock_pmap()
			got, err := as.MapAnonymous(uintptr(base), uintptr(length), flags, base != 0)
			as.Unlock_pmap()
			if err != 0 {
				return fmt.Errorf("map: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mapped %d bytes at %#x\n", length, got)

			as.Lock_pmap()
			ferr := as.Fault(got, write)
			as.Unlock_pmap()
			if ferr != 0 {
				return fmt.Errorf("fault: %v", ferr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolved fault at %#x\n", got)
			return nil
		},
	}
	cmd.Flags().Int64Var(&base, "base", 0, "fixed base address (0 lets the allocator choose)")
	cmd.Flags().Int64Var(&length, "length", int64(mem.PGSIZE), "region length in bytes")
	cmd.Flags().BoolVar(&write, "write", false, "fault the page in for writing")
	cmd.Flags().BoolVar(&private, "private", true, "map the region private (COW-capable)")
	return cmd
}

func newASForkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fork",
		Short: "Map a private page, fork the address space, and show the COW split",
		RunE: func(cmd *cobra.Command, args []string) error {
			as := newDemoAS()
			as.Lock_pmap()
			base, err := as.MapAnonymous(0, uintptr(mem.PGSIZE), vm.FlagRead|vm.FlagWrite|vm.FlagPrivate, false)
			if err == 0 {
				err = as.Fault(base, true)
			}
			as.Unlock_pmap()
			if err != 0 {
				return fmt.Errorf("setup: %v", err)
			}

			child, err := as.Duplicate(vm.DefaultPageMapFactory, nil)
			if err != 0 {
				return fmt.Errorf("duplicate: %v", err)
			}
			defer child.Destroy()

			child.Lock_pmap()
			cerr := child.Fault(base, true)
			child.Unlock_pmap()
			if cerr != 0 {
				return fmt.Errorf("child fault: %v", cerr)
			}
			klog.VM("forked address space, child wrote %#x triggering COW split", base)
			fmt.Fprintf(cmd.OutOrStdout(), "parent and child each privately own %#x after the child's write\n", base)
			return nil
		},
	}
}
