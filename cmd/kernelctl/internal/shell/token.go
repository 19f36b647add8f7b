package shell

import (
	"fmt"

	"github.com/spf13/cobra"

	"token"
)

/// NewTokenCmd builds the `token` command group: derive a child token
/// from the boot token and show whether the requested privileges and
/// identity were accepted.
func NewTokenCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "token",
		Short: "Derive a child security token and inspect the result",
	}
	root.AddCommand(newTokenCreateCmd())
	return root
}

func newTokenCreateCmd() *cobra.Command {
	var uid int32
	var effective, inheritable uint64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Derive a child of the boot token",
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := token.System()
			child, err := token.Create(parent, token.CreateRequest{
				Uid:         &uid,
				Effective:   effective,
				Inheritable: inheritable,
			})
			if err != 0 {
				return fmt.Errorf("create: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uid=%d effective=%#x inheritable=%#x\n", child.Uid, child.Effective, child.Inheritable)
			return nil
		},
	}
	cmd.Flags().Int32Var(&uid, "uid", 1000, "child token's uid")
	cmd.Flags().Uint64Var(&effective, "effective", token.PrivMapMemory, "requested effective privilege bitmap")
	cmd.Flags().Uint64Var(&inheritable, "inheritable", 0, "requested inheritable privilege bitmap")
	return cmd
}
