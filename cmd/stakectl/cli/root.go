// Package cli implements stakectl, the operator tool for the staking journal.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stakectl",
		Short:         "Inspect and audit the AUDT staking journal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(AddressesCmd())
	root.AddCommand(RoleIDCmd())
	root.AddCommand(AuditCmd())
	root.AddCommand(ExportCmd())
	return root
}

func Setup() error {
	return NewRootCmd().Execute()
}
