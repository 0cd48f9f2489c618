package cli

import (
	"encoding/json"
	"fmt"

	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func AddressesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addresses <owner>",
		Short: "Print the component addresses deployed for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%q is not an address", args[0])
			}
			addrs := engine.DeriveAddresses(common.HexToAddress(args[0]))
			return printJSON(cmd, addrs)
		},
	}
	return cmd
}

func RoleIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role-id <name>",
		Short: "Print the 32-byte identifier of a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := rbac.ParseRole(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), role.Hex())
			return err
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
