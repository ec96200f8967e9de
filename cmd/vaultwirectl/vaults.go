package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	vaultsCmd := &cobra.Command{Use: "vaults", Short: "Vault operations"}

	membersCmd := &cobra.Command{
		Use:   "members VAULT_ID",
		Short: "List members of a vault with live/last-seen status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().
				SetPathParam("vaultId", args[0]).
				Get("/api/vaults/{vaultId}/members")
			if err != nil {
				return err
			}
			if err := checkStatus(resp); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, resp.String())
			return nil
		},
	}
	vaultsCmd.AddCommand(membersCmd)

	rootCmd.AddCommand(vaultsCmd)
}
