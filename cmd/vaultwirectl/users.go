package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	usersCmd := &cobra.Command{Use: "users", Short: "User operations"}

	// nuke
	var confirm bool
	nukeCmd := &cobra.Command{
		Use:   "nuke USER_ID",
		Short: "Irreversibly erase a user from the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("nuke is irreversible; pass --yes to confirm")
			}
			resp, err := newClient().R().
				SetPathParam("userId", args[0]).
				Post("/api/users/{userId}/nuke")
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
	nukeCmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm the irreversible erase")
	usersCmd.AddCommand(nukeCmd)

	rootCmd.AddCommand(usersCmd)
}
