package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	prekeysCmd := &cobra.Command{Use: "prekeys", Short: "Prekey bundle operations"}

	getCmd := &cobra.Command{
		Use:   "get USER_ID",
		Short: "Fetch a user's published prekey bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().
				SetPathParam("userId", args[0]).
				Get("/api/prekeys/{userId}")
			if err != nil {
				return err
			}
			if err := checkStatus(resp); err != nil {
				return err
			}
			_, _ = os.Stdout.Write(resp.Body())
			_, _ = fmt.Fprintln(os.Stdout)
			return nil
		},
	}
	prekeysCmd.AddCommand(getCmd)

	var file string
	putCmd := &cobra.Command{
		Use:   "put USER_ID",
		Short: "Publish a prekey bundle from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			resp, err := newClient().R().
				SetPathParam("userId", args[0]).
				SetBody(data).
				Put("/api/prekeys/{userId}")
			if err != nil {
				return err
			}
			if err := checkStatus(resp); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "published")
			return nil
		},
	}
	putCmd.Flags().StringVarP(&file, "file", "f", "", "Path to the bundle file (required)")
	_ = putCmd.MarkFlagRequired("file")
	prekeysCmd.AddCommand(putCmd)

	rootCmd.AddCommand(prekeysCmd)
}
