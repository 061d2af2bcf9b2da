package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the local session",
	Long: `Discard the stored credential and session record. The remote token
is invalidated too when the server is reachable; logout succeeds
locally either way.`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.session.Logout(ctx)

	fmt.Println("Logged out")

	return nil
}
