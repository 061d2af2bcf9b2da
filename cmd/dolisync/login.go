package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Authenticate against the remote server",
	Long: `Exchange credentials for an API token and establish the local
session. The password is read from the DOLISYNC_PASSWORD environment
variable, or from the second argument.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := args[0]

	password := os.Getenv("DOLISYNC_PASSWORD")
	if len(args) == 2 {
		password = args[1]
	}

	if password == "" {
		return fmt.Errorf("no password given (set DOLISYNC_PASSWORD or pass it as an argument)")
	}

	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.settings.IsConfigurationComplete(ctx) {
		return fmt.Errorf("no server configured (run: dolisync config set dolibarr_url <url>)")
	}

	if err := a.session.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	user := a.session.CurrentUser()
	fmt.Printf("Logged in as %s", user.Login)

	if user.Admin {
		fmt.Print(" (admin)")
	}

	fmt.Println()

	if modules := a.session.AccessibleModules(); len(modules) > 0 {
		fmt.Printf("Accessible modules: %v\n", modules)
	}

	return nil
}
