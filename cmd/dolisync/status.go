package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session, connectivity, and sync state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if url := a.settings.ServerURL(ctx); url != "" {
		fmt.Printf("Server:       %s\n", url)
	} else {
		fmt.Println("Server:       not configured")
	}

	online := a.monitor.CheckNow(ctx)
	if online {
		fmt.Println("Connectivity: online")
	} else {
		state := a.monitor.State()
		fmt.Printf("Connectivity: offline (%s)\n", state.LastError)
	}

	if a.session.IsUserAuthenticated(ctx) {
		user := a.session.CurrentUser()
		fmt.Printf("Session:      %s", user.Login)

		if user.Admin {
			fmt.Print(" (admin)")
		}

		fmt.Println()
	} else {
		fmt.Println("Session:      logged out")
	}

	status := a.coordinator.SyncStatus()
	if len(status) > 0 {
		fmt.Println("Sync:")

		for entity, st := range status {
			if st.LastSync.IsZero() {
				fmt.Printf("  %-13s never\n", entity)
				continue
			}

			line := fmt.Sprintf("  %-13s %s", entity,
				st.LastSync.Format("2006-01-02 15:04:05"))

			if st.LastError != "" {
				line += " (last error: " + st.LastError + ")"
			}

			fmt.Println(line)
		}
	}

	pending, err := a.coordinator.PendingChanges(ctx)
	if err != nil {
		return fmt.Errorf("reading pending changes: %w", err)
	}

	fmt.Printf("Pending:      %d local change(s)\n", len(pending))

	return nil
}
