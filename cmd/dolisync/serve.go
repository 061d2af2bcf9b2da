package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newdoli/dolisync/pkg/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background sync loop and the local API",
	Long: `Keep the mirror fresh: probe connectivity on an interval, refresh
every collection whenever the server is reachable, and expose the
local read-only API when enabled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.session.Hydrate(ctx)

	// Refresh as soon as connectivity comes back.
	a.monitor.OnChange(func(online bool) {
		if !online {
			return
		}

		if err := a.coordinator.RefreshAll(ctx); err != nil {
			log.WithError(err).Warn("Reconnect refresh failed")
		}
	})

	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("starting connectivity monitor: %w", err)
	}

	defer func() {
		if err := a.monitor.Stop(); err != nil {
			log.WithError(err).Warn("Stopping connectivity monitor failed")
		}
	}()

	var srv api.Server

	if a.cfg.API.Enabled {
		srv = api.NewServer(
			log, &a.cfg.API, a.store, a.session, a.monitor, a.coordinator,
		)

		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting api server: %w", err)
		}
	}

	// Periodic background refresh, with one pass up front.
	ticker := time.NewTicker(a.cfg.Sync.RefreshInterval())
	defer ticker.Stop()

	a.monitor.CheckNow(ctx)

	if err := a.coordinator.RefreshAll(ctx); err != nil {
		log.WithError(err).Warn("Initial refresh failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := a.coordinator.RefreshAll(ctx); err != nil {
				log.WithError(err).Warn("Background refresh failed")
			}
		case sig := <-sigCh:
			log.WithField("signal", sig).Info("Shutting down")
			cancel()

			if srv != nil {
				if err := srv.Stop(); err != nil {
					return fmt.Errorf("stopping api server: %w", err)
				}
			}

			return nil
		}
	}
}
