package main

import (
	"context"
	"fmt"

	"github.com/newdoli/dolisync/pkg/auth"
	"github.com/newdoli/dolisync/pkg/config"
	"github.com/newdoli/dolisync/pkg/connectivity"
	"github.com/newdoli/dolisync/pkg/gateway"
	"github.com/newdoli/dolisync/pkg/mirror"
	"github.com/newdoli/dolisync/pkg/settings"
	"github.com/newdoli/dolisync/pkg/store"
)

// app is the assembled component graph every command runs against.
type app struct {
	cfg         *config.Config
	store       store.Store
	settings    *settings.Service
	monitor     *connectivity.Monitor
	gateway     *gateway.Client
	session     *auth.Session
	coordinator *mirror.Coordinator
}

// buildApp loads configuration and wires the components leaves-first:
// store, then settings, then everything that depends on them.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting store: %w", err)
	}

	if err := st.SeedDefaultPermissions(ctx); err != nil {
		_ = st.Stop()

		return nil, fmt.Errorf("seeding permissions: %w", err)
	}

	svc := settings.NewService(log, st)

	// Probe the configured endpoint, or the remote server itself when
	// none is set.
	probeURL := cfg.Connectivity.ProbeURL
	if probeURL == "" {
		probeURL = svc.ServerURL(ctx)
	}

	monitor := connectivity.NewMonitor(
		log, probeURL,
		cfg.Connectivity.Interval(),
		cfg.Connectivity.Timeout(),
	)

	gw := gateway.NewClient(log, svc)
	session := auth.NewSession(log, st, svc, gw)
	coordinator := mirror.NewCoordinator(log, st, svc, gw, monitor)

	return &app{
		cfg:         cfg,
		store:       st,
		settings:    svc,
		monitor:     monitor,
		gateway:     gw,
		session:     session,
		coordinator: coordinator,
	}, nil
}

// close releases everything buildApp opened.
func (a *app) close() {
	if err := a.store.Stop(); err != nil {
		log.WithError(err).Warn("Closing store failed")
	}
}
