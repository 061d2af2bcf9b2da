// Package api exposes the local mirror over a small read-only HTTP
// surface: session and sync status, plus third-party and product
// search. It never mutates anything and never reveals credentials.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newdoli/dolisync/pkg/auth"
	"github.com/newdoli/dolisync/pkg/config"
	"github.com/newdoli/dolisync/pkg/connectivity"
	"github.com/newdoli/dolisync/pkg/mirror"
	"github.com/newdoli/dolisync/pkg/store"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log         logrus.FieldLogger
	cfg         *config.APIConfig
	store       store.Store
	session     *auth.Session
	monitor     *connectivity.Monitor
	coordinator *mirror.Coordinator
	httpServer  *http.Server
	wg          sync.WaitGroup
}

// NewServer creates a new API server over already-started components.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	st store.Store,
	session *auth.Session,
	monitor *connectivity.Monitor,
	coordinator *mirror.Coordinator,
) Server {
	return &server{
		log:         log.WithField("component", "api"),
		cfg:         cfg,
		store:       st,
		session:     session,
		monitor:     monitor,
		coordinator: coordinator,
	}
}

// Start binds the listener and serves until Stop.
func (s *server) Start(ctx context.Context) error {
	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Listen).Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	s.log.Info("API server stopped")

	return nil
}
