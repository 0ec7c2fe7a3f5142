// Package rest serves the management API over a unix socket.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sidecartridge/booster/boosterd/internal/manager"
)

// Server holds the internal state of the REST API server.
type Server struct {
	socketPath string
	mgr        *manager.Manager
}

// NewServer returns a REST API server object.
func NewServer(_ context.Context, mgr *manager.Manager, socketPath string) (*Server, error) {
	server := Server{
		socketPath: socketPath,
		mgr:        mgr,
	}

	// Create runtime path if missing.
	err := os.MkdirAll(filepath.Dir(socketPath), 0o700)
	if err != nil {
		return nil, err
	}

	return &server, nil
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("/", s.apiRoot)
	router.HandleFunc("/1.0", s.apiRoot10)
	router.HandleFunc("/1.0/applications", s.apiApplications)
	router.HandleFunc("/1.0/applications/{uuid}", s.apiApplicationsEndpoint)
	router.HandleFunc("/1.0/applications/{uuid}/:launch", s.apiApplicationsLaunch)
	router.HandleFunc("/1.0/download", s.apiDownload)
	router.HandleFunc("/1.0/launch", s.apiLaunch)
	router.HandleFunc("/1.0/lookup", s.apiLookup)
	router.HandleFunc("/1.0/lookup/:erase", s.apiLookupErase)
	router.HandleFunc("/1.0/storage", s.apiStorage)

	return router
}

// Serve starts the REST API server and stops it when the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	// Setup listener.
	_ = os.Remove(s.socketPath)
	lc := &net.ListenConfig{}

	listener, err := lc.Listen(ctx, "unix", s.socketPath)
	if err != nil {
		return err
	}

	// Setup server.
	server := &http.Server{
		Handler: s.Handler(),

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx) //nolint:contextcheck
	}()

	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
