// Package server exposes the position tracker over a local REST API and a
// websocket feed of fresh summaries.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/lanfund/internal/app"
	"github.com/bobmcallan/lanfund/internal/common"
)

// Server wraps the HTTP server and application reference.
type Server struct {
	app         *app.App
	server      *http.Server
	hub         *SummaryHub
	logger      *common.Logger
	unsubscribe func()
}

// NewServer creates a new HTTP REST API server. Summaries published by the
// refresher are fanned out to websocket clients.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:    a,
		hub:    NewSummaryHub(a.Logger),
		logger: a.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, a.Logger, a.Config)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.hub.Run()
	if a.RefreshService != nil {
		s.unsubscribe = a.RefreshService.Subscribe(s.hub.Broadcast)
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.hub.Stop()
	return s.server.Shutdown(ctx)
}
