package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/flowcharts/internal/config"
	"github.com/saltyorg/flowcharts/internal/database"
	"github.com/saltyorg/flowcharts/internal/web/handlers"
	"github.com/saltyorg/flowcharts/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	db         *database.DB
	port       int
	bind       string
	allowedNet *net.IPNet
	router     *chi.Mux
	handlers   *handlers.Handlers
}

// NewServer creates a new web server. The schema must already be bootstrapped.
func NewServer(db *database.DB, port int, bind string, allowedNet *net.IPNet) *Server {
	s := &Server{
		db:         db,
		port:       port,
		bind:       bind,
		allowedNet: allowedNet,
		router:     chi.NewRouter(),
		handlers:   handlers.New(),
	}

	s.setupRoutes()

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router
	h := s.handlers

	r.Use(chimiddleware.RequestID)
	// AllowSubnet must come BEFORE RealIP so we check the actual connection source
	r.Use(middleware.AllowSubnet(s.allowedNet))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Set before mounting sub-routers so they inherit them
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS())
		r.Use(middleware.ConnScope(s.db))

		r.Route("/charts", func(r chi.Router) {
			r.Get("/", h.ListCharts)
			r.Post("/", h.CreateChart)
			r.Get("/{id:[0-9]+}", h.GetChart)
			r.Put("/{id:[0-9]+}", h.UpdateChart)
			r.Delete("/{id:[0-9]+}", h.DeleteChart)
		})
	})
}

// Start starts the web server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	var addr string
	if s.bind != "" {
		addr = fmt.Sprintf("%s:%d", s.bind, s.port)
	} else {
		addr = fmt.Sprintf(":%d", s.port)
	}

	timeouts := config.GetTimeouts()
	server := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: timeouts.ServerRead,
		// No write timeout: a request runs to completion once it has been read
		WriteTimeout: 0,
		IdleTimeout:  timeouts.ServerIdle,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		stats := s.db.Stats()
		log.Debug().
			Int("open", stats.OpenConnections).
			Int("in_use", stats.InUse).
			Int64("wait_count", stats.WaitCount).
			Msg("Connection pool at shutdown")
		return err
	case err := <-errChan:
		return err
	}
}
