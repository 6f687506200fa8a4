// Package server is the remote authoritative store's HTTP surface: a JSON
// API over per-entity CRUD, the has-data probe, and the one-time migration
// import. Handlers stay thin; persistence semantics (transactions, version
// conflicts, idempotent upserts) live behind the Store interface.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/calebmorris/go-song-funnel/internal/api"
	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8090"

// Store is the persistence surface the handlers need. *db.DB is adapted to
// it by NewDBStore.
type Store interface {
	HasData(ctx context.Context) (bool, error)

	ListThemes(ctx context.Context) ([]funnel.Theme, error)
	GetTheme(ctx context.Context, id string) (funnel.Theme, error)
	CreateTheme(ctx context.Context, t funnel.Theme) error
	UpdateTheme(ctx context.Context, t funnel.Theme) error
	DeleteTheme(ctx context.Context, id string) error

	ListSessions(ctx context.Context) ([]session.Session, error)
	UpsertSession(ctx context.Context, s session.Session) error
	DeleteSession(ctx context.Context, id string) error

	ListSavedSongs(ctx context.Context) ([]funnel.Song, error)
	ReplaceSavedSongs(ctx context.Context, songs []funnel.Song) error

	ImportAll(ctx context.Context, payload api.MigratePayload) error
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr  string
	Store Store

	// JWTSecret enables bearer-token auth when non-empty. An empty secret
	// leaves the API open, for local development.
	JWTSecret string
}

// Server is the HTTP server for the remote store.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	secret   string
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("server requires a store")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	router := chi.NewRouter()
	s := &Server{
		router:   router,
		handlers: NewHandlers(cfg.Store),
		secret:   cfg.JWTSecret,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures routes for the API.
func (s *Server) setupRoutes() {
	// Health stays outside auth so clients can probe before having a token.
	s.router.Get("/health", s.handlers.Health)

	s.router.Group(func(r chi.Router) {
		if s.secret != "" {
			r.Use(RequireToken(s.secret))
		}

		r.Get("/has-data", s.handlers.HasData)
		r.Post("/migrate", s.handlers.Migrate)

		r.Route("/themes", func(r chi.Router) {
			r.Get("/", s.handlers.ListThemes)
			r.Post("/", s.handlers.CreateTheme)
			r.Get("/{id}", s.handlers.GetTheme)
			r.Put("/{id}", s.handlers.UpdateTheme)
			r.Delete("/{id}", s.handlers.DeleteTheme)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handlers.ListSessions)
			r.Post("/", s.handlers.CreateSession)
			r.Put("/{id}", s.handlers.UpdateSession)
			r.Delete("/{id}", s.handlers.DeleteSession)
		})

		r.Get("/saved-songs", s.handlers.ListSavedSongs)
		r.Put("/saved-songs", s.handlers.PutSavedSongs)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting server at http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		log.Println("Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
