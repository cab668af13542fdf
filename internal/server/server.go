package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"TweetWatch/internal/domain"
)

// Watches is the entity surface exposed over HTTP.
type Watches interface {
	Start(ctx context.Context, id string) error
	Configure(ctx context.Context, id string, q domain.WatchQuery) error
	Snapshot(ctx context.Context, id string) (domain.EnrichedBatch, bool, error)
	Reminder(ctx context.Context, id string) (domain.Reminder, bool, error)
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	watches Watches
	log     *slog.Logger
}

// New creates a new HTTP server listening on addr.
func New(addr string, watches Watches, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:  chi.NewRouter(),
		watches: watches,
		log:     logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(25 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/watches/{id}", func(r chi.Router) {
		r.Use(s.entityIDMiddleware)
		r.Post("/start", s.handleStart)
		r.Put("/query", s.handleConfigure)
		r.Get("/state", s.handleState)
		r.Get("/reminder", s.handleReminder)
	})
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown; http.ErrServerClosed is returned after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
