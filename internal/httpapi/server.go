// Package httpapi exposes a running session's control surface over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	conductor "github.com/cbegin/conductor-go"
	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/logs"
	"github.com/cbegin/conductor-go/internal/perform"
)

// DefaultAddr is the default listen address.
const DefaultAddr = "127.0.0.1:7070"

// Conductor is the part of a session the API drives.
type Conductor interface {
	Dispatch(gesture.Sample) (perform.Event, bool)
	Reset()
	SetInstrument(id string) error
	State() conductor.Snapshot
}

type ServerConfig struct {
	Addr    string
	Session Conductor
	Logger  *slog.Logger
	// Clock stamps gestures posted without a timestamp.
	Clock func() time.Time
}

// Server is the HTTP control server.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	log      *slog.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Session == nil {
		return nil, errors.New("httpapi: nil session")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = logs.Discard()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	router := chi.NewRouter()
	s := &Server{
		router:   router,
		handlers: NewHandlers(cfg.Session, cfg.Clock),
		log:      cfg.Logger.With("component", "http"),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/state", s.handlers.State)
	s.router.Post("/reset", s.handlers.Reset)
	s.router.Put("/instrument/{id}", s.handlers.SetInstrument)
	s.router.Post("/gestures", s.handlers.Gesture)
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	s.server.Addr = ln.Addr().String()
	s.log.Info("listening", "addr", s.server.Addr)
	return s.server.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("stopped")
	return nil
}
