package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
	"github.com/custodia-labs/classmate/internal/logger"
)

// ErrMissingService is returned when a required service is not provided.
var ErrMissingService = errors.New("httpapi: sync, qa and access services are required")

// Services aggregates the ports the HTTP surface drives.
type Services struct {
	Sync   driving.SyncEngine
	QA     driving.QAService
	Access driven.AccessResolver
}

// Server serves the HTTP API.
type Server struct {
	services Services
	auth     Authenticator
	validate *validator.Validate
	handler  http.Handler
	addr     string
}

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator replaces the header authenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// NewServer creates an HTTP server for cfg.
func NewServer(cfg domain.ServerConfig, services Services, opts ...Option) (*Server, error) {
	if services.Sync == nil || services.QA == nil || services.Access == nil {
		return nil, ErrMissingService
	}
	header := cfg.UserHeader
	if header == "" {
		header = "X-User-ID"
	}
	s := &Server{
		services: services,
		auth:     HeaderAuthenticator{Header: header},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		addr:     cfg.Addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.withMiddleware(s.routes())
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /courses/sync", s.handleSync)
	mux.HandleFunc("POST /qa", s.handleQA)
	mux.HandleFunc("GET /courses/{id}/runs", s.handleRuns)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return s.recovery(s.logging(next))
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("%s %s %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("http: panic serving %s %s: %v", r.Method, r.URL.Path, v)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}
