package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sandevgo/spyglass/pkg/log"
)

type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func DefaultConfig(host string, port int) Config {
	return Config{
		Host:        host,
		Port:        port,
		ReadTimeout: 15 * time.Second,
		// Turns can run long, the write timeout has to cover a full turn.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// Server exposes the gateway over HTTP as a srv.Service.
type Server struct {
	config Config
	http   *http.Server
}

func NewServer(ctx context.Context, cfg Config, h *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(ctxLogger(ctx))
	r.Use(recoverer)

	r.Post("/chat", h.Chat)
	r.Get("/health", h.Health)
	r.Delete("/sessions/{sessionID}", h.DeleteSession)
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)

	return &Server{
		config: cfg,
		http: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.http.Addr).Msg("http server listening")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// recoverer turns handler panics into a structured 500 body instead of
// killing the connection mid-response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.FromCtx(r.Context()).Error().Interface("panic", rec).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ctxLogger propagates the application logger into request contexts so
// handlers keep the usual log.FromCtx access.
func ctxLogger(appCtx context.Context) func(http.Handler) http.Handler {
	logger := log.FromCtx(appCtx)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
		})
	}
}
