package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger is satisfied by both store backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the internal admin listener: /health and /metrics only.
type Server struct {
	port   int
	store  Pinger
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(port int, store Pinger, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "AdminHTTP").Logger()
	s := &Server{port: port, store: store, log: &l}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Start blocks until Shutdown; a clean shutdown returns nil, also when it came first.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("admin http listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
