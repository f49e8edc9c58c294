// Package api exposes the game engine over HTTP.
//
// The surface is small and JSON-only: POST /join, GET /state,
// POST /action, plus GET /status for dispatcher preflight, GET /health,
// and GET /metrics in the Prometheus text format. Every client-facing
// rejection is an HTTP 400 with an {"error": "..."} body whose message is
// part of the wire protocol.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"figgie-server/internal/config"
	"figgie-server/pkg/types"
)

// Game is the engine surface the API drives.
type Game interface {
	Join(name string) (string, error)
	StateFor(playerID string) (types.StateSnapshot, error)
	SubmitAction(req types.ActionRequest) (types.ActionResult, error)
	Status() types.ServerStatus
}

// Server runs the HTTP API.
type Server struct {
	handlers *Handlers
	metrics  *Metrics
	server   *http.Server
	logger   *slog.Logger
}

// NewServer wires the handlers and the HTTP server. The Metrics instance
// is typically also registered as an engine sink, so game counters and
// HTTP timings land in the same registry.
func NewServer(cfg *config.Config, game Game, metrics *Metrics, logger *slog.Logger) *Server {
	s := &Server{
		handlers: NewHandlers(game, metrics, logger),
		metrics:  metrics,
		logger:   logger.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /join", s.observe("/join", s.handlers.HandleJoin))
	mux.HandleFunc("GET /state", s.observe("/state", s.handlers.HandleState))
	mux.HandleFunc("POST /action", s.observe("/action", s.handlers.HandleAction))
	mux.HandleFunc("GET /status", s.observe("/status", s.handlers.HandleStatus))
	mux.HandleFunc("GET /health", s.observe("/health", s.handlers.HandleHealth))
	mux.Handle("GET /metrics", metrics.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves requests until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully drains in-flight requests.
func (s *Server) Stop() error {
	s.logger.Info("stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe wraps a handler with request logging and the latency histogram.
func (s *Server) observe(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		elapsed := time.Since(start)

		s.metrics.ObserveRequest(route, elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", elapsed)
	}
}
