// Package server exposes the webhook endpoint the bank delivers events to,
// plus health and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fireup-dev/fireup/service/metrics"
	"github.com/fireup-dev/fireup/service/relay"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP surface of the relay.
type Server struct {
	addr       string
	dispatcher *relay.Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new Server. If m is nil the /metrics endpoint is disabled.
func New(addr string, dispatcher *relay.Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:       addr,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.Handle("POST /webhook", metrics.HTTPMetricsMiddleware(s.metrics, "webhook")(
		handleWebhook(s.dispatcher, s.logger),
	))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
