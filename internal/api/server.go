package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/api/handlers"
	"github.com/amaumene/pondtv/internal/api/middleware"
	"github.com/amaumene/pondtv/internal/config"
	"github.com/amaumene/pondtv/internal/drive"
)

// Server represents the control HTTP server. Sessions come and go with
// drive attachments, so handlers resolve the active session through a
// SessionSource instead of holding one.
type Server struct {
	server   *http.Server
	monitor  *drive.Monitor
	sessions handlers.SessionSource
	pageSize func() int
	logger   *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, monitor *drive.Monitor, sessions handlers.SessionSource, pageSize func() int, logger *logrus.Logger) *Server {
	s := &Server{
		monitor:  monitor,
		sessions: sessions,
		pageSize: pageSize,
		logger:   logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         "127.0.0.1:" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Health check
	healthHandler := handlers.NewHealthHandler(s.monitor, s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	// Playback status for the front-end poller
	statusHandler := handlers.NewStatusHandler(s.sessions, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	// Channel guide pages
	guideHandler := handlers.NewGuideHandler(s.sessions, s.pageSize, s.logger)
	mux.HandleFunc("/guide", guideHandler.ServeHTTP)

	// Remote control actions
	actionHandler := handlers.NewActionHandler(s.sessions, s.logger)
	mux.HandleFunc("/api/action", actionHandler.ServeHTTP)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
