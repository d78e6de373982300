// Package server exposes the classification pipeline over HTTP.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/tariff/internal/model"
)

// Classifier runs the classification pipeline for one product.
type Classifier interface {
	Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error)
}

// History reads recorded classifications.
type History interface {
	ListClassifications(ctx context.Context, limit int) ([]model.ClassificationSummary, error)
	GetClassification(ctx context.Context, id int64) (*model.ClassificationResult, error)
	Ping(ctx context.Context) error
}

// Config controls request limits.
type Config struct {
	// RateLimit is the sustained number of classification requests per
	// second allowed per client IP.
	RateLimit      float64
	Burst          int
	RequestTimeout time.Duration
	// TLS, when set, makes Run serve HTTPS.
	TLS *tls.Config
}

// Server serves the classification API.
type Server struct {
	classifier Classifier
	history    History
	logger     *slog.Logger
	limiter    *ipRateLimiter
	config     Config
}

// New creates a server. history may be nil, in which case the history routes
// answer 404.
func New(classifier Classifier, history History, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Minute
	}
	return &Server{
		classifier: classifier,
		history:    history,
		logger:     logger,
		config:     cfg,
		limiter:    newIPRateLimiter(cfg.RateLimit, cfg.Burst),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer(s.logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Use(chimiddleware.Timeout(s.config.RequestTimeout))

		r.Post("/process", s.handleProcess)
		r.Post("/api/classify", s.handleClassify)
	})

	r.Route("/api/classifications", func(r chi.Router) {
		r.Get("/", s.handleListClassifications)
		r.Get("/{id}", s.handleGetClassification)
	})

	return r
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         s.config.TLS,
	}

	errCh := make(chan error, 1)
	go func() {
		if srv.TLSConfig != nil {
			s.logger.Info("https server listening", "addr", addr)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	stopLimiter := s.limiter.startCleanup(time.Minute, 10*time.Minute)
	defer stopLimiter()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
