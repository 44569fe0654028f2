// Package api provides the HTTP surface of the pricing engine: quote
// requests, markup rule CRUD and profit analytics. Owner identity
// arrives in the X-Owner-ID header; issuing and verifying credentials
// is someone else's job.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sms-margin/decision/analytics"
	"sms-margin/decision/pricing"
	"sms-margin/internal/ratesource"
	"sms-margin/internal/stream"
)

// Pinger is the readiness probe seam for the backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		CORSOrigins:  []string{"*"},
	}
}

// Deps carries the collaborators the server is wired with. Publisher
// may be nil, which disables decision recording (quotes still work,
// nothing reaches analytics).
type Deps struct {
	Pricing    *pricing.Service
	Analytics  *analytics.Aggregator
	Rates      ratesource.Source
	Publisher  *stream.DecisionPublisher
	RuleDB     Pinger
	DecisionDB Pinger
	Logger     zerolog.Logger
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	deps       Deps
	config     *Config
	metrics    *apiMetrics
}

// NewServer creates a new API server.
func NewServer(deps Deps, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		deps:    deps,
		config:  config,
		metrics: newAPIMetrics(),
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", s.metrics.handler())
	mux.HandleFunc("/api/v1/quote", s.handleQuote)
	mux.HandleFunc("/api/v1/rules", s.handleRules)
	mux.HandleFunc("/api/v1/rules/", s.handleRuleByID)
	mux.HandleFunc("/api/v1/analytics/profit", s.handleProfitSummary)

	handler := s.corsMiddleware(s.loggingMiddleware(mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.deps.Logger.Info().Int("port", s.config.Port).Msg("pricing API server starting")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server and drains it on
// SIGINT/SIGTERM.
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.deps.Logger.Info().Msg("shutting down pricing API server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.deps.Logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Owner-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.deps.RuleDB != nil {
		if err := s.deps.RuleDB.Ping(ctx); err != nil {
			s.jsonError(w, http.StatusServiceUnavailable, "rule store not ready")
			return
		}
	}
	if s.deps.DecisionDB != nil {
		if err := s.deps.DecisionDB.Ping(ctx); err != nil {
			s.jsonError(w, http.StatusServiceUnavailable, "decision store not ready")
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// ownerFromRequest extracts the caller's owner identity.
func ownerFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Owner-ID")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing X-Owner-ID header")
	}
	owner, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid X-Owner-ID header")
	}
	return owner, nil
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.deps.Logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeEngineError maps the engine's error taxonomy onto HTTP status
// codes: validation and computation failures are unprocessable input,
// unknown/unowned rules are 404, anything else is an internal error.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var vErr *pricing.ValidationError
	if errors.As(err, &vErr) {
		s.jsonResponse(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "validation failed",
			"field":  vErr.Field,
			"reason": vErr.Reason,
		})
		return
	}

	var cErr *pricing.ComputationError
	if errors.As(err, &cErr) {
		s.jsonResponse(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "computation failed",
			"reason": cErr.Reason,
		})
		return
	}

	if errors.Is(err, pricing.ErrRuleNotFound) {
		s.jsonError(w, http.StatusNotFound, "markup rule not found")
		return
	}

	s.deps.Logger.Error().Err(err).Msg("internal error")
	s.jsonError(w, http.StatusInternalServerError, "internal error")
}
