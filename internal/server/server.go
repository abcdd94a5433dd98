// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/danhackerowner-jpg/gemini-bot/internal/controller"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:8787"

	// DefaultRoute is the proxy route.
	DefaultRoute = "/api/gemini"

	// MaxRequestBodySize caps the proxy request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	methodNotAllowedText = "Only POST requests allowed"
	upstreamErrorText    = "Error calling Gemini API"
)

// ============================================================================
// WIRE TYPES
// ============================================================================

// ProxyRequest is the body accepted on the proxy route.
type ProxyRequest struct {
	History []model.Message `json:"history"`
}

// ProxyResponse is the success body.
type ProxyResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ============================================================================
// SERVER
// ============================================================================

// Config holds the server settings.
type Config struct {
	Addr           string
	Route          string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server relays POSTed histories to a Provider.
type Server struct {
	cfg      Config
	provider controller.Provider
	router   *http.ServeMux
	handler  http.Handler

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewServer creates a server. Empty config fields take their defaults.
func NewServer(cfg Config, provider controller.Provider) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Route == "" {
		cfg.Route = DefaultRoute
	}

	s := &Server{
		cfg:      cfg,
		provider: provider,
		router:   http.NewServeMux(),
	}
	s.setupRoutes()

	s.handler = Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(),
		RateLimitMiddleware(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)),
	)(s.router)
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Handler returns the full handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes() {
	// Method checking is done in the handler so that every non-POST method
	// gets the JSON 405 body.
	s.router.HandleFunc(s.cfg.Route, s.handleProxy)
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: methodNotAllowedText})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("proxy request body rejected")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: upstreamErrorText})
		return
	}
	if req.History == nil {
		log.Warn().Msg("proxy request has no history")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: upstreamErrorText})
		return
	}

	reply, err := s.provider.Complete(r.Context(), req.History)
	if err != nil {
		log.Error().Err(err).Int("messages", len(req.History)).Msg("provider call failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: upstreamErrorText})
		return
	}

	writeJSON(w, http.StatusOK, ProxyResponse{Reply: reply})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	log.Info().Str("addr", ln.Addr().String()).Str("route", s.cfg.Route).Msg("proxy listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. A later
// Serve returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.closed = true
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	log.Info().Msg("proxy shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}
