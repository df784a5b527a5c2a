// Package api exposes the agent over HTTP: the chat endpoint, the mock
// flight-search endpoint, and the operational surface (health, metrics).
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voyagent-dev/voyagent/internal/agent"
	"github.com/voyagent-dev/voyagent/pkg/observability"
)

// Invoker is the part of the agent the chat handler needs.
type Invoker interface {
	Invoke(ctx context.Context, userQuery, sessionID string) (*agent.TurnResult, error)
}

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	agent  Invoker
	health *observability.HealthChecker
	cors   []string
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins restricts cross-origin requests to the given origins.
// Default is "*".
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.cors = origins }
}

// WithHealthChecker attaches readiness checks to /health.
func WithHealthChecker(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// NewServer creates the server around an agent.
func NewServer(a Invoker, opts ...Option) *Server {
	s := &Server{
		agent:  a,
		health: observability.NewHealthChecker(),
		cors:   []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(metricsMiddleware)

	r.Post("/chat", s.handleChat)
	r.Get("/flight-search", s.handleFlightSearch)

	r.Get("/health", s.health.Handler())
	r.Get("/health/live", observability.LivenessHandler())
	r.Handle("/metrics", observability.MetricsHandler())

	return r
}

type chatRequest struct {
	UserQuery string `json:"user_query"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserQuery == "" {
		writeError(w, http.StatusBadRequest, "user_query is required")
		return
	}

	result, err := s.agent.Invoke(r.Context(), req.UserQuery, req.SessionID)
	if err != nil {
		log.Printf("chat turn failed: %v", err)
		writeError(w, http.StatusInternalServerError, "turn failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := "*"
	if len(s.cors) > 0 {
		allowed = s.cors[0]
	}
	allowedSet := make(map[string]struct{}, len(s.cors))
	for _, o := range s.cors {
		allowedSet[o] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if _, ok := allowedSet["*"]; ok {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowedSet[origin]; ok && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		observability.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
