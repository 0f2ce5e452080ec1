// Package http exposes the orchestration engine over a small JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/go-swarm/llm"
	"github.com/KamdynS/go-swarm/observability"
	"github.com/KamdynS/go-swarm/orchestrator"
	"github.com/KamdynS/go-swarm/swarm"
)

// Engine is the orchestration surface the server needs.
type Engine interface {
	SubmitUserMessage(ctx context.Context, message string) (*orchestrator.TurnResult, error)
	ListInstances() (*swarm.Instance, []swarm.Instance)
	GetInstance(ref string) (swarm.Instance, error)
	Clear(ctx context.Context) error
	Stats() swarm.Stats
	Diagram() string
	State() orchestrator.State
}

// Server wraps an orchestration engine with HTTP endpoints
type Server struct {
	engine Engine
	config Config
	server *http.Server
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EnableCORS   bool
	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler
}

// NewServer creates a new HTTP server for an orchestration engine
func NewServer(engine Engine, config Config) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout == 0 {
		// Turns block on model calls, so writes stay open far longer
		// than a typical request.
		config.WriteTimeout = 15 * time.Minute
	}

	s := &Server{
		engine: engine,
		config: config,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	var handler http.Handler = mux
	if config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/message", s.messageHandler)
	mux.HandleFunc("/api/instances", s.instancesHandler)
	mux.HandleFunc("/api/instances/", s.instanceHandler)
	mux.HandleFunc("/api/clear", s.clearHandler)
	mux.HandleFunc("/api/stats", s.statsHandler)
	mux.HandleFunc("/api/diagram", s.diagramHandler)
	if s.config.MetricsHandler != nil {
		mux.Handle("/metrics", s.config.MetricsHandler)
	}
}

// Handler returns the configured root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// MessageRequest represents an incoming user message
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse represents the result of one turn
type MessageResponse struct {
	Response  string           `json:"response"`
	Analysis  string           `json:"analysis,omitempty"`
	Actions   []string         `json:"actions,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
	Instances []swarm.Instance `json:"instances"`
	Turn      int              `json:"turn"`
	Error     string           `json:"error,omitempty"`
}

// healthHandler provides a health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.engine == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "initializing",
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"state":  string(s.engine.State()),
		"time":   time.Now().Format(time.RFC3339),
	})
}

// messageHandler runs one orchestration turn
func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.ready(w) {
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, "Message is required", http.StatusBadRequest)
		return
	}

	ctx := observability.ExtractHTTPContext(r.Context(), r)
	observability.InjectHTTPHeaders(w, ctx)

	result, err := s.engine.SubmitUserMessage(ctx, req.Message)
	if err != nil {
		log.Printf("Turn error: %v", err)
		if errors.Is(err, orchestrator.ErrMotherUnavailable) {
			s.writeError(w, "Orchestrator is still initializing", http.StatusServiceUnavailable)
			return
		}
		s.writeError(w, "Failed to process message", statusForTurnError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MessageResponse{
		Response:  result.Response,
		Analysis:  result.Analysis,
		Actions:   result.Actions,
		Warnings:  result.Warnings,
		Instances: result.Instances,
		Turn:      result.Turn,
	})
}

// statusForTurnError maps turn failures onto HTTP status codes. Timeouts
// surface as gateway timeouts, a missing planner means the system is still
// initializing, everything else is a generic processing failure.
func statusForTurnError(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || llm.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, orchestrator.ErrMotherUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ready rejects API calls made before an engine is attached
func (s *Server) ready(w http.ResponseWriter) bool {
	if s.engine == nil {
		s.writeError(w, "Orchestrator is still initializing", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// instancesHandler lists the mother and all worker instances
func (s *Server) instancesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.ready(w) {
		return
	}

	mother, workers := s.engine.ListInstances()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"mother":    mother,
		"instances": workers,
	})
}

// instanceHandler returns a single instance by role or id
func (s *Server) instanceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.ready(w) {
		return
	}

	ref := strings.TrimPrefix(r.URL.Path, "/api/instances/")
	if ref == "" {
		s.writeError(w, "Instance reference is required", http.StatusBadRequest)
		return
	}

	inst, err := s.engine.GetInstance(ref)
	if err != nil {
		s.writeError(w, "Instance not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(inst)
}

// clearHandler resets the network
func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.ready(w) {
		return
	}

	if err := s.engine.Clear(r.Context()); err != nil {
		log.Printf("Clear error: %v", err)
		s.writeError(w, "Failed to clear network", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}

// statsHandler reports network counters
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.ready(w) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Stats())
}

// diagramHandler renders the network as a Mermaid graph
func (s *Server) diagramHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.ready(w) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"diagram": s.engine.Diagram()})
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(MessageResponse{Error: message})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Printf("HTTP server starting on port %d", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		log.Println("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
