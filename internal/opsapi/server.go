// Package opsapi exposes a small HTTP surface for operating a running
// consumer: health, halted-thread listing and reset, and the current
// checkpoint. It exists because PolicyHalt needs an operator (or supervisory
// tooling) to unblock threads without restarting the process.
package opsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	intcheckpoint "github.com/streamguard/streamguard-go/internal/checkpoint"
	"github.com/streamguard/streamguard-go/pkg/sequence"
)

// Config holds ops API server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8710".
	Addr string

	// SecretKey signs operator tokens. Empty disables authentication; every
	// endpoint is then open, which is only sensible on a loopback address.
	SecretKey string

	// CheckpointPath, Topic and Partition locate the checkpoint the
	// /checkpoint endpoint reports.
	CheckpointPath string
	Topic          string
	Partition      int32
}

// Server is the ops API HTTP server.
type Server struct {
	cfg       Config
	validator sequence.Validator
	auth      *JWTAuth
	server    *http.Server
	log       *zap.Logger
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Healthy       bool   `json:"healthy"`
	Topic         string `json:"topic"`
	Partition     int32  `json:"partition"`
	HaltedThreads int    `json:"halted_threads"`
}

// HaltedResponse is the /halted payload.
type HaltedResponse struct {
	Threads []string `json:"threads"`
}

// ResetResponse is the /halted/{id}/reset payload.
type ResetResponse struct {
	ThreadID string `json:"thread_id"`
	Halted   bool   `json:"halted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates an ops API server over the given validator. The validator
// must be safe for use concurrent with the consumer loop (wrap a Tracker in
// consumer.SyncValidator).
func NewServer(cfg Config, validator sequence.Validator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		cfg:       cfg,
		validator: validator,
		log:       log,
	}
	if cfg.SecretKey != "" {
		s.auth = NewJWTAuth(cfg.SecretKey)
	}

	s.server = &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.routes(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the configured handler, used by tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// routes configures all HTTP routes.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(h http.HandlerFunc) http.Handler {
		return s.recovery(s.logging(h))
	}

	mux.Handle("/api/v1/health", wrap(s.handleHealth))
	mux.Handle("/api/v1/halted", wrap(s.authRequired(s.handleHalted)))
	mux.Handle("/api/v1/halted/", wrap(s.authRequired(s.handleHaltedReset)))
	mux.Handle("/api/v1/checkpoint", wrap(s.authRequired(s.handleCheckpoint)))

	return mux
}

// handleHealth reports liveness; no auth required so probes stay simple.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Healthy:       true,
		Topic:         s.cfg.Topic,
		Partition:     s.cfg.Partition,
		HaltedThreads: len(s.validator.HaltedThreads()),
	})
}

func (s *Server) handleHalted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	threads := s.validator.HaltedThreads()
	if threads == nil {
		threads = []string{}
	}
	s.writeJSON(w, http.StatusOK, HaltedResponse{Threads: threads})
}

// handleHaltedReset unblocks one halted thread: POST /api/v1/halted/{id}/reset.
// With ?full=true the thread's tracking state is cleared as well, so its next
// message re-baselines.
func (s *Server) handleHaltedReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/halted/")
	threadID, ok := strings.CutSuffix(rest, "/reset")
	if !ok || threadID == "" {
		s.writeError(w, "expected /api/v1/halted/{thread}/reset", http.StatusNotFound)
		return
	}

	s.validator.ResetHalted(threadID)
	if r.URL.Query().Get("full") == "true" {
		s.validator.Reset(threadID)
	}

	s.log.Info("halted thread reset via ops API",
		zap.String("thread", threadID),
		zap.Bool("full", r.URL.Query().Get("full") == "true"))

	s.writeJSON(w, http.StatusOK, ResetResponse{
		ThreadID: threadID,
		Halted:   s.validator.IsHalted(threadID),
	})
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.CheckpointPath == "" {
		s.writeError(w, "checkpointing is not configured", http.StatusNotFound)
		return
	}

	cp, err := intcheckpoint.Load(s.cfg.CheckpointPath, s.cfg.Topic, s.cfg.Partition)
	if err != nil {
		s.writeError(w, "failed to load checkpoint: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if cp == nil {
		s.writeError(w, "no checkpoint recorded yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, cp)
}

// authRequired validates the bearer token when authentication is configured.
func (s *Server) authRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			next(w, r)
			return
		}
		if _, err := s.auth.ValidateToken(r.Header.Get("Authorization")); err != nil {
			s.writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// recovery turns handler panics into 500s instead of killing the consumer.
func (s *Server) recovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("ops API handler panicked",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path))
				s.writeError(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

func (s *Server) logging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		s.log.Debug("ops API request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("failed to encode ops API response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg string, status int) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
