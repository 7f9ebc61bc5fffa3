// Package server exposes the assistant over HTTP: chat turns,
// transcript reads, and history clearing, mirrored from the original
// browser-facing API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Sidharth6Shah/cf-ai-personal-assistant/internal/assistant"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/session"
)

// Config holds HTTP server settings.
type Config struct {
	Addr string

	// RequestsPerSecond and Burst configure rate limiting. Zero
	// requests-per-second disables it.
	RequestsPerSecond float64
	Burst             int
}

// Server serves the assistant API.
type Server struct {
	assistant  *assistant.Assistant
	httpServer *http.Server
	limiter    *RateLimiter
}

// New creates the HTTP server around an assistant.
func New(a *assistant.Assistant, cfg Config) *Server {
	s := &Server{assistant: a}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond)
		}
		s.limiter = NewRateLimiter(cfg.RequestsPerSecond, burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/clear", s.handleClear)

	handler := withCORS(withRateLimit(s.limiter, withLogging(mux)))

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Printf("assistant API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type historyResponse struct {
	Messages []session.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := s.assistant.HandleTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.writeAssistantError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := session.HistoryWindow
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	messages, err := s.assistant.History(r.Context(), r.URL.Query().Get("sessionId"), limit)
	if err != nil {
		s.writeAssistantError(w, err)
		return
	}
	if messages == nil {
		messages = []session.Message{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Messages: messages})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.assistant.Clear(r.Context(), req.SessionID); err != nil {
		s.writeAssistantError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeAssistantError maps pipeline errors to HTTP statuses. Client
// messages stay generic; detail goes to the log.
func (s *Server) writeAssistantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, assistant.ErrInference):
		log.Printf("inference error: %v", err)
		writeError(w, http.StatusBadGateway, "failed to generate a response")
	case errors.Is(err, assistant.ErrStoreUnavailable):
		log.Printf("store error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "session storage unavailable")
	default:
		log.Printf("unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
