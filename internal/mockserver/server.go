// Package mockserver serves a canned OpenAI chat completion endpoint so the
// probe can run against a harness without reaching the hosted API.
package mockserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/logkn/poemprobe/internal/utils"
)

const (
	CompletionID   = "chatcmpl-1234"
	Model          = "gpt-4o-mini"
	Created        = 1677652281
	DefaultContent = "This is a mock response from the server."
)

// Server answers POST /v1/chat/completions with a fixed completion.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	content string
	choices []map[string]any
	status  int

	mu          sync.Mutex
	lastRequest map[string]any
}

type Option func(*Server)

// WithContent replaces the assistant content of the single canned choice.
func WithContent(content string) Option {
	return func(s *Server) { s.content = content }
}

// WithChoices replaces the whole choices array, e.g. with none or with a
// choice that has no message.
func WithChoices(choices []map[string]any) Option {
	return func(s *Server) { s.choices = choices }
}

// WithStatus makes every request fail with the given HTTP status.
func WithStatus(status int) Option {
	return func(s *Server) { s.status = status }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New constructs a Server listening on addr once Start is called.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		content: DefaultContent,
		logger:  utils.NilLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/chat/completions", s.handleChatCompletion).
		Methods(http.MethodPost)
	r.Use(s.loggingMiddleware)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening and blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the underlying http.Handler (for use in tests with httptest.NewServer).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// LastRequest returns the most recent decoded request body, or nil.
func (s *Server) LastRequest() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequest
}

func (s *Server) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "expected application/json")
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "malformed JSON body")
		return
	}

	s.mu.Lock()
	s.lastRequest = body
	s.mu.Unlock()

	if s.status != 0 {
		writeError(w, s.status, "server_error", http.StatusText(s.status))
		return
	}

	writeJSON(w, http.StatusOK, s.completion())
}

func (s *Server) completion() map[string]any {
	choices := s.choices
	if choices == nil {
		choices = []map[string]any{{
			"index": 0,
			"message": map[string]any{
				"role":    "assistant",
				"content": s.content,
			},
			"finish_reason": "stop",
		}}
	}

	return map[string]any{
		"id":      CompletionID,
		"object":  "chat.completion",
		"created": Created,
		"model":   Model,
		"choices": choices,
		"usage": map[string]int{
			"prompt_tokens":     5,
			"completion_tokens": 7,
			"total_tokens":      12,
		},
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError uses the OpenAI error envelope so SDK clients surface the message.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errType,
		},
	})
}
