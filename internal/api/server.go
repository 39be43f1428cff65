// Package api exposes the assistant over HTTP: a JSON health probe and an
// SSE streaming chat endpoint.
package api

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/CodeHalwell/digital-cv/internal/completion"
)

// Server timeouts. WriteTimeout is generous because a chat stream can stay
// open while the model produces a long answer.
const (
	ReadTimeout       = 30 * time.Second
	ReadHeaderTimeout = 10 * time.Second
	WriteTimeout      = 5 * time.Minute
	IdleTimeout       = 120 * time.Second
)

// Chatter runs one conversation turn, emitting cumulative assistant text.
type Chatter interface {
	Chat(ctx context.Context, message string, history []completion.Message) iter.Seq[string]
}

// ServerConfig contains configuration for creating the HTTP server.
type ServerConfig struct {
	Addr    string
	Chatter Chatter
	Logger  *slog.Logger
}

func (cfg ServerConfig) validate() error {
	if cfg.Addr == "" {
		return errors.New("listen address is required")
	}
	if cfg.Chatter == nil {
		return errors.New("chatter is required")
	}
	return nil
}

// Server is the public HTTP server.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a Server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{chatter: cfg.Chatter, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health)
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)

	// Middleware stack, outermost first: recovery, request ID, logging.
	// Request ID runs before logging so every access log line carries it.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       ReadTimeout,
			ReadHeaderTimeout: ReadHeaderTimeout,
			WriteTimeout:      WriteTimeout,
			IdleTimeout:       IdleTimeout,
		},
		logger: logger,
	}, nil
}

// Handler returns the fully wrapped root handler, used by tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe blocks serving requests until Shutdown is called or the
// listener fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// health reports liveness for container probes.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
