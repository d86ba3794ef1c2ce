// ABOUTME: HTTP server wiring for cin-gateway: webhook ingestion, status, feed API, and SSE.
// ABOUTME: Owns the dispatch of admitted jobs to background pipeline runs and the matching gate release.

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cin-network/cin-gateway/internal/broadcast"
	"github.com/cin-network/cin-gateway/internal/gate"
	"github.com/cin-network/cin-gateway/internal/pipeline"
	"github.com/cin-network/cin-gateway/internal/store"
)

// Server exposes the ingestion webhook, the gate status endpoint, and the
// read API over a single HTTP listener.
type Server struct {
	addr          string
	webhookSecret []byte
	store         store.Store
	gate          *gate.Gate
	orchestrator  *pipeline.Orchestrator
	broadcaster   *broadcast.Broadcaster
	logger        *slog.Logger

	// jobs tracks in-flight pipeline goroutines so tests can drain them.
	jobs sync.WaitGroup
}

// Options configures a Server.
type Options struct {
	Addr          string
	WebhookSecret string
	Store         store.Store
	Gate          *gate.Gate
	Orchestrator  *pipeline.Orchestrator
	Broadcaster   *broadcast.Broadcaster
	Logger        *slog.Logger
}

// New creates a Server. Pass a nil logger for default.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:          opts.Addr,
		webhookSecret: []byte(opts.WebhookSecret),
		store:         opts.Store,
		gate:          opts.Gate,
		orchestrator:  opts.Orchestrator,
		broadcaster:   opts.Broadcaster,
		logger:        logger.With("component", "gateway"),
	}
}

// Routes builds the HTTP mux for the server.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /webhook/update", s.handleWebhookUpdate)
	mux.HandleFunc("GET /webhook/status", s.handleStatus)
	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("GET /api/posts/{id}", s.handleGetPost)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	return mux
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
// In-flight pipeline jobs are not awaited; the startup cleanup sweep
// reclassifies their placeholder rows on the next boot.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response failed", "error", err)
	}
}
