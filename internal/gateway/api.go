// ABOUTME: Read API handlers: published-post feed, single post lookup, and the SSE live stream.
// ABOUTME: Readers never mutate; the pipeline is the sole writer after admission.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cin-network/cin-gateway/internal/store"
)

// defaultFeedLimit bounds GET /api/posts when no limit is given.
const defaultFeedLimit = 100

// handleListPosts handles GET /api/posts. Returns published posts, newest
// first. Supports an optional ?limit=N query parameter (capped at 500).
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit := defaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeJSON(w, http.StatusBadRequest, WebhookResponse{
				Status:  outcomeError,
				Message: "limit must be a positive integer",
			})
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	posts, err := s.store.ListPosts(r.Context(), store.StatusPublished, limit)
	if err != nil {
		s.logger.Error("listing posts failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, WebhookResponse{
			Status:  outcomeError,
			Message: "Internal error listing posts.",
		})
		return
	}
	if posts == nil {
		posts = []*store.Post{}
	}
	s.writeJSON(w, http.StatusOK, posts)
}

// handleGetPost handles GET /api/posts/{id}.
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	post, err := s.store.GetPost(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, WebhookResponse{
			Status:  outcomeError,
			Message: "Post not found.",
		})
		return
	}
	if err != nil {
		s.logger.Error("loading post failed", "post_id", id, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, WebhookResponse{
			Status:  outcomeError,
			Message: "Internal error loading post.",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

// handleEvents handles GET /api/events: a Server-Sent Events stream of
// published posts. Each event is "event: new_post" with the full post as
// JSON data. Delivery is best-effort; a disconnected or slow client only
// loses its own events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.writeJSON(w, http.StatusInternalServerError, WebhookResponse{
			Status:  outcomeError,
			Message: "streaming not supported",
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, subID := s.broadcaster.Subscribe(r.Context())
	s.logger.Info("SSE subscriber connected", "sub_id", subID, "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE subscriber disconnected", "sub_id", subID)
			return
		case post, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(post)
			if err != nil {
				s.logger.Warn("encoding SSE event failed", "post_id", post.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: new_post\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
