// ABOUTME: The ingestion endpoint: POST /webhook/update and GET /webhook/status.
// ABOUTME: Authenticate, validate, dedup, admit through the gate, persist a placeholder, dispatch.

package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cin-network/cin-gateway/internal/pipeline"
	"github.com/cin-network/cin-gateway/internal/store"
)

// webhookTokenHeader carries the opaque shared secret.
const webhookTokenHeader = "X-Webhook-Token"

// maxBodyBytes caps the request body. Content tops out at 50k characters;
// this leaves generous headroom for the rest of the payload.
const maxBodyBytes = 1 << 20

// WebhookResponse is the JSON body for every webhook outcome.
type WebhookResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	PostID          string `json:"post_id,omitempty"`
	CurrentHeadline string `json:"current_headline,omitempty"`
}

// Webhook outcome status strings, the only five shapes callers ever see.
const (
	outcomeError     = "error"
	outcomeDuplicate = "duplicate"
	outcomeBusy      = "busy"
	outcomeAccepted  = "accepted"
)

// tokenValid compares the provided token against the configured secret in
// constant time. An unset secret rejects everything.
func (s *Server) tokenValid(provided string) bool {
	if len(s.webhookSecret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), s.webhookSecret) == 1
}

// handleWebhookUpdate admits a content update for processing.
//
// The order of the duplicate check, the gate acquisition, and the
// placeholder insert is load-bearing: the placeholder row must exist
// before the handler returns so a racing resubmission of the same
// headline sees it in the dedup index.
func (s *Server) handleWebhookUpdate(w http.ResponseWriter, r *http.Request) {
	receivedAt := time.Now()

	// 1. Authenticate.
	token := r.Header.Get(webhookTokenHeader)
	if token == "" {
		s.logger.Warn("webhook rejected: missing token", "remote", r.RemoteAddr)
		s.writeJSON(w, http.StatusUnauthorized, WebhookResponse{
			Status:  outcomeError,
			Message: "Missing authentication token. Provide " + webhookTokenHeader + " header.",
		})
		return
	}
	if !s.tokenValid(token) {
		s.logger.Warn("webhook rejected: invalid token", "remote", r.RemoteAddr)
		s.writeJSON(w, http.StatusUnauthorized, WebhookResponse{
			Status:  outcomeError,
			Message: "Invalid authentication token.",
		})
		return
	}

	// 2. Parse and validate.
	payload, err := decodePayload(r.Body)
	if err != nil {
		s.logger.Warn("webhook rejected: bad payload", "error", err)
		s.writeJSON(w, http.StatusBadRequest, WebhookResponse{
			Status:  outcomeError,
			Message: err.Error(),
		})
		return
	}

	// 3. Duplicate check. A known headline is a legitimate steady-state
	// outcome, not an error, and never touches the gate.
	exists, err := s.store.HeadlineExists(r.Context(), payload.Headline)
	if err != nil {
		s.logger.Error("duplicate check failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, WebhookResponse{
			Status:  outcomeError,
			Message: "Internal error during duplicate check.",
		})
		return
	}
	if exists {
		s.logger.Info("duplicate headline ignored", "headline", truncate(payload.Headline, 80))
		s.writeJSON(w, http.StatusOK, WebhookResponse{
			Status:  outcomeDuplicate,
			Message: "This headline has already been processed.",
		})
		return
	}

	// 4. Admission: one slot, system-wide.
	if !s.gate.TryAcquire(payload.Headline) {
		current := s.gate.CurrentHeadline()
		s.logger.Warn("gate busy, submission rejected",
			"processing", truncate(current, 60),
			"rejected", truncate(payload.Headline, 60))
		s.writeJSON(w, http.StatusServiceUnavailable, WebhookResponse{
			Status:          outcomeBusy,
			Message:         "The agent is currently processing another article. Please retry later.",
			CurrentHeadline: current,
		})
		return
	}

	// 5. Placeholder commit: makes the headline visible to duplicate
	// checks before this handler returns.
	postID := uuid.New().String()
	placeholder := &store.Post{
		ID:        postID,
		Title:     payload.Headline,
		Domain:    payload.Domain,
		KeyPoints: []string{},
		Sources:   payload.Sources,
		Status:    store.StatusProcessing,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SavePost(r.Context(), placeholder); err != nil {
		// Admission failed after acquisition; the job never dispatches,
		// so release here instead.
		s.gate.Release()
		s.logger.Error("placeholder insert failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, WebhookResponse{
			Status:  outcomeError,
			Message: "Internal error persisting submission.",
		})
		return
	}

	// 6. Dispatch and return immediately.
	s.dispatch(payload, postID)

	s.logger.Info("submission accepted",
		"post_id", postID,
		"headline", truncate(payload.Headline, 80),
		"admission_time", time.Since(receivedAt).Round(time.Millisecond))
	s.writeJSON(w, http.StatusAccepted, WebhookResponse{
		Status:  outcomeAccepted,
		Message: "Agent is now processing your article. It is busy until the post is published.",
		PostID:  postID,
	})
}

// dispatch runs the pipeline on a background goroutine. This is the only
// place the gate is released for an admitted job, and the deferred call
// guarantees release exactly once regardless of how the pipeline ends.
func (s *Server) dispatch(payload *pipeline.UpdatePayload, postID string) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		defer s.gate.Release()

		// Jobs run to a terminal outcome; there is no mid-pipeline
		// cancellation, so the request context is deliberately not
		// propagated here.
		result := s.orchestrator.Run(context.Background(), payload, postID)
		s.logger.Info("pipeline done",
			"post_id", result.PostID,
			"status", result.Status,
			"duration", result.Duration.Round(time.Millisecond))
	}()
}

// handleStatus reports the gate snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.gate.Status())
}

// decodePayload parses and validates the request body. The returned error
// message is safe to show callers and names the first offending field.
func decodePayload(body io.Reader) (*pipeline.UpdatePayload, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading request body failed")
	}

	var payload pipeline.UpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, fmt.Errorf("field '%s' must be of type %s", typeErr.Field, typeErr.Type)
		}
		return nil, fmt.Errorf("malformed JSON body")
	}
	if err := pipeline.ValidatePayload(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
