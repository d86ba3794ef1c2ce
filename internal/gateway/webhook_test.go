// ABOUTME: Tests for the ingestion webhook endpoint.
// ABOUTME: Covers auth, validation, dedup, gate busy, placeholder commit, and dispatch release.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cin-network/cin-gateway/internal/gate"
	"github.com/cin-network/cin-gateway/internal/pipeline"
	"github.com/cin-network/cin-gateway/internal/store"
)

const testSecret = "test-webhook-secret"

// blockingGenerator parks the pipeline until released, so tests can
// observe the placeholder row and the busy gate deterministically.
type blockingGenerator struct {
	proceed chan struct{}
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{proceed: make(chan struct{})}
}

func (g *blockingGenerator) Generate(ctx context.Context, payload *pipeline.UpdatePayload) (*pipeline.Draft, error) {
	<-g.proceed
	return pipeline.FallbackDraft(payload), nil
}

func (g *blockingGenerator) release() {
	close(g.proceed)
}

type testHarness struct {
	server *Server
	store  *store.MockStore
	gate   *gate.Gate
	gen    *blockingGenerator
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	mockStore := store.NewMockStore()
	g := gate.New(nil)
	gen := newBlockingGenerator()
	orch := pipeline.NewOrchestrator(mockStore, gen, pipeline.NewKeywordFilter(), nil, nil, nil)

	srv := New(Options{
		Addr:          "127.0.0.1:0",
		WebhookSecret: testSecret,
		Store:         mockStore,
		Gate:          g,
		Orchestrator:  orch,
	})
	return &testHarness{server: srv, store: mockStore, gate: g, gen: gen}
}

func validBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"domain":    "Technology",
		"headline":  "Fusion Reactor Reaches Ignition",
		"content":   "The reactor sustained ignition for ten seconds.",
		"sources":   []string{"https://example.com/fusion"},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	return body
}

func (h *testHarness) post(t *testing.T, body []byte, token string) (*httptest.ResponseRecorder, WebhookResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/update", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(webhookTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	h.server.Routes().ServeHTTP(rec, req)

	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestWebhookMissingToken(t *testing.T) {
	h := newTestHarness(t)

	rec, resp := h.post(t, validBody(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", resp.Status)
}

func TestWebhookInvalidToken(t *testing.T) {
	h := newTestHarness(t)

	rec, resp := h.post(t, validBody(), "wrong-secret")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, h.gate.Busy(), "auth failure must not touch the gate")
}

func TestWebhookUnsetSecretRejectsAll(t *testing.T) {
	h := newTestHarness(t)
	h.server.webhookSecret = nil

	rec, _ := h.post(t, validBody(), "anything")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMalformedJSON(t *testing.T) {
	h := newTestHarness(t)

	rec, resp := h.post(t, []byte("{not json"), testSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "JSON")
}

func TestWebhookValidationNamesField(t *testing.T) {
	h := newTestHarness(t)

	body, _ := json.Marshal(map[string]any{
		"domain":    "Technology",
		"headline":  "Headline",
		"content":   "Content",
		"sources":   []string{},
		"timestamp": "2026-08-20T10:00:00Z",
	})
	rec, resp := h.post(t, body, testSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "sources")

	// Wrong field type names the field too.
	body, _ = json.Marshal(map[string]any{
		"domain":    "Technology",
		"headline":  123,
		"content":   "Content",
		"sources":   []string{"s"},
		"timestamp": "2026-08-20T10:00:00Z",
	})
	rec, resp = h.post(t, body, testSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "headline")
}

func TestWebhookAcceptedCreatesPlaceholderAndPublishes(t *testing.T) {
	h := newTestHarness(t)

	rec, resp := h.post(t, validBody(), testSecret)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "accepted", resp.Status)
	require.NotEmpty(t, resp.PostID)

	// While the pipeline is parked, the placeholder row exists in
	// processing status and the gate is held.
	got, err := h.store.GetPost(context.Background(), resp.PostID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusProcessing, got.Status)
	assert.True(t, h.gate.Busy())

	// Let the pipeline finish; the gate must be released exactly once
	// and the row published.
	h.gen.release()
	h.server.jobs.Wait()

	assert.False(t, h.gate.Busy())
	got, err = h.store.GetPost(context.Background(), resp.PostID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPublished, got.Status)
}

func TestWebhookDuplicateHeadline(t *testing.T) {
	h := newTestHarness(t)

	_, first := h.post(t, validBody(), testSecret)
	require.Equal(t, "accepted", first.Status)

	// Same headline again while the first is still processing.
	rec, resp := h.post(t, validBody(), testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", resp.Status)
	assert.Empty(t, resp.PostID)

	h.gen.release()
	h.server.jobs.Wait()

	// Published now; still a duplicate.
	rec, resp = h.post(t, validBody(), testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", resp.Status)
}

func TestWebhookBusyGate(t *testing.T) {
	h := newTestHarness(t)
	require.True(t, h.gate.TryAcquire("Occupying Headline"))

	body, _ := json.Marshal(map[string]any{
		"domain":    "Science",
		"headline":  "A Different Headline",
		"content":   "Content",
		"sources":   []string{"https://example.com"},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	rec, resp := h.post(t, body, testSecret)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "busy", resp.Status)
	assert.Equal(t, "Occupying Headline", resp.CurrentHeadline)

	// The busy outcome leaves the store untouched: no placeholder row.
	posts, err := h.store.ListPosts(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestWebhookRejectedHeadlineIsRetryable(t *testing.T) {
	h := newTestHarness(t)

	// Seed a rejected post with the same headline.
	require.NoError(t, h.store.SavePost(context.Background(), &store.Post{
		ID:     "old",
		Title:  "Fusion Reactor Reaches Ignition",
		Domain: "Technology",
		Status: store.StatusRejected,
	}))

	rec, resp := h.post(t, validBody(), testSecret)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "accepted", resp.Status)

	h.gen.release()
	h.server.jobs.Wait()
}

func TestWebhookPlaceholderFailureReleasesGate(t *testing.T) {
	h := newTestHarness(t)
	h.store.FailSave = errors.New("disk full")

	rec, resp := h.post(t, validBody(), testSecret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, h.gate.Busy(), "failed admission must release the gate")
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook/status", nil)
	rec := httptest.NewRecorder()
	h.server.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap gate.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Ready)

	require.True(t, h.gate.TryAcquire("Current Work"))
	rec = httptest.NewRecorder()
	h.server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/status", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Busy)
	assert.Equal(t, "Current Work", snap.CurrentHeadline)
}
