// ABOUTME: Tests for the pipeline orchestrator.
// ABOUTME: Covers publish, moderation rejection, fallback drafts, verify gating, and store failures.

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cin-network/cin-gateway/internal/store"
)

type fakeGenerator struct {
	draft *Draft
	err   error
}

func (f *fakeGenerator) Generate(ctx context.Context, payload *UpdatePayload) (*Draft, error) {
	return f.draft, f.err
}

type fakeVerifier struct {
	verified bool
	verdict  string
	err      error
	called   bool
}

func (f *fakeVerifier) Verify(ctx context.Context, draft *Draft, payload *UpdatePayload) (bool, string, error) {
	f.called = true
	return f.verified, f.verdict, f.err
}

type captureSink struct {
	mu    sync.Mutex
	posts []*store.Post
}

func (c *captureSink) Publish(post *store.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = append(c.posts, post)
}

func (c *captureSink) published() []*store.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*store.Post(nil), c.posts...)
}

func testPayload() *UpdatePayload {
	return &UpdatePayload{
		Domain:    "Technology",
		Headline:  "New Chip Architecture Revealed",
		Content:   "A detailed description of the new chip.",
		Sources:   []string{"https://example.com/chip"},
		Timestamp: "2026-08-20T10:00:00Z",
	}
}

func goodDraft() *Draft {
	return &Draft{
		Title:           "New Chip Architecture",
		Summary:         "A new chip architecture was revealed.",
		Content:         "## Details\n\nLong article body.",
		KeyPoints:       []string{"faster", "cooler"},
		WhyThisMatters:  "Chips matter.",
		Sources:         []string{"https://example.com/chip"},
		ConfidenceScore: 90,
		Domain:          "Technology",
	}
}

// placeholder inserts the admission-time processing row the orchestrator
// expects to exist.
func placeholder(t *testing.T, s store.Store, id string, payload *UpdatePayload) {
	t.Helper()
	err := s.SavePost(context.Background(), &store.Post{
		ID:      id,
		Title:   payload.Headline,
		Domain:  payload.Domain,
		Sources: payload.Sources,
		Status:  store.StatusProcessing,
	})
	require.NoError(t, err)
}

func TestRunPublishesDraft(t *testing.T) {
	s := store.NewMockStore()
	sink := &captureSink{}
	payload := testPayload()
	placeholder(t, s, "post-1", payload)

	o := NewOrchestrator(s, &fakeGenerator{draft: goodDraft()}, NewKeywordFilter(), nil, sink, nil)
	result := o.Run(context.Background(), payload, "post-1")

	assert.Equal(t, store.StatusPublished, result.Status)
	assert.Equal(t, "post-1", result.PostID)
	assert.Contains(t, result.Message, "90%")

	got, err := s.GetPost(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPublished, got.Status)
	assert.Equal(t, "New Chip Architecture", got.Title)
	assert.Equal(t, 90, got.ConfidenceScore)
	assert.Contains(t, got.ContentHTML, "<h2>")

	posts := sink.published()
	require.Len(t, posts, 1)
	assert.Equal(t, "post-1", posts[0].ID)
	assert.Equal(t, store.StatusPublished, posts[0].Status)
}

func TestRunRejectsOnSafetyMatch(t *testing.T) {
	s := store.NewMockStore()
	sink := &captureSink{}
	payload := testPayload()
	placeholder(t, s, "post-1", payload)

	draft := goodDraft()
	draft.Summary = "Plans for a terrorist attack were found."

	o := NewOrchestrator(s, &fakeGenerator{draft: draft}, NewKeywordFilter(), nil, sink, nil)
	result := o.Run(context.Background(), payload, "post-1")

	assert.Equal(t, store.StatusRejected, result.Status)
	assert.Contains(t, result.Message, "violent content")

	got, err := s.GetPost(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusRejected, got.Status)
	assert.Equal(t, 0, got.ConfidenceScore)

	assert.Empty(t, sink.published(), "rejected posts are not broadcast")
}

func TestRunGenerationFailureRejectsPlaceholder(t *testing.T) {
	s := store.NewMockStore()
	payload := testPayload()
	placeholder(t, s, "post-1", payload)

	o := NewOrchestrator(s, &fakeGenerator{err: errors.New("model exploded")}, NewKeywordFilter(), nil, nil, nil)
	result := o.Run(context.Background(), payload, "post-1")

	assert.Equal(t, store.StatusRejected, result.Status)
	assert.Equal(t, "AI generation failed.", result.Message)

	got, err := s.GetPost(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusRejected, got.Status)
	// Rejection keeps the raw headline as the title when no draft exists.
	assert.Equal(t, payload.Headline, got.Title)

	// The headline becomes retryable.
	exists, err := s.HeadlineExists(context.Background(), payload.Headline)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunFallbackDraftStillPublishes(t *testing.T) {
	s := store.NewMockStore()
	payload := testPayload()
	placeholder(t, s, "post-1", payload)

	o := NewOrchestrator(s, &fakeGenerator{draft: FallbackDraft(payload)}, NewKeywordFilter(), nil, nil, nil)
	result := o.Run(context.Background(), payload, "post-1")

	assert.Equal(t, store.StatusPublished, result.Status)

	got, err := s.GetPost(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, payload.Headline, got.Title)
	assert.Equal(t, fallbackConfidence, got.ConfidenceScore)
}

func TestRunVerifierRejection(t *testing.T) {
	s := store.NewMockStore()
	payload := testPayload()
	placeholder(t, s, "post-1", payload)

	v := &fakeVerifier{verified: false, verdict: "post invents a statistic"}
	o := NewOrchestrator(s, &fakeGenerator{draft: goodDraft()}, NewKeywordFilter(), v, nil, nil)
	result := o.Run(context.Background(), payload, "post-1")

	assert.True(t, v.called)
	assert.Equal(t, store.StatusRejected, result.Status)
	assert.Contains(t, result.Message, "post invents a statistic")
}

func TestRunVerifierErrorIsSkipped(t *testing.T) {
	s := store.NewMockStore()
	payload := testPayload()
	placeholder(t, s, "post-1", payload)

	v := &fakeVerifier{err: errors.New("verifier model offline")}
	o := NewOrchestrator(s, &fakeGenerator{draft: goodDraft()}, NewKeywordFilter(), v, nil, nil)
	result := o.Run(context.Background(), payload, "post-1")

	// An unavailable verifier must not block publication.
	assert.Equal(t, store.StatusPublished, result.Status)
}

func TestRunVerifierDisabled(t *testing.T) {
	s := store.NewMockStore()
	payload := testPayload()
	placeholder(t, s, "post-1", payload)

	o := NewOrchestrator(s, &fakeGenerator{draft: goodDraft()}, NewKeywordFilter(), nil, nil, nil)
	result := o.Run(context.Background(), payload, "post-1")
	assert.Equal(t, store.StatusPublished, result.Status)
}

func TestRunPersistenceFailure(t *testing.T) {
	s := store.NewMockStore()
	payload := testPayload()
	placeholder(t, s, "post-1", payload)
	s.FailUpdate = errors.New("disk full")

	o := NewOrchestrator(s, &fakeGenerator{draft: goodDraft()}, NewKeywordFilter(), nil, nil, nil)
	result := o.Run(context.Background(), payload, "post-1")

	assert.Equal(t, "error", result.Status)
	assert.Equal(t, "post-1", result.PostID)
}
