// ABOUTME: ContentGenerator capability and the fallback draft used when generation fails.
// ABOUTME: The pipeline stays total: an unreachable model degrades to a minimal draft, not an abort.

package pipeline

import (
	"context"
)

// Draft is the structured article produced by a ContentGenerator.
type Draft struct {
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	Content         string   `json:"content"`
	KeyPoints       []string `json:"key_points"`
	WhyThisMatters  string   `json:"why_this_matters"`
	Sources         []string `json:"sources"`
	ConfidenceScore int      `json:"confidence_score"`
	Domain          string   `json:"-"`

	// Fallback marks a draft synthesized locally because the upstream
	// model was unreachable or returned garbage. The orchestrator
	// branches on this variant, never on an exception crossing the
	// component boundary.
	Fallback bool `json:"-"`
}

// ContentGenerator turns a validated payload into a structured draft.
// Implementations are expected to absorb upstream failures into a fallback
// draft; a non-nil error means even that was impossible and the job is a
// generation failure.
type ContentGenerator interface {
	Generate(ctx context.Context, payload *UpdatePayload) (*Draft, error)
}

// fallbackConfidence is the score assigned to locally synthesized drafts.
const fallbackConfidence = 10

// FallbackDraft builds a minimal draft directly from the raw payload, used
// when the content generator is unavailable. It keeps the pipeline total
// and auditable even when the upstream model is down.
func FallbackDraft(payload *UpdatePayload) *Draft {
	summary := payload.Content
	if len(summary) > 300 {
		summary = summary[:300]
	}
	return &Draft{
		Title:           payload.Headline,
		Summary:         summary,
		Content:         payload.Content,
		KeyPoints:       []string{"Update received from external source."},
		WhyThisMatters:  "This update was received but could not be fully processed.",
		Sources:         payload.Sources,
		ConfidenceScore: fallbackConfidence,
		Domain:          payload.Domain,
		Fallback:        true,
	}
}
