// ABOUTME: Pipeline orchestrator running generate -> moderate -> verify -> publish for one admitted job.
// ABOUTME: Every terminal outcome converges on a single placeholder update; the gate is released by the dispatcher.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cin-network/cin-gateway/internal/store"
)

// EventSink receives finished posts for live delivery. A no-op sink
// satisfies tests without a real transport.
type EventSink interface {
	Publish(post *store.Post)
}

// NoopSink is an EventSink that discards everything.
type NoopSink struct{}

// Publish discards the post.
func (NoopSink) Publish(*store.Post) {}

// Result summarizes a finished pipeline run for logging and telemetry.
// Downstream components do not depend on it.
type Result struct {
	Status   string
	PostID   string
	Message  string
	Duration time.Duration
}

// Orchestrator runs the full pipeline for exactly one admitted job.
//
// The orchestrator never touches the admission gate: release is the
// dispatcher's responsibility, so it happens exactly once regardless of
// which stage terminated the job.
type Orchestrator struct {
	store     store.Store
	generator ContentGenerator
	safety    SafetyFilter
	verifier  Verifier // nil when the verify stage is disabled
	events    EventSink
	logger    *slog.Logger
}

// NewOrchestrator wires the pipeline stages. verifier may be nil to
// disable the optional grounding check; events may be nil for no
// broadcasting.
func NewOrchestrator(s store.Store, gen ContentGenerator, safety SafetyFilter, verifier Verifier, events EventSink, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = NoopSink{}
	}
	return &Orchestrator{
		store:     s,
		generator: gen,
		safety:    safety,
		verifier:  verifier,
		events:    events,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run executes the pipeline for a validated payload whose placeholder row
// (postID, status processing) already exists. It always terminates in a
// single update of that placeholder to published or rejected; a store
// write failure is the only path that aborts the job mid-flight.
func (o *Orchestrator) Run(ctx context.Context, payload *UpdatePayload, postID string) *Result {
	start := time.Now()
	o.logger.Info("pipeline started",
		"post_id", postID,
		"headline", truncate(payload.Headline, 80))

	// Stage 1: generate. Upstream failures arrive as a fallback draft;
	// an error means not even that was possible.
	draft, err := o.generator.Generate(ctx, payload)
	if err != nil || draft == nil {
		o.logger.Error("generation failed", "post_id", postID, "error", err)
		return o.reject(ctx, postID, payload, nil, "AI generation failed.", start)
	}
	if draft.Fallback {
		o.logger.Warn("generator degraded to fallback draft", "post_id", postID)
	}

	// Stage 2: moderate.
	if safe, reason := o.safety.Check(buildCheckText(draft)); !safe {
		o.logger.Warn("safety check failed", "post_id", postID, "reason", reason)
		return o.reject(ctx, postID, payload, draft, reason, start)
	}

	// Stage 3: verify (optional). A negative verdict is terminal; a
	// verifier error is logged and skipped so an unavailable fact-check
	// model cannot wedge the pipeline.
	if o.verifier != nil {
		verified, verdict, err := o.verifier.Verify(ctx, draft, payload)
		if err != nil {
			o.logger.Warn("verification unavailable, skipping", "post_id", postID, "error", err)
		} else if !verified {
			reason := "Verification failed: " + verdict
			o.logger.Warn("verification rejected draft", "post_id", postID, "verdict", verdict)
			return o.reject(ctx, postID, payload, draft, reason, start)
		}
	}

	// Stage 4: publish.
	fields := map[string]any{
		"title":            draft.Title,
		"domain":           draft.Domain,
		"summary":          draft.Summary,
		"content":          draft.Content,
		"content_html":     renderHTML(draft.Content),
		"key_points":       emptyIfNil(draft.KeyPoints),
		"why_this_matters": draft.WhyThisMatters,
		"sources":          emptyIfNil(draft.Sources),
		"confidence_score": draft.ConfidenceScore,
		"status":           store.StatusPublished,
	}
	if err := o.store.UpdatePost(ctx, postID, fields); err != nil {
		o.logger.Error("publishing post failed", "post_id", postID, "error", err)
		return &Result{
			Status:   "error",
			PostID:   postID,
			Message:  "Failed to persist published post.",
			Duration: time.Since(start),
		}
	}

	o.broadcast(ctx, postID)

	duration := time.Since(start)
	o.logger.Info("post published",
		"post_id", postID,
		"confidence", draft.ConfidenceScore,
		"duration", duration.Round(time.Millisecond))

	return &Result{
		Status:   store.StatusPublished,
		PostID:   postID,
		Message:  fmt.Sprintf("Post published successfully. Confidence: %d%%", draft.ConfidenceScore),
		Duration: duration,
	}
}

// reject updates the pre-existing placeholder row to rejected, keeping
// whatever generated fields are available. The placeholder was inserted at
// admission, so a second SavePost would hit the ID conflict.
func (o *Orchestrator) reject(ctx context.Context, postID string, payload *UpdatePayload, draft *Draft, reason string, start time.Time) *Result {
	title := payload.Headline
	summary, why := "", ""
	var keyPoints []string
	if draft != nil {
		if draft.Title != "" {
			title = draft.Title
		}
		summary = draft.Summary
		why = draft.WhyThisMatters
		keyPoints = draft.KeyPoints
	}

	fields := map[string]any{
		"title":            title,
		"summary":          summary,
		"key_points":       emptyIfNil(keyPoints),
		"why_this_matters": why,
		"sources":          emptyIfNil(payload.Sources),
		"confidence_score": 0,
		"status":           store.StatusRejected,
	}
	if err := o.store.UpdatePost(ctx, postID, fields); err != nil {
		o.logger.Error("persisting rejection failed", "post_id", postID, "error", err)
	}

	duration := time.Since(start)
	o.logger.Warn("post rejected",
		"post_id", postID,
		"reason", reason,
		"duration", duration.Round(time.Millisecond))

	return &Result{
		Status:   store.StatusRejected,
		PostID:   postID,
		Message:  reason,
		Duration: duration,
	}
}

// broadcast reloads the final row and hands it to the event sink.
// Delivery is best-effort; a failure here is logged by the sink and never
// becomes a pipeline error.
func (o *Orchestrator) broadcast(ctx context.Context, postID string) {
	post, err := o.store.GetPost(ctx, postID)
	if err != nil {
		o.logger.Warn("loading post for broadcast failed", "post_id", postID, "error", err)
		return
	}
	o.events.Publish(post)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
