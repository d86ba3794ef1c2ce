// ABOUTME: Store interface and data types for cin-gateway post persistence.
// ABOUTME: Defines the Post record, lifecycle statuses, and the Store interface.

package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicatePost is returned when trying to save a post whose ID already exists.
var ErrDuplicatePost = errors.New("post already exists")

// Post status constants. A post is created as StatusProcessing at admission
// time and is moved exactly once by the pipeline to published or rejected.
const (
	StatusProcessing = "processing"
	StatusPublished  = "published"
	StatusRejected   = "rejected"
)

// Post is the persisted record produced by the generation pipeline.
// HeadlineHash is the normalized submission headline used for duplicate
// lookups; it is never returned to API callers.
type Post struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Domain          string    `json:"domain"`
	Summary         string    `json:"summary"`
	Content         string    `json:"content"`
	ContentHTML     string    `json:"content_html,omitempty"`
	KeyPoints       []string  `json:"key_points"`
	WhyThisMatters  string    `json:"why_this_matters"`
	Sources         []string  `json:"sources"`
	ConfidenceScore int       `json:"confidence_score"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`

	HeadlineHash string `json:"-"`
}

// NormalizeHeadline produces the dedup key for a headline: lowercased and
// whitespace-trimmed. Both the store index and the harvester fingerprint
// derive from this form.
func NormalizeHeadline(headline string) string {
	return strings.ToLower(strings.TrimSpace(headline))
}

// Store defines the persistence operations used by the webhook endpoint,
// the pipeline, and the read API. Implementations must be safe for
// concurrent use; single-row transactions are sufficient because headline
// races are resolved by gate ordering, not store locking.
type Store interface {
	// SavePost inserts a new post. Returns ErrDuplicatePost if the ID is
	// already taken; callers use this only for first creation.
	SavePost(ctx context.Context, post *Post) error

	// UpdatePost applies a partial update to an existing post. Only the
	// columns named in fields change; an empty field map is a no-op.
	// The headline hash can never be updated.
	UpdatePost(ctx context.Context, id string, fields map[string]any) error

	// GetPost returns a post by ID, or ErrNotFound.
	GetPost(ctx context.Context, id string) (*Post, error)

	// ListPosts returns the most recent posts, newest first. If status is
	// non-empty only posts with that status are returned.
	ListPosts(ctx context.Context, status string, limit int) ([]*Post, error)

	// HeadlineExists reports whether a post with this headline is already
	// published or actively processing. Rejected headlines are retryable
	// and report false.
	HeadlineExists(ctx context.Context, headline string) (bool, error)

	// CleanupStaleProcessing moves processing posts older than maxAge to
	// rejected so their headlines become retryable. A zero maxAge resets
	// every processing row regardless of age (startup crash recovery).
	// Returns the number of rows transitioned.
	CleanupStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error)

	// Close releases the underlying resources.
	Close() error
}
