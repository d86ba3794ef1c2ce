// ABOUTME: Content source abstraction for the harvester.
// ABOUTME: A source yields candidate items; the harvester decides what to submit.

package harvester

import (
	"context"
	"time"
)

// Item is a single candidate story pulled from a content source.
type Item struct {
	Domain      string
	Headline    string
	Content     string
	Link        string
	PublishedAt time.Time
}

// ContentSource yields candidate items on each harvest cycle.
type ContentSource interface {
	// Name identifies the source in logs.
	Name() string

	// Poll fetches the current batch of candidate items. Implementations
	// return their freshest items first.
	Poll(ctx context.Context) ([]Item, error)
}
