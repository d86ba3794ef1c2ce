// ABOUTME: RSS/Atom content source backed by gofeed.
// ABOUTME: Each feed maps to one content domain; only the top entries are considered.

package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// maxEntriesPerFeed caps how many entries a single poll considers per feed.
const maxEntriesPerFeed = 5

// FeedConfig binds one RSS/Atom feed URL to a content domain.
type FeedConfig struct {
	URL    string `yaml:"url"`
	Domain string `yaml:"domain"`
}

// RSSSource polls a set of configured feeds.
type RSSSource struct {
	feeds  []FeedConfig
	parser *gofeed.Parser
	logger *slog.Logger
}

// NewRSSSource creates an RSS source for the given feeds.
func NewRSSSource(feeds []FeedConfig, logger *slog.Logger) *RSSSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSSource{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		logger: logger.With("component", "rss-source"),
	}
}

// Name identifies the source in logs.
func (s *RSSSource) Name() string { return "rss" }

// Poll fetches every configured feed and returns up to maxEntriesPerFeed
// items per feed. A feed that fails to parse is logged and skipped; one
// broken feed must not starve the others.
func (s *RSSSource) Poll(ctx context.Context) ([]Item, error) {
	var items []Item
	for _, fc := range s.feeds {
		feed, err := s.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			s.logger.Warn("feed fetch failed", "url", fc.URL, "error", err)
			continue
		}

		entries := feed.Items
		if len(entries) > maxEntriesPerFeed {
			entries = entries[:maxEntriesPerFeed]
		}
		for _, entry := range entries {
			item, err := entryToItem(entry, fc.Domain)
			if err != nil {
				s.logger.Warn("skipping feed entry", "url", fc.URL, "error", err)
				continue
			}
			items = append(items, item)
		}
	}
	return items, nil
}

func entryToItem(entry *gofeed.Item, domain string) (Item, error) {
	headline := strings.TrimSpace(entry.Title)
	if headline == "" {
		return Item{}, fmt.Errorf("entry has no title")
	}

	content := strings.TrimSpace(entry.Content)
	if content == "" {
		content = strings.TrimSpace(entry.Description)
	}
	if content == "" {
		content = headline
	}

	var published time.Time
	if entry.PublishedParsed != nil {
		published = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		published = entry.UpdatedParsed.UTC()
	}

	return Item{
		Domain:      domain,
		Headline:    headline,
		Content:     content,
		Link:        entry.Link,
		PublishedAt: published,
	}, nil
}
