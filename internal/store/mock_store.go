// ABOUTME: Mock Store implementation for testing.
// ABOUTME: Allows webhook and pipeline tests to run without SQLite.

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu    sync.RWMutex
	posts map[string]*Post // keyed by post ID

	// FailSave and FailUpdate force the next matching call to return the
	// given error, for exercising persistence-failure paths.
	FailSave   error
	FailUpdate error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{posts: make(map[string]*Post)}
}

// SavePost stores a new post, rejecting duplicate IDs.
func (m *MockStore) SavePost(ctx context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave != nil {
		return m.FailSave
	}
	if _, exists := m.posts[post.ID]; exists {
		return ErrDuplicatePost
	}

	p := *post
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = StatusProcessing
	}
	if p.HeadlineHash == "" {
		p.HeadlineHash = NormalizeHeadline(p.Title)
	}
	m.posts[p.ID] = &p
	return nil
}

// UpdatePost applies a partial update to a stored post.
func (m *MockStore) UpdatePost(ctx context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpdate != nil {
		return m.FailUpdate
	}
	if len(fields) == 0 {
		return nil
	}
	post, exists := m.posts[id]
	if !exists {
		return ErrNotFound
	}

	for name, v := range fields {
		switch name {
		case "title":
			post.Title = v.(string)
		case "domain":
			post.Domain = v.(string)
		case "summary":
			post.Summary = v.(string)
		case "content":
			post.Content = v.(string)
		case "content_html":
			post.ContentHTML = v.(string)
		case "key_points":
			post.KeyPoints = append([]string(nil), v.([]string)...)
		case "why_this_matters":
			post.WhyThisMatters = v.(string)
		case "sources":
			post.Sources = append([]string(nil), v.([]string)...)
		case "confidence_score":
			post.ConfidenceScore = v.(int)
		case "status":
			post.Status = v.(string)
		default:
			return fmt.Errorf("unknown post field %q", name)
		}
	}
	return nil
}

// GetPost retrieves a post by ID.
func (m *MockStore) GetPost(ctx context.Context, id string) (*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, exists := m.posts[id]
	if !exists {
		return nil, ErrNotFound
	}
	p := *post
	return &p, nil
}

// ListPosts returns posts newest first, optionally filtered by status.
func (m *MockStore) ListPosts(ctx context.Context, status string, limit int) ([]*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var posts []*Post
	for _, post := range m.posts {
		if status != "" && post.Status != status {
			continue
		}
		p := *post
		posts = append(posts, &p)
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// HeadlineExists reports whether the headline is published or processing.
func (m *MockStore) HeadlineExists(ctx context.Context, headline string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash := NormalizeHeadline(headline)
	for _, post := range m.posts {
		if post.HeadlineHash == hash &&
			(post.Status == StatusPublished || post.Status == StatusProcessing) {
			return true, nil
		}
	}
	return false, nil
}

// CleanupStaleProcessing resets stuck processing posts to rejected.
func (m *MockStore) CleanupStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	var count int64
	for _, post := range m.posts {
		if post.Status != StatusProcessing {
			continue
		}
		if maxAge == 0 || post.CreatedAt.Before(cutoff) {
			post.Status = StatusRejected
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
