// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite.
// ABOUTME: Provides post persistence, the headline dedup index, and the stale-row sweep.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS posts (
			id                TEXT PRIMARY KEY,
			title             TEXT NOT NULL,
			domain            TEXT NOT NULL,
			summary           TEXT NOT NULL DEFAULT '',
			content           TEXT NOT NULL DEFAULT '',
			key_points        TEXT NOT NULL DEFAULT '[]',
			why_this_matters  TEXT NOT NULL DEFAULT '',
			sources           TEXT NOT NULL DEFAULT '[]',
			confidence_score  INTEGER NOT NULL DEFAULT 0,
			status            TEXT NOT NULL DEFAULT 'processing',
			created_at        DATETIME NOT NULL,
			headline_hash     TEXT NOT NULL,

			CHECK (status IN ('processing', 'published', 'rejected'))
		);

		CREATE INDEX IF NOT EXISTS idx_posts_headline_hash
			ON posts(headline_hash, status);

		CREATE INDEX IF NOT EXISTS idx_posts_status_created
			ON posts(status, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// runMigrations applies additive schema changes to databases created by
// older builds. Currently: the rendered HTML column.
func (s *SQLiteStore) runMigrations() error {
	rows, err := s.db.Query("PRAGMA table_info(posts)")
	if err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	hasContentHTML := false
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return fmt.Errorf("scanning table info: %w", err)
		}
		if name == "content_html" {
			hasContentHTML = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if !hasContentHTML {
		s.logger.Info("migrating schema: adding content_html column")
		if _, err := s.db.Exec("ALTER TABLE posts ADD COLUMN content_html TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("adding content_html column: %w", err)
		}
	}
	return nil
}

// SavePost inserts a new post row. The headline hash is derived from the
// post title at insert time and never changes afterwards.
func (s *SQLiteStore) SavePost(ctx context.Context, post *Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.Status == "" {
		post.Status = StatusProcessing
	}
	if post.HeadlineHash == "" {
		post.HeadlineHash = NormalizeHeadline(post.Title)
	}

	keyPoints, err := json.Marshal(emptyIfNil(post.KeyPoints))
	if err != nil {
		return fmt.Errorf("encoding key points: %w", err)
	}
	sources, err := json.Marshal(emptyIfNil(post.Sources))
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts
			(id, title, domain, summary, content, content_html, key_points,
			 why_this_matters, sources, confidence_score, status, created_at, headline_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.Title, post.Domain, post.Summary, post.Content, post.ContentHTML,
		string(keyPoints), post.WhyThisMatters, string(sources),
		post.ConfidenceScore, post.Status, post.CreatedAt, post.HeadlineHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicatePost
		}
		return fmt.Errorf("inserting post: %w", err)
	}

	s.logger.Info("post saved", "post_id", post.ID, "status", post.Status)
	return nil
}

// postColumns maps update field names to their SQL column plus an encoder
// for the bound value. headline_hash is deliberately absent: the dedup key
// is immutable once the row exists.
var postColumns = map[string]func(v any) (any, error){
	"title":            passthrough,
	"domain":           passthrough,
	"summary":          passthrough,
	"content":          passthrough,
	"content_html":     passthrough,
	"why_this_matters": passthrough,
	"confidence_score": passthrough,
	"status":           passthrough,
	"key_points":       encodeJSON,
	"sources":          encodeJSON,
}

// updateOrder gives SET clauses a stable order for predictable SQL.
var updateOrder = []string{
	"title", "domain", "summary", "content", "content_html", "key_points",
	"why_this_matters", "sources", "confidence_score", "status",
}

func passthrough(v any) (any, error) { return v, nil }

func encodeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// UpdatePost applies a partial update to an existing post. An empty field
// map is a no-op; an unknown field name is an error.
func (s *SQLiteStore) UpdatePost(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	for name := range fields {
		if _, ok := postColumns[name]; !ok {
			return fmt.Errorf("unknown post field %q", name)
		}
	}

	var setClauses []string
	var values []any
	for _, name := range updateOrder {
		v, ok := fields[name]
		if !ok {
			continue
		}
		bound, err := postColumns[name](v)
		if err != nil {
			return fmt.Errorf("encoding field %q: %w", name, err)
		}
		setClauses = append(setClauses, name+" = ?")
		values = append(values, bound)
	}
	values = append(values, id)

	result, err := s.db.ExecContext(ctx,
		"UPDATE posts SET "+strings.Join(setClauses, ", ")+" WHERE id = ?", values...)
	if err != nil {
		return fmt.Errorf("updating post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Info("post updated", "post_id", id, "fields", fieldNames(fields))
	return nil
}

// GetPost returns a single post by ID.
func (s *SQLiteStore) GetPost(ctx context.Context, id string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, selectPost+" WHERE id = ?", id)
	return scanPost(row)
}

// ListPosts returns the most recent posts, newest first, optionally
// filtered by status.
func (s *SQLiteStore) ListPosts(ctx context.Context, status string, limit int) ([]*Post, error) {
	if limit <= 0 {
		limit = 100
	}

	query := selectPost
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// HeadlineExists reports whether the normalized headline is held by a
// published or processing post. Rejected rows do not count: a transient
// failure must not permanently blacklist a topic.
func (s *SQLiteStore) HeadlineExists(ctx context.Context, headline string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM posts
		WHERE headline_hash = ? AND status IN (?, ?)
		LIMIT 1`,
		NormalizeHeadline(headline), StatusPublished, StatusProcessing,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking headline: %w", err)
	}
	return true, nil
}

// CleanupStaleProcessing reclassifies stuck processing rows as rejected.
// With maxAge zero every processing row is reset; this runs at startup to
// recover rows orphaned by a crash.
func (s *SQLiteStore) CleanupStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error) {
	var result sql.Result
	var err error

	if maxAge == 0 {
		result, err = s.db.ExecContext(ctx,
			"UPDATE posts SET status = ? WHERE status = ?",
			StatusRejected, StatusProcessing)
	} else {
		cutoff := time.Now().UTC().Add(-maxAge)
		result, err = s.db.ExecContext(ctx,
			"UPDATE posts SET status = ? WHERE status = ? AND created_at < ?",
			StatusRejected, StatusProcessing, cutoff)
	}
	if err != nil {
		return 0, fmt.Errorf("cleaning up stale posts: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking cleanup result: %w", err)
	}
	if count > 0 {
		s.logger.Info("cleaned up stale processing posts", "count", count, "max_age", maxAge)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectPost = `
	SELECT id, title, domain, summary, content, content_html, key_points,
	       why_this_matters, sources, confidence_score, status, created_at, headline_hash
	FROM posts`

// scanner abstracts *sql.Row and *sql.Rows for scanPost.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*Post, error) {
	var post Post
	var keyPoints, sources string

	err := row.Scan(&post.ID, &post.Title, &post.Domain, &post.Summary,
		&post.Content, &post.ContentHTML, &keyPoints, &post.WhyThisMatters,
		&sources, &post.ConfidenceScore, &post.Status, &post.CreatedAt,
		&post.HeadlineHash)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post: %w", err)
	}

	if err := json.Unmarshal([]byte(keyPoints), &post.KeyPoints); err != nil {
		return nil, fmt.Errorf("decoding key points: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &post.Sources); err != nil {
		return nil, fmt.Errorf("decoding sources: %w", err)
	}
	return &post, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names
}
