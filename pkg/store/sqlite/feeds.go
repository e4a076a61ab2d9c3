package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mindlinkco/mindlink/pkg/store"
)

// AddFeed appends a feed item. The caller supplies the ID and timestamp so
// fusion can insert at historical positions.
func (s *Store) AddFeed(ctx context.Context, f *store.FeedItem) error {
	return insertFeed(ctx, s.db, f)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertFeed(ctx context.Context, db execer, f *store.FeedItem) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO feed_items (id, topic_id, content, cleaned_content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.TopicID, f.Content, f.CleanedContent, formatTime(f.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE topics SET updated_at = ? WHERE id = ?`,
		formatTime(f.CreatedAt), f.TopicID,
	)
	if err != nil {
		return fmt.Errorf("touch topic: %w", err)
	}
	return nil
}

// GetFeed returns a feed item by ID.
func (s *Store) GetFeed(ctx context.Context, feedID string) (*store.FeedItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, topic_id, content, cleaned_content, created_at
		FROM feed_items WHERE id = ?`, feedID)

	f, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, store.NotFoundError{Kind: "feed", ID: feedID}
	}
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return f, nil
}

// ListFeeds returns the topic's feed items, newest first.
func (s *Store) ListFeeds(ctx context.Context, topicID string, limit int) ([]*store.FeedItem, error) {
	query := `
		SELECT id, topic_id, content, cleaned_content, created_at
		FROM feed_items WHERE topic_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{topicID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryFeeds(ctx, query, args...)
}

// ListCleanedFeeds returns the topic's cleaned items in chronological order.
// Items still awaiting consolidation (or whose consolidation failed) are
// excluded from all downstream aggregation.
func (s *Store) ListCleanedFeeds(ctx context.Context, topicID string) ([]*store.FeedItem, error) {
	return s.queryFeeds(ctx, `
		SELECT id, topic_id, content, cleaned_content, created_at
		FROM feed_items WHERE topic_id = ? AND cleaned_content != ''
		ORDER BY created_at ASC, id ASC`, topicID)
}

// SetFeedCleaned records the consolidator's cleaned text.
func (s *Store) SetFeedCleaned(ctx context.Context, feedID, cleaned string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feed_items SET cleaned_content = ? WHERE id = ?`, cleaned, feedID)
	if err != nil {
		return fmt.Errorf("set feed cleaned: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFoundError{Kind: "feed", ID: feedID}
	}
	return nil
}

// UpdateFeedContent is the explicit user edit path: raw and cleaned content
// are both overwritten. Ownership is checked through the feed's topic.
func (s *Store) UpdateFeedContent(ctx context.Context, userID, feedID, content string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE feed_items SET content = ?, cleaned_content = ?
		WHERE id = ? AND topic_id IN (SELECT id FROM topics WHERE user_id = ?)`,
		content, content, feedID, userID,
	)
	if err != nil {
		return fmt.Errorf("update feed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFoundError{Kind: "feed", ID: feedID}
	}
	return nil
}

// DeleteFeed removes a feed item owned (via its topic) by userID.
func (s *Store) DeleteFeed(ctx context.Context, userID, feedID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM feed_items
		WHERE id = ? AND topic_id IN (SELECT id FROM topics WHERE user_id = ?)`,
		feedID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFoundError{Kind: "feed", ID: feedID}
	}
	return nil
}

// CountFeeds returns the number of feed items in the topic.
func (s *Store) CountFeeds(ctx context.Context, topicID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_items WHERE topic_id = ?`, topicID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count feeds: %w", err)
	}
	return count, nil
}

func (s *Store) queryFeeds(ctx context.Context, query string, args ...any) ([]*store.FeedItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*store.FeedItem
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

func scanFeed(row rowScanner) (*store.FeedItem, error) {
	var (
		f         store.FeedItem
		createdAt string
	)
	if err := row.Scan(&f.ID, &f.TopicID, &f.Content, &f.CleanedContent, &createdAt); err != nil {
		return nil, err
	}
	f.CreatedAt = parseTime(createdAt)
	return &f, nil
}
