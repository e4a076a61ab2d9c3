package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/mindlinkco/mindlink/pkg/store"
)

// SetTopicTags replaces the topic's tag set, reusing global tags by exact
// name match and creating missing ones lazily. At most MaxTopicTags names
// are kept; the rest are dropped.
func (s *Store) SetTopicTags(ctx context.Context, topicID string, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := setTopicTagsTx(ctx, tx, topicID, names); err != nil {
		return err
	}

	return tx.Commit()
}

func setTopicTagsTx(ctx context.Context, tx *sql.Tx, topicID string, names []string) error {
	if len(names) > store.MaxTopicTags {
		names = names[:store.MaxTopicTags]
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM topic_tags WHERE topic_id = ?`, topicID); err != nil {
		return fmt.Errorf("clear topic tags: %w", err)
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		tagID, err := ensureTag(ctx, tx, name)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO topic_tags (topic_id, tag_id) VALUES (?, ?)`,
			topicID, tagID); err != nil {
			return fmt.Errorf("associate tag: %w", err)
		}
	}
	return nil
}

func ensureTag(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	var tagID string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID)
	if err == sql.ErrNoRows {
		tagID = uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (id, name) VALUES (?, ?)`, tagID, name); err != nil {
			return "", fmt.Errorf("create tag: %w", err)
		}
		return tagID, nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup tag: %w", err)
	}
	return tagID, nil
}

// GetTopicTags returns the topic's tag names.
func (s *Store) GetTopicTags(ctx context.Context, topicID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN topic_tags tt ON tt.tag_id = t.id
		WHERE tt.topic_id = ? ORDER BY t.name`, topicID)
	if err != nil {
		return nil, fmt.Errorf("get topic tags: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// ListTagNames returns the global tag vocabulary.
func (s *Store) ListTagNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
