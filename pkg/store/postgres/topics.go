package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mindlinkco/mindlink/pkg/crystal"
	"github.com/mindlinkco/mindlink/pkg/store"
)

// CreateTopic inserts the topic and its "create" timeline event in one
// transaction.
func (s *Store) CreateTopic(ctx context.Context, t *store.Topic) error {
	crystalJSON, err := marshalCrystal(t.Crystal)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO topics (id, user_id, title, north_star, crystal_json, summary, narrative, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.NorthStar, crystalJSON, t.Summary, t.Narrative,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}

	if err := insertEvent(ctx, tx, &store.TimelineEvent{
		TopicID:   t.ID,
		EventType: store.EventCreate,
		Summary:   "created topic: " + t.Title,
		CreatedAt: t.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// GetTopic returns the topic scoped to userID. A topic owned by a different
// user is reported as not found.
func (s *Store) GetTopic(ctx context.Context, userID, topicID string) (*store.Topic, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, north_star, crystal_json, summary, narrative, created_at, updated_at
		FROM topics WHERE id = ? AND user_id = ?`,
		topicID, userID,
	)

	t, err := scanTopic(row)
	if err == sql.ErrNoRows {
		return nil, store.NotFoundError{Kind: "topic", ID: topicID}
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return t, nil
}

// ListTopics returns the user's topics, most recently updated first.
func (s *Store) ListTopics(ctx context.Context, userID string) ([]*store.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, north_star, crystal_json, summary, narrative, created_at, updated_at
		FROM topics WHERE user_id = ? ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []*store.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// UpdateCrystal overwrites the topic's crystal and bumps updated_at.
func (s *Store) UpdateCrystal(ctx context.Context, topicID string, c *crystal.Crystal) error {
	crystalJSON, err := marshalCrystal(c)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE topics SET crystal_json = ?, updated_at = ? WHERE id = ?`,
		crystalJSON, formatTime(time.Now()), topicID,
	)
	if err != nil {
		return fmt.Errorf("update crystal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFoundError{Kind: "topic", ID: topicID}
	}
	return nil
}

// DeleteTopic removes the topic; feeds, timeline events, tag associations,
// and outputs go with it via foreign key cascade, all in one transaction.
func (s *Store) DeleteTopic(ctx context.Context, userID, topicID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM topics WHERE id = ? AND user_id = ?`, topicID, userID)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFoundError{Kind: "topic", ID: topicID}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopic(row rowScanner) (*store.Topic, error) {
	var (
		t           store.Topic
		crystalJSON sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.NorthStar, &crystalJSON,
		&t.Summary, &t.Narrative, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if crystalJSON.Valid && crystalJSON.String != "" {
		var c crystal.Crystal
		if err := json.Unmarshal([]byte(crystalJSON.String), &c); err != nil {
			return nil, fmt.Errorf("decode crystal: %w", err)
		}
		t.Crystal = &c
	}

	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func marshalCrystal(c *crystal.Crystal) (any, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode crystal: %w", err)
	}
	return string(data), nil
}
