package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindlinkco/mindlink/pkg/store"
)

// UpsertAnchor creates the anchor at version 1 or overwrites its mutable
// fields and increments the version. Always leaves the anchor active, which
// resurrects a previously deactivated one. The read-modify-write runs in a
// transaction so concurrent upserts to the same (user, key) cannot lose a
// version increment.
func (s *Store) UpsertAnchor(ctx context.Context, userID string, up store.AnchorUpsert) (*store.Anchor, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	anchor, err := upsertAnchorTx(ctx, tx, userID, up)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return anchor, nil
}

func upsertAnchorTx(ctx context.Context, tx *sql.Tx, userID string, up store.AnchorUpsert) (*store.Anchor, error) {
	category := up.Category
	if !store.ValidCategory(category) {
		category = store.CategoryGeneral
	}

	aliases := up.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	aliasesJSON, err := json.Marshal(aliases)
	if err != nil {
		return nil, fmt.Errorf("encode aliases: %w", err)
	}

	now := time.Now()

	row := tx.QueryRowContext(ctx,
		`SELECT id, version, created_at FROM anchors WHERE user_id = ? AND key = ?`,
		userID, up.Key,
	)

	var (
		id        string
		version   int
		createdAt string
	)
	err = row.Scan(&id, &version, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		version = 1
		createdAt = formatTime(now)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO anchors (id, user_id, key, definition, category, aliases_json, source_topic_id, version, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, 1, ?, ?)`,
			id, userID, up.Key, up.Definition, category, string(aliasesJSON),
			up.SourceTopicID, createdAt, formatTime(now),
		)
		if err != nil {
			return nil, fmt.Errorf("insert anchor: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("lookup anchor: %w", err)
	default:
		version++
		_, err = tx.ExecContext(ctx, `
			UPDATE anchors SET definition = ?, category = ?, aliases_json = ?, source_topic_id = ?, version = ?, active = 1, updated_at = ?
			WHERE id = ?`,
			up.Definition, category, string(aliasesJSON), up.SourceTopicID,
			version, formatTime(now), id,
		)
		if err != nil {
			return nil, fmt.Errorf("update anchor: %w", err)
		}
	}

	return &store.Anchor{
		ID:            id,
		UserID:        userID,
		Key:           up.Key,
		Definition:    up.Definition,
		Category:      category,
		Aliases:       aliases,
		SourceTopicID: up.SourceTopicID,
		Version:       version,
		Active:        true,
		CreatedAt:     parseTime(createdAt),
		UpdatedAt:     now,
	}, nil
}

// GetAnchor returns the user's anchor by key.
func (s *Store) GetAnchor(ctx context.Context, userID, key string) (*store.Anchor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, key, definition, category, aliases_json, source_topic_id, version, active, created_at, updated_at
		FROM anchors WHERE user_id = ? AND key = ?`,
		userID, key,
	)

	a, err := scanAnchor(row)
	if err == sql.ErrNoRows {
		return nil, store.NotFoundError{Kind: "anchor", ID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("get anchor: %w", err)
	}
	return a, nil
}

// ListAnchors returns all of the user's anchors, most recently updated first.
func (s *Store) ListAnchors(ctx context.Context, userID string) ([]*store.Anchor, error) {
	return s.queryAnchors(ctx, `
		SELECT id, user_id, key, definition, category, aliases_json, source_topic_id, version, active, created_at, updated_at
		FROM anchors WHERE user_id = ? ORDER BY updated_at DESC`, userID)
}

// ListActiveAnchors returns active anchors, most recently updated first.
func (s *Store) ListActiveAnchors(ctx context.Context, userID string, limit int) ([]*store.Anchor, error) {
	query := `
		SELECT id, user_id, key, definition, category, aliases_json, source_topic_id, version, active, created_at, updated_at
		FROM anchors WHERE user_id = ? AND active = 1 ORDER BY updated_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryAnchors(ctx, query, args...)
}

// DeactivateAnchor flips active off, preserving the record and its version
// history.
func (s *Store) DeactivateAnchor(ctx context.Context, userID, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE anchors SET active = 0, updated_at = ? WHERE user_id = ? AND key = ?`,
		formatTime(time.Now()), userID, key,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate anchor: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteAnchor hard-deletes the anchor. Explicit user action only; the
// automatic pipeline never calls this.
func (s *Store) DeleteAnchor(ctx context.Context, userID, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM anchors WHERE user_id = ? AND key = ?`, userID, key)
	if err != nil {
		return false, fmt.Errorf("delete anchor: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) queryAnchors(ctx context.Context, query string, args ...any) ([]*store.Anchor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query anchors: %w", err)
	}
	defer rows.Close()

	var anchors []*store.Anchor
	for rows.Next() {
		a, err := scanAnchor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan anchor: %w", err)
		}
		anchors = append(anchors, a)
	}
	return anchors, rows.Err()
}

func scanAnchor(row rowScanner) (*store.Anchor, error) {
	var (
		a           store.Anchor
		aliasesJSON string
		active      int
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Key, &a.Definition, &a.Category,
		&aliasesJSON, &a.SourceTopicID, &a.Version, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(aliasesJSON), &a.Aliases); err != nil {
		a.Aliases = []string{}
	}
	a.Active = active != 0
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}
