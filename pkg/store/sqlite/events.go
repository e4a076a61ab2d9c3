package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/mindlinkco/mindlink/pkg/store"
)

// AppendEvent appends a timeline event to the topic's audit log.
func (s *Store) AppendEvent(ctx context.Context, e *store.TimelineEvent) error {
	return insertEvent(ctx, s.db, e)
}

func insertEvent(ctx context.Context, db execer, e *store.TimelineEvent) error {
	var payloadJSON any
	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		payloadJSON = string(data)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO timeline_events (topic_id, event_type, summary, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.TopicID, e.EventType, e.Summary, payloadJSON, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns the topic's timeline, newest first.
func (s *Store) ListEvents(ctx context.Context, topicID string, limit int) ([]*store.TimelineEvent, error) {
	query := `
		SELECT id, topic_id, event_type, summary, payload_json, created_at
		FROM timeline_events WHERE topic_id = ? ORDER BY id DESC`
	args := []any{topicID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*store.TimelineEvent
	for rows.Next() {
		var (
			e           store.TimelineEvent
			payloadJSON sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&e.ID, &e.TopicID, &e.EventType, &e.Summary, &payloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if payloadJSON.Valid && payloadJSON.String != "" {
			_ = json.Unmarshal([]byte(payloadJSON.String), &e.Payload)
		}
		e.CreatedAt = parseTime(createdAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// AddOutput records an expression run and its "output" timeline event.
func (s *Store) AddOutput(ctx context.Context, o *store.OutputTask) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO output_tasks (id, topic_id, instruction, result, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.TopicID, o.Instruction, o.Result, formatTime(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert output: %w", err)
	}

	if err := insertEvent(ctx, tx, &store.TimelineEvent{
		TopicID:   o.TopicID,
		EventType: store.EventOutput,
		Summary:   "output: " + truncate(o.Instruction, 30),
		CreatedAt: o.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// ListOutputs returns the topic's output records, newest first.
func (s *Store) ListOutputs(ctx context.Context, topicID string, limit int) ([]*store.OutputTask, error) {
	query := `
		SELECT id, topic_id, instruction, result, created_at
		FROM output_tasks WHERE topic_id = ? ORDER BY created_at DESC`
	args := []any{topicID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer rows.Close()

	var outputs []*store.OutputTask
	for rows.Next() {
		var (
			o         store.OutputTask
			createdAt string
		)
		if err := rows.Scan(&o.ID, &o.TopicID, &o.Instruction, &o.Result, &createdAt); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		o.CreatedAt = parseTime(createdAt)
		outputs = append(outputs, &o)
	}
	return outputs, rows.Err()
}

// GetPromptOverride returns the stored override for a prompt key, or "".
func (s *Store) GetPromptOverride(ctx context.Context, key string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM prompt_overrides WHERE key = ?`, key).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get prompt override: %w", err)
	}
	return content, nil
}

// SetPromptOverride stores an override; empty content clears it.
func (s *Store) SetPromptOverride(ctx context.Context, key, content string) error {
	if content == "" {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM prompt_overrides WHERE key = ?`, key)
		if err != nil {
			return fmt.Errorf("clear prompt override: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_overrides (key, content) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content`,
		key, content)
	if err != nil {
		return fmt.Errorf("set prompt override: %w", err)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary so a multi-byte rune is never split.
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
