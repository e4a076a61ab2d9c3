package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mindlinkco/mindlink/pkg/store"
)

// ApplySynthesis applies one narrative synthesis result atomically: the
// narrative always overwrites, summary and tags only when present, anchor
// upserts run for the topic's user, and a "narrative" timeline event is
// appended. Either everything commits or nothing does.
func (s *Store) ApplySynthesis(ctx context.Context, apply *store.SynthesisApply) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	var res sql.Result
	if apply.Summary != nil {
		res, err = tx.ExecContext(ctx, `
			UPDATE topics SET narrative = ?, summary = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`,
			apply.Narrative, *apply.Summary, formatTime(now), apply.TopicID, apply.UserID)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE topics SET narrative = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`,
			apply.Narrative, formatTime(now), apply.TopicID, apply.UserID)
	}
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFoundError{Kind: "topic", ID: apply.TopicID}
	}

	if apply.Tags != nil {
		if err := setTopicTagsTx(ctx, tx, apply.TopicID, apply.Tags); err != nil {
			return err
		}
	}

	for _, up := range apply.Anchors {
		if _, err := upsertAnchorTx(ctx, tx, apply.UserID, up); err != nil {
			return err
		}
	}

	if err := insertEvent(ctx, tx, &store.TimelineEvent{
		TopicID:   apply.TopicID,
		EventType: store.EventNarrative,
		Summary:   apply.EventSummary,
		CreatedAt: now,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// AbsorbTopic performs the fusion confirm as one transaction: the provenance
// note and every supplement land in the master's feed log, an "absorb" event
// is appended, and the slave topic is deleted with all its owned data. A
// failure at any step rolls the whole fusion back, so partial merge state
// cannot exist.
func (s *Store) AbsorbTopic(ctx context.Context, userID, masterID, slaveID string, note *store.FeedItem, supplements []*store.FeedItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// Both topics must exist and belong to the user.
	for _, topicID := range []string{masterID, slaveID} {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM topics WHERE id = ? AND user_id = ?`,
			topicID, userID).Scan(&one)
		if err == sql.ErrNoRows {
			return store.NotFoundError{Kind: "topic", ID: topicID}
		}
		if err != nil {
			return fmt.Errorf("verify topic: %w", err)
		}
	}

	if err := insertFeed(ctx, tx, note); err != nil {
		return err
	}

	for _, f := range supplements {
		if err := insertFeed(ctx, tx, f); err != nil {
			return err
		}
	}

	if err := insertEvent(ctx, tx, &store.TimelineEvent{
		TopicID:   masterID,
		EventType: store.EventAbsorb,
		Summary:   note.CleanedContent,
		Payload: map[string]any{
			"slave_topic_id": slaveID,
			"supplements":    len(supplements),
		},
		CreatedAt: note.CreatedAt,
	}); err != nil {
		return err
	}

	// Slave retirement runs last; the transaction guarantees it cannot
	// happen unless every insert above succeeded.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM topics WHERE id = ? AND user_id = ?`, slaveID, userID); err != nil {
		return fmt.Errorf("delete slave topic: %w", err)
	}

	return tx.Commit()
}
