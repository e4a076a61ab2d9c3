package inmemory

import (
	"context"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/mindlinkco/mindlink/pkg/store"
)

func (s *Store) SetTopicTags(_ context.Context, topicID string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTopicTagsLocked(topicID, names)
	return nil
}

func (s *Store) setTopicTagsLocked(topicID string, names []string) {
	if len(names) > store.MaxTopicTags {
		names = names[:store.MaxTopicTags]
	}

	var kept []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		s.tagNames[name] = true
		kept = append(kept, name)
	}
	s.topicTags[topicID] = kept
}

func (s *Store) GetTopicTags(_ context.Context, topicID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags := append([]string(nil), s.topicTags[topicID]...)
	sort.Strings(tags)
	return tags, nil
}

func (s *Store) ListTagNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.tagNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) AppendEvent(_ context.Context, e *store.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEventLocked(e)
	return nil
}

func (s *Store) appendEventLocked(e *store.TimelineEvent) {
	s.nextEventID++
	cp := *e
	cp.ID = s.nextEventID
	s.events[e.TopicID] = append(s.events[e.TopicID], &cp)
}

func (s *Store) ListEvents(_ context.Context, topicID string, limit int) ([]*store.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[topicID]
	events := make([]*store.TimelineEvent, 0, len(stored))
	// Newest first.
	for i := len(stored) - 1; i >= 0; i-- {
		cp := *stored[i]
		events = append(events, &cp)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

func (s *Store) AddOutput(_ context.Context, o *store.OutputTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *o
	s.outputs[o.TopicID] = append(s.outputs[o.TopicID], &cp)
	s.appendEventLocked(&store.TimelineEvent{
		TopicID:   o.TopicID,
		EventType: store.EventOutput,
		Summary:   "output: " + truncate(o.Instruction, 30),
		CreatedAt: o.CreatedAt,
	})
	return nil
}

func (s *Store) ListOutputs(_ context.Context, topicID string, limit int) ([]*store.OutputTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.outputs[topicID]
	outputs := make([]*store.OutputTask, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		cp := *stored[i]
		outputs = append(outputs, &cp)
		if limit > 0 && len(outputs) == limit {
			break
		}
	}
	return outputs, nil
}

func (s *Store) GetPromptOverride(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts[key], nil
}

func (s *Store) SetPromptOverride(_ context.Context, key, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if content == "" {
		delete(s.prompts, key)
		return nil
	}
	s.prompts[key] = content
	return nil
}

// ApplySynthesis applies one narrative synthesis result under the store
// mutex, which makes the whole write set atomic with respect to readers.
func (s *Store) ApplySynthesis(_ context.Context, apply *store.SynthesisApply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[apply.TopicID]
	if !ok || t.UserID != apply.UserID {
		return store.NotFoundError{Kind: "topic", ID: apply.TopicID}
	}

	now := time.Now()
	t.Narrative = apply.Narrative
	if apply.Summary != nil {
		t.Summary = *apply.Summary
	}
	t.UpdatedAt = now

	if apply.Tags != nil {
		s.setTopicTagsLocked(apply.TopicID, apply.Tags)
	}

	for _, up := range apply.Anchors {
		if _, err := s.upsertAnchorLocked(apply.UserID, up); err != nil {
			return err
		}
	}

	s.appendEventLocked(&store.TimelineEvent{
		TopicID:   apply.TopicID,
		EventType: store.EventNarrative,
		Summary:   apply.EventSummary,
		CreatedAt: now,
	})
	return nil
}

// AbsorbTopic performs the fusion confirm under the store mutex: provenance
// note, supplements, the "absorb" event, then the slave cascade delete.
func (s *Store) AbsorbTopic(_ context.Context, userID, masterID, slaveID string, note *store.FeedItem, supplements []*store.FeedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, topicID := range []string{masterID, slaveID} {
		t, ok := s.topics[topicID]
		if !ok || t.UserID != userID {
			return store.NotFoundError{Kind: "topic", ID: topicID}
		}
	}

	if err := s.addFeedLocked(note); err != nil {
		return err
	}
	for _, f := range supplements {
		if err := s.addFeedLocked(f); err != nil {
			return err
		}
	}

	s.appendEventLocked(&store.TimelineEvent{
		TopicID:   masterID,
		EventType: store.EventAbsorb,
		Summary:   note.CleanedContent,
		Payload: map[string]any{
			"slave_topic_id": slaveID,
			"supplements":    len(supplements),
		},
		CreatedAt: note.CreatedAt,
	})

	s.deleteTopicLocked(slaveID)
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
