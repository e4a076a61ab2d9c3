package inmemory

import (
	"context"
	"sort"

	"github.com/mindlinkco/mindlink/pkg/store"
)

func (s *Store) AddFeed(_ context.Context, f *store.FeedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addFeedLocked(f)
}

func (s *Store) addFeedLocked(f *store.FeedItem) error {
	cp := *f
	s.feeds[f.ID] = &cp
	if t, ok := s.topics[f.TopicID]; ok {
		t.UpdatedAt = f.CreatedAt
	}
	return nil
}

func (s *Store) GetFeed(_ context.Context, feedID string) (*store.FeedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.feeds[feedID]
	if !ok {
		return nil, store.NotFoundError{Kind: "feed", ID: feedID}
	}
	cp := *f
	return &cp, nil
}

func (s *Store) ListFeeds(_ context.Context, topicID string, limit int) ([]*store.FeedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	feeds := s.topicFeedsLocked(topicID, false)
	// Newest first.
	sort.Slice(feeds, func(i, j int) bool {
		if feeds[i].CreatedAt.Equal(feeds[j].CreatedAt) {
			return feeds[i].ID > feeds[j].ID
		}
		return feeds[i].CreatedAt.After(feeds[j].CreatedAt)
	})
	if limit > 0 && len(feeds) > limit {
		feeds = feeds[:limit]
	}
	return feeds, nil
}

func (s *Store) ListCleanedFeeds(_ context.Context, topicID string) ([]*store.FeedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	feeds := s.topicFeedsLocked(topicID, true)
	// Chronological order; timestamp collisions break on the ID's ordinal
	// suffix assigned during bulk insert.
	sort.Slice(feeds, func(i, j int) bool {
		if feeds[i].CreatedAt.Equal(feeds[j].CreatedAt) {
			return feeds[i].ID < feeds[j].ID
		}
		return feeds[i].CreatedAt.Before(feeds[j].CreatedAt)
	})
	return feeds, nil
}

func (s *Store) topicFeedsLocked(topicID string, cleanedOnly bool) []*store.FeedItem {
	var feeds []*store.FeedItem
	for _, f := range s.feeds {
		if f.TopicID != topicID {
			continue
		}
		if cleanedOnly && f.CleanedContent == "" {
			continue
		}
		cp := *f
		feeds = append(feeds, &cp)
	}
	return feeds
}

func (s *Store) SetFeedCleaned(_ context.Context, feedID, cleaned string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[feedID]
	if !ok {
		return store.NotFoundError{Kind: "feed", ID: feedID}
	}
	f.CleanedContent = cleaned
	return nil
}

func (s *Store) UpdateFeedContent(_ context.Context, userID, feedID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[feedID]
	if !ok || !s.ownsTopicLocked(userID, f.TopicID) {
		return store.NotFoundError{Kind: "feed", ID: feedID}
	}
	f.Content = content
	f.CleanedContent = content
	return nil
}

func (s *Store) DeleteFeed(_ context.Context, userID, feedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[feedID]
	if !ok || !s.ownsTopicLocked(userID, f.TopicID) {
		return store.NotFoundError{Kind: "feed", ID: feedID}
	}
	delete(s.feeds, feedID)
	return nil
}

func (s *Store) CountFeeds(_ context.Context, topicID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, f := range s.feeds {
		if f.TopicID == topicID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ownsTopicLocked(userID, topicID string) bool {
	t, ok := s.topics[topicID]
	return ok && t.UserID == userID
}
