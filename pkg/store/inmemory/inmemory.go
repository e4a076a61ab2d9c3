// Package inmemory provides an in-memory store.Store used by tests and
// zero-config runs. All state lives behind one RWMutex, which also gives the
// composite operations their atomicity.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mindlinkco/mindlink/pkg/crystal"
	"github.com/mindlinkco/mindlink/pkg/store"
)

// Store implements store.Store using in-process maps.
type Store struct {
	mu sync.RWMutex

	topics  map[string]*store.Topic
	feeds   map[string]*store.FeedItem
	anchors map[string]map[string]*store.Anchor // userID -> key -> anchor

	tagNames  map[string]bool
	topicTags map[string][]string

	events      map[string][]*store.TimelineEvent
	nextEventID int64

	outputs map[string][]*store.OutputTask
	prompts map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		topics:    make(map[string]*store.Topic),
		feeds:     make(map[string]*store.FeedItem),
		anchors:   make(map[string]map[string]*store.Anchor),
		tagNames:  make(map[string]bool),
		topicTags: make(map[string][]string),
		events:    make(map[string][]*store.TimelineEvent),
		outputs:   make(map[string][]*store.OutputTask),
		prompts:   make(map[string]string),
	}
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) CreateTopic(_ context.Context, t *store.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.topics[t.ID] = &cp
	s.appendEventLocked(&store.TimelineEvent{
		TopicID:   t.ID,
		EventType: store.EventCreate,
		Summary:   "created topic: " + t.Title,
		CreatedAt: t.CreatedAt,
	})
	return nil
}

func (s *Store) GetTopic(_ context.Context, userID, topicID string) (*store.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.topics[topicID]
	if !ok || t.UserID != userID {
		return nil, store.NotFoundError{Kind: "topic", ID: topicID}
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListTopics(_ context.Context, userID string) ([]*store.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var topics []*store.Topic
	for _, t := range s.topics {
		if t.UserID == userID {
			cp := *t
			topics = append(topics, &cp)
		}
	}
	sort.Slice(topics, func(i, j int) bool {
		return topics[i].UpdatedAt.After(topics[j].UpdatedAt)
	})
	return topics, nil
}

func (s *Store) UpdateCrystal(_ context.Context, topicID string, c *crystal.Crystal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[topicID]
	if !ok {
		return store.NotFoundError{Kind: "topic", ID: topicID}
	}
	t.Crystal = c
	t.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteTopic(_ context.Context, userID, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[topicID]
	if !ok || t.UserID != userID {
		return store.NotFoundError{Kind: "topic", ID: topicID}
	}
	s.deleteTopicLocked(topicID)
	return nil
}

// deleteTopicLocked cascades over everything the topic owns. Anchors are
// user-scoped and survive.
func (s *Store) deleteTopicLocked(topicID string) {
	delete(s.topics, topicID)
	for id, f := range s.feeds {
		if f.TopicID == topicID {
			delete(s.feeds, id)
		}
	}
	delete(s.topicTags, topicID)
	delete(s.events, topicID)
	delete(s.outputs, topicID)
}
