package inmemory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mindlinkco/mindlink/pkg/store"
)

func (s *Store) UpsertAnchor(_ context.Context, userID string, up store.AnchorUpsert) (*store.Anchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertAnchorLocked(userID, up)
}

// upsertAnchorLocked creates at version 1 or overwrites the mutable fields
// and increments the version. The store mutex serializes writes to the same
// (user, key) so version increments are never lost.
func (s *Store) upsertAnchorLocked(userID string, up store.AnchorUpsert) (*store.Anchor, error) {
	category := up.Category
	if !store.ValidCategory(category) {
		category = store.CategoryGeneral
	}

	aliases := up.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	userAnchors, ok := s.anchors[userID]
	if !ok {
		userAnchors = make(map[string]*store.Anchor)
		s.anchors[userID] = userAnchors
	}

	now := time.Now()

	a, ok := userAnchors[up.Key]
	if !ok {
		a = &store.Anchor{
			ID:        uuid.NewString(),
			UserID:    userID,
			Key:       up.Key,
			Version:   0,
			CreatedAt: now,
		}
		userAnchors[up.Key] = a
	}

	a.Definition = up.Definition
	a.Category = category
	a.Aliases = append([]string(nil), aliases...)
	a.SourceTopicID = up.SourceTopicID
	a.Version++
	a.Active = true
	a.UpdatedAt = now

	cp := cloneAnchor(a)
	return cp, nil
}

func (s *Store) GetAnchor(_ context.Context, userID, key string) (*store.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.anchors[userID][key]
	if !ok {
		return nil, store.NotFoundError{Kind: "anchor", ID: key}
	}
	return cloneAnchor(a), nil
}

func (s *Store) ListAnchors(_ context.Context, userID string) ([]*store.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAnchorsLocked(userID, false, 0), nil
}

func (s *Store) ListActiveAnchors(_ context.Context, userID string, limit int) ([]*store.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAnchorsLocked(userID, true, limit), nil
}

func (s *Store) listAnchorsLocked(userID string, activeOnly bool, limit int) []*store.Anchor {
	var anchors []*store.Anchor
	for _, a := range s.anchors[userID] {
		if activeOnly && !a.Active {
			continue
		}
		anchors = append(anchors, cloneAnchor(a))
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].UpdatedAt.Equal(anchors[j].UpdatedAt) {
			return anchors[i].Key < anchors[j].Key
		}
		return anchors[i].UpdatedAt.After(anchors[j].UpdatedAt)
	})
	if limit > 0 && len(anchors) > limit {
		anchors = anchors[:limit]
	}
	return anchors
}

func (s *Store) DeactivateAnchor(_ context.Context, userID, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.anchors[userID][key]
	if !ok {
		return false, nil
	}
	a.Active = false
	a.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) DeleteAnchor(_ context.Context, userID, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.anchors[userID][key]; !ok {
		return false, nil
	}
	delete(s.anchors[userID], key)
	return true, nil
}

func cloneAnchor(a *store.Anchor) *store.Anchor {
	cp := *a
	cp.Aliases = append([]string(nil), a.Aliases...)
	return &cp
}
