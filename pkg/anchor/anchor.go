// Package anchor manages the user's long-lived memory anchors: versioned
// definitional facts keyed per user, surfaced into prompts by substring
// matching against conversation text.
package anchor

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/pkg/store"
)

// summarizeLimit caps how many anchors a prompt digest carries.
const summarizeLimit = 50

// Store is the slice of the store the anchor service needs.
type Store interface {
	UpsertAnchor(ctx context.Context, userID string, up store.AnchorUpsert) (*store.Anchor, error)
	GetAnchor(ctx context.Context, userID, key string) (*store.Anchor, error)
	ListAnchors(ctx context.Context, userID string) ([]*store.Anchor, error)
	ListActiveAnchors(ctx context.Context, userID string, limit int) ([]*store.Anchor, error)
	DeactivateAnchor(ctx context.Context, userID, key string) (bool, error)
	DeleteAnchor(ctx context.Context, userID, key string) (bool, error)
}

// Service exposes anchor operations over a store.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates an anchor service.
func NewService(st Store, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// Upsert creates or overwrites the user's anchor for the key, bumping its
// version and reactivating it.
func (s *Service) Upsert(ctx context.Context, userID string, up store.AnchorUpsert) (*store.Anchor, error) {
	return s.store.UpsertAnchor(ctx, userID, up)
}

// Get returns the user's anchor by key.
func (s *Service) Get(ctx context.Context, userID, key string) (*store.Anchor, error) {
	return s.store.GetAnchor(ctx, userID, key)
}

// List returns all of the user's anchors, active or not.
func (s *Service) List(ctx context.Context, userID string) ([]*store.Anchor, error) {
	return s.store.ListAnchors(ctx, userID)
}

// Deactivate soft-removes the anchor. The record and its version survive, so
// a later upsert resumes counting from where it left off.
func (s *Service) Deactivate(ctx context.Context, userID, key string) (bool, error) {
	return s.store.DeactivateAnchor(ctx, userID, key)
}

// Delete hard-deletes the anchor. Only explicit user action reaches this.
func (s *Service) Delete(ctx context.Context, userID, key string) (bool, error) {
	return s.store.DeleteAnchor(ctx, userID, key)
}

// MatchByContent returns the active anchors whose key or any alias appears in
// the content, case-insensitively. Matching is plain substring, so a short
// key can match inside an unrelated word.
func (s *Service) MatchByContent(ctx context.Context, userID, content string) ([]*store.Anchor, error) {
	anchors, err := s.store.ListActiveAnchors(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	haystack := strings.ToLower(content)

	var matched []*store.Anchor
	for _, a := range anchors {
		if matches(haystack, a) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func matches(haystack string, a *store.Anchor) bool {
	// An empty key would match everything.
	if a.Key != "" && strings.Contains(haystack, strings.ToLower(a.Key)) {
		return true
	}
	for _, alias := range a.Aliases {
		if alias == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

// Summarize renders the user's active anchors as a prompt digest, one line
// per anchor, most recently updated first. Returns "" with no active anchors.
func (s *Service) Summarize(ctx context.Context, userID string) (string, error) {
	anchors, err := s.store.ListActiveAnchors(ctx, userID, summarizeLimit)
	if err != nil {
		return "", err
	}
	return Render(anchors), nil
}

// Render formats anchors as `key (alias1, alias2): definition` lines.
func Render(anchors []*store.Anchor) string {
	if len(anchors) == 0 {
		return ""
	}

	var b strings.Builder
	for i, a := range anchors {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(a.Key)
		if len(a.Aliases) > 0 {
			b.WriteString(" (")
			b.WriteString(strings.Join(a.Aliases, ", "))
			b.WriteString(")")
		}
		b.WriteString(": ")
		b.WriteString(a.Definition)
	}
	return b.String()
}
