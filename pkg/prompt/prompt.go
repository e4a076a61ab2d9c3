// Package prompt holds the default prompt texts and resolves the active text
// for each key, letting stored admin overrides win over the defaults.
package prompt

import "context"

// Prompt keys. Overrides are stored per key.
const (
	KeyCleaner           = "cleaner"
	KeyNarrativeWithMeta = "narrative_with_meta"
	KeyMemoryAnchor      = "memory_anchor"
	KeyExpresser         = "expresser"
	KeyChatBase          = "chat_base"
	KeyChatStyleDefault  = "chat_style_default"
	KeyChatStyleSocratic = "chat_style_socratic"
	KeyChatStyleCreative = "chat_style_creative"
	KeyFusionExtract     = "fusion_extract"
)

// Meta describes a prompt for the admin surface.
type Meta struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type entry struct {
	meta    Meta
	content string
}

var registry = []entry{
	{Meta{KeyCleaner, "Feed", "runs when the user feeds a note", "core"}, cleanerDefault},
	{Meta{KeyNarrativeWithMeta, "Narrative", "runs when the user opens the narrative view", "core"}, narrativeWithMetaDefault},
	{Meta{KeyExpresser, "Output", "runs when the user requests an expression", "core"}, expresserDefault},
	{Meta{KeyChatBase, "Chat", "system prompt when the user enters a chat", "chat"}, chatBaseDefault},
	{Meta{KeyChatStyleDefault, "Chat style: analytical", "appended for the analytical style", "chat"}, chatStyleDefaultDefault},
	{Meta{KeyChatStyleSocratic, "Chat style: socratic", "appended for the socratic style", "chat"}, chatStyleSocraticDefault},
	{Meta{KeyChatStyleCreative, "Chat style: divergent", "appended for the divergent style", "chat"}, chatStyleCreativeDefault},
	{Meta{KeyMemoryAnchor, "Anchor extraction", "appended to the narrative prompt to extract memory anchors", "memory"}, memoryAnchorDefault},
	{Meta{KeyFusionExtract, "Fusion extraction", "selects unique notes during a topic fusion preview", "fusion"}, fusionExtractDefault},
}

// Default returns the built-in text for a key, or "" for an unknown key.
func Default(key string) string {
	for _, e := range registry {
		if e.meta.Key == key {
			return e.content
		}
	}
	return ""
}

// Keys returns every registered prompt key in registry order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for _, e := range registry {
		keys = append(keys, e.meta.Key)
	}
	return keys
}

// GetMeta returns the metadata for a key.
func GetMeta(key string) (Meta, bool) {
	for _, e := range registry {
		if e.meta.Key == key {
			return e.meta, true
		}
	}
	return Meta{}, false
}

// OverrideStore is the slice of the store the registry needs.
type OverrideStore interface {
	GetPromptOverride(ctx context.Context, key string) (string, error)
	SetPromptOverride(ctx context.Context, key, content string) error
}

// Registry resolves prompt texts with precedence override > default.
type Registry struct {
	store OverrideStore
}

// NewRegistry creates a registry backed by the given override store.
func NewRegistry(store OverrideStore) *Registry {
	return &Registry{store: store}
}

// Get returns the active text for a key. A store failure falls back to the
// default rather than surfacing; prompts must always resolve.
func (r *Registry) Get(ctx context.Context, key string) string {
	if r.store != nil {
		if content, err := r.store.GetPromptOverride(ctx, key); err == nil && content != "" {
			return content
		}
	}
	return Default(key)
}

// SetOverride stores an override; empty content restores the default.
func (r *Registry) SetOverride(ctx context.Context, key, content string) error {
	return r.store.SetPromptOverride(ctx, key, content)
}
