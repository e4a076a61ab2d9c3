// Package crystal defines the structured knowledge snapshot kept per topic.
//
// A Crystal always carries all five fields; decoding normalizes whatever shape
// the gateway returned (missing fields, a bare string where a list was
// expected) into the typed value, so nothing past this boundary sees an
// ambiguous shape.
package crystal

import (
	"encoding/json"
	"strings"
)

// Crystal is the continuously-merged summary of a topic's knowledge.
// CurrentKnowledge, Highlights, and PendingNotes are replaced wholesale on
// each consolidation; Evolution is append-only and never reordered.
type Crystal struct {
	CoreGoal         string   `json:"core_goal"`
	CurrentKnowledge []string `json:"current_knowledge"`
	Highlights       []string `json:"highlights"`
	PendingNotes     []string `json:"pending_notes"`
	Evolution        []string `json:"evolution"`
}

// New returns an empty Crystal with the given core goal (the topic's north
// star at creation time, possibly blank).
func New(coreGoal string) *Crystal {
	return &Crystal{
		CoreGoal:         coreGoal,
		CurrentKnowledge: []string{},
		Highlights:       []string{},
		PendingNotes:     []string{},
		Evolution:        []string{},
	}
}

// IsEmpty reports whether the crystal carries no content beyond a core goal.
// A topic whose crystal is empty takes the fresh-generation consolidation
// path rather than the merge path.
func (c *Crystal) IsEmpty() bool {
	if c == nil {
		return true
	}
	return len(c.CurrentKnowledge) == 0 &&
		len(c.Highlights) == 0 &&
		len(c.PendingNotes) == 0 &&
		len(c.Evolution) == 0
}

// Normalize fills nil lists with empty ones so every field is present.
func (c *Crystal) Normalize() {
	if c.CurrentKnowledge == nil {
		c.CurrentKnowledge = []string{}
	}
	if c.Highlights == nil {
		c.Highlights = []string{}
	}
	if c.PendingNotes == nil {
		c.PendingNotes = []string{}
	}
	if c.Evolution == nil {
		c.Evolution = []string{}
	}
}

// MergeEvolution enforces the append-only invariant on Evolution: every entry
// of prev must survive, in order, at the head of the merged log. Entries the
// gateway re-emitted are not duplicated; entries it dropped are restored.
func (c *Crystal) MergeEvolution(prev []string) {
	if len(prev) == 0 {
		c.Normalize()
		return
	}

	seen := make(map[string]bool, len(prev))
	for _, entry := range prev {
		seen[entry] = true
	}

	merged := make([]string, 0, len(prev)+len(c.Evolution))
	merged = append(merged, prev...)
	for _, entry := range c.Evolution {
		if !seen[entry] {
			merged = append(merged, entry)
		}
	}
	c.Evolution = merged
}

// flexList decodes a JSON value that should be a list of strings but may
// arrive as a bare string, null, or a list of arbitrary scalars.
type flexList []string

func (f *flexList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*f = []string{}
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*f = []string{}
		} else {
			*f = []string{single}
		}
		return nil
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				out = append(out, v)
			}
		case map[string]any:
			// Some models wrap list entries in objects; keep the raw JSON.
			raw, err := json.Marshal(v)
			if err == nil {
				out = append(out, string(raw))
			}
		case float64, bool:
			raw, _ := json.Marshal(v)
			out = append(out, string(raw))
		}
	}
	*f = out
	return nil
}

// UnmarshalJSON decodes a gateway-shaped crystal, tolerating partially-shaped
// responses: missing fields default to empty and string-where-list values are
// lifted into one-element lists.
func (c *Crystal) UnmarshalJSON(data []byte) error {
	var raw struct {
		CoreGoal         string   `json:"core_goal"`
		CurrentKnowledge flexList `json:"current_knowledge"`
		Highlights       flexList `json:"highlights"`
		PendingNotes     flexList `json:"pending_notes"`
		Evolution        flexList `json:"evolution"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.CoreGoal = raw.CoreGoal
	c.CurrentKnowledge = raw.CurrentKnowledge
	c.Highlights = raw.Highlights
	c.PendingNotes = raw.PendingNotes
	c.Evolution = raw.Evolution
	c.Normalize()
	return nil
}
