package crystal

import (
	"fmt"
	"strings"
)

// Markdown renders the crystal as a compact markdown document for prompt
// injection and API display.
func (c *Crystal) Markdown() string {
	if c == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString("## Core Goal\n")
	if c.CoreGoal != "" {
		b.WriteString(c.CoreGoal)
		b.WriteString("\n")
	}

	writeSection(&b, "Current Knowledge", c.CurrentKnowledge)
	writeSection(&b, "Highlights", c.Highlights)
	writeSection(&b, "Pending Notes", c.PendingNotes)
	writeSection(&b, "Evolution", c.Evolution)

	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
