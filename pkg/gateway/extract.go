package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON document out of raw gateway output. Models return
// either bare JSON or JSON wrapped in a fenced code block (with or without a
// language tag); the leading and trailing fences are stripped before any
// parsing. If no fence is present, the text between the first '{' and the
// last '}' is used.
func ExtractJSON(response string) string {
	text := strings.TrimSpace(response)

	if strings.HasPrefix(text, "```") {
		// Drop the opening fence line ("```" or "```json").
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1]
		}
	}

	return text
}

// DecodeError marks a structured response that could not be parsed as JSON.
// It is a recoverable error specific to the call that produced the text, not
// a transport error; each caller documents its own fallback.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode gateway response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeJSON extracts and unmarshals a JSON document from raw gateway output
// into v. A parse failure returns a *DecodeError carrying the raw text so
// callers can apply their documented fallback.
func DecodeJSON(response string, v any) error {
	text := ExtractJSON(response)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return &DecodeError{Raw: response, Err: err}
	}
	return nil
}
