package gateway

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single role-tagged message in a gateway request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewTextMessage creates a message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// Request is a provider-agnostic completion request. Messages are ordered;
// ThinkingEffort is a hint ("minimal", "low", "medium", "high") and MaxTokens
// caps the output size. Zero values defer to the client's configuration.
type Request struct {
	Messages       []Message `json:"messages"`
	ThinkingEffort string    `json:"thinking_effort,omitempty"`
	MaxTokens      int       `json:"max_tokens,omitempty"`
}
