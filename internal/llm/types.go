package llm

// Chat roles understood by OpenAI-compatible providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams overrides per-request generation settings.
type ChatParams struct {
	// Model replaces the client's model when set.
	Model string
	// MaxTokens caps the reply length. Zero leaves it to the provider.
	MaxTokens int
	// Temperature defaults to 0.7 when zero.
	Temperature float32
}
