package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

func SystemMessage(content string) Message { return Message{Role: "system", Content: content} }
func UserMessage(content string) Message   { return Message{Role: "user", Content: content} }

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for LLM text generation.
type AIServiceAdapter interface {
	// Provider is a short lowercase label used in logs and metrics ("openai", "gemini").
	Provider() string
	Model() string

	// Chat returns the assistant text plus usage as reported by the provider.
	// An empty reply is an error.
	Chat(ctx context.Context, messages []Message) (string, Usage, error)
}
