package ports

import "context"

// Chat roles understood by LLM providers.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatTurn is one message in a completion prompt.
type ChatTurn struct {
	Role    string
	Content string
}

// CompletionRequest asks an LLM for a single reply.
type CompletionRequest struct {
	Messages    []ChatTurn
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is an LLM reply. Token counts are only meaningful when
// UsageReported is true; callers fall back to local counting otherwise.
type CompletionResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	UsageReported    bool
}

// LLM generates text.
type LLM interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	ModelName() string
}

// EmbeddingResponse is a single embedding vector.
type EmbeddingResponse struct {
	Vector        []float64
	Model         string
	PromptTokens  int
	UsageReported bool
}

// Embedder maps text to a fixed-size vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (*EmbeddingResponse, error)
	Dimensions() int
	ModelName() string
}
