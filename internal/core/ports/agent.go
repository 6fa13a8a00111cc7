package ports

import (
	"context"

	"github.com/tjfontaine/agentgate/internal/core/domain"
)

// Conversation is a session-scoped agent bound to a single user.
// Implementations serialize calls to Handle.
type Conversation interface {
	// UserID returns the user the session belongs to.
	UserID() string

	// Handle runs one conversational turn for payload and returns the reply.
	Handle(ctx context.Context, payload map[string]any) (*domain.ChatMessage, error)

	// History returns a copy of the conversation history.
	History() []domain.HistoryEntry

	// ClearHistory drops the conversation history.
	ClearHistory()
}

// SessionResolver finds (or creates) the conversation for a user.
type SessionResolver interface {
	Resolve(ctx context.Context, userID string) (Conversation, error)
}
