package ports

import (
	"context"
	"errors"
	"time"

	"github.com/tjfontaine/agentgate/internal/core/domain"
)

// ErrNotFound is returned (wrapped) by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// InteractionRecord is a persisted interaction plus the context it happened in.
type InteractionRecord struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// UserID is the user whose turn produced the interaction.
	UserID string `json:"user_id"`

	// RequestID links the record to the HTTP request that triggered it.
	RequestID string `json:"request_id,omitempty"`

	// Model is the provider model name used.
	Model string `json:"model,omitempty"`

	// Interaction is the record itself.
	Interaction domain.Interaction `json:"interaction"`

	// CreatedAt is when the record was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// InteractionListOptions filters ListInteractions.
type InteractionListOptions struct {
	UserID    string
	ModelType domain.ModelType
	Source    string
	Limit     int
	Offset    int
}

// InteractionStore persists model interaction records.
type InteractionStore interface {
	SaveInteraction(ctx context.Context, rec *InteractionRecord) error
	GetInteraction(ctx context.Context, id string) (*InteractionRecord, error)

	// ListInteractions returns matching records, newest first.
	ListInteractions(ctx context.Context, opts InteractionListOptions) ([]*InteractionRecord, error)

	// DeleteInteractions removes every record for userID and reports how many went.
	DeleteInteractions(ctx context.Context, userID string) (int, error)

	Close() error
}
