// Package recorder persists the model interactions an agent performs.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/server"
)

// DefaultTimeout bounds a single write.
const DefaultTimeout = 5 * time.Second

// Meta is the context an interaction happened in.
type Meta struct {
	UserID string
	Model  string
}

// Recorder writes interactions to a store. A nil store makes it a no-op.
type Recorder struct {
	store   ports.InteractionStore
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a recorder. timeout <= 0 uses DefaultTimeout.
func New(store ports.InteractionStore, timeout time.Duration, logger *slog.Logger) *Recorder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, timeout: timeout, logger: logger}
}

// Record stores i and returns the record ID, or "" when nothing was stored.
// It best-effort logs on failure without failing the request path.
func (r *Recorder) Record(ctx context.Context, meta Meta, i domain.Interaction) string {
	if r == nil || r.store == nil || i == nil {
		return ""
	}

	// Decouple persistence from the request lifecycle so a client disconnect
	// does not drop the record; still enforce a short timeout.
	persistCtx, cancel := buildPersistenceContext(ctx, r.timeout)
	defer cancel()

	rec := &ports.InteractionRecord{
		ID:          "mi_" + uuid.New().String(),
		UserID:      meta.UserID,
		RequestID:   server.GetRequestID(persistCtx),
		Model:       meta.Model,
		Interaction: i,
		CreatedAt:   time.Now(),
	}

	if err := r.store.SaveInteraction(persistCtx, rec); err != nil {
		r.logger.Error("failed to record interaction",
			slog.String("error", err.Error()),
			slog.String("user_id", meta.UserID),
			slog.String("model_type", string(i.Kind())),
			slog.String("request_id", rec.RequestID),
		)
		return ""
	}

	r.logger.Debug("interaction recorded",
		slog.String("id", rec.ID),
		slog.String("model_type", string(i.Kind())),
		slog.String("source", i.Common().Source),
	)
	return rec.ID
}

func buildPersistenceContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := context.Background()
	if reqID := server.GetRequestID(ctx); reqID != "" {
		base = server.WithRequestID(base, reqID)
	}
	return context.WithTimeout(base, timeout)
}
