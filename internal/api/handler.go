// Package api serves agentgate's HTTP routes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/agentgate/internal/auth"
	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/server"
)

// VersionSource reports the running project version.
type VersionSource interface {
	Version() (string, error)
}

// Deps are the collaborators the handlers need. Store and Memory may be nil
// when storage is disabled.
type Deps struct {
	Sessions   ports.SessionResolver
	Store      ports.InteractionStore
	Memory     ports.MemoryStore
	Embedder   ports.Embedder
	Metadata   VersionSource
	Authorizer ports.Authorizer
	Logger     *slog.Logger
}

// Handler owns the HTTP routes.
type Handler struct {
	sessions   ports.SessionResolver
	store      ports.InteractionStore
	memory     ports.MemoryStore
	embedder   ports.Embedder
	metadata   VersionSource
	authorizer ports.Authorizer
	logger     *slog.Logger
}

// New creates a Handler.
func New(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:   deps.Sessions,
		store:      deps.Store,
		memory:     deps.Memory,
		embedder:   deps.Embedder,
		metadata:   deps.Metadata,
		authorizer: deps.Authorizer,
		logger:     logger,
	}
}

// Mount registers the routes on r. Each route checks its own permission.
func (h *Handler) Mount(r chi.Router) {
	r.With(h.require(auth.ResourceStatus, auth.PermissionRead)).Get("/", h.handleStatus)
	r.With(h.require(auth.ResourceConversation, auth.PermissionWrite)).Post("/message", h.handleMessage)

	r.Route("/memory", func(r chi.Router) {
		r.With(h.require(auth.ResourceMemory, auth.PermissionRead)).Get("/conversation_history", h.handleGetHistory)
		r.With(h.require(auth.ResourceMemory, auth.PermissionDelete)).Delete("/conversation_history", h.handleDeleteHistory)

		r.With(h.require(auth.ResourceMemory, auth.PermissionRead)).Get("/model_interactions", h.handleListInteractions)
		r.With(h.require(auth.ResourceMemory, auth.PermissionRead)).Get("/model_interactions/{id}", h.handleGetInteraction)
		r.With(h.require(auth.ResourceMemory, auth.PermissionDelete)).Delete("/model_interactions", h.handleDeleteInteractions)

		r.With(h.require(auth.ResourceMemory, auth.PermissionRead)).Get("/recall", h.handleRecall)
		r.Route("/collections/{collection}/points", func(r chi.Router) {
			r.With(h.require(auth.ResourceMemory, auth.PermissionRead)).Get("/", h.handleListPoints)
			r.With(h.require(auth.ResourceMemory, auth.PermissionWrite)).Post("/", h.handleCreatePoint)
			r.With(h.require(auth.ResourceMemory, auth.PermissionDelete)).Delete("/{id}", h.handleDeletePoint)
		})
	})
}

func (h *Handler) require(res auth.Resource, perm auth.Permission) func(http.Handler) http.Handler {
	return server.RequirePermission(h.authorizer, res, perm)
}

// conversation resolves the caller's session.
func (h *Handler) conversation(r *http.Request) (ports.Conversation, error) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		return nil, domain.ErrAuthentication("request is not authenticated").
			WithCode(domain.ErrorCodeMissingCredentials)
	}
	return h.sessions.Resolve(r.Context(), id.UserID)
}

func writeJSON(w http.ResponseWriter, payload any) {
	server.WriteJSON(w, http.StatusOK, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.WriteError(w, r, err)
}
