package plugin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/agentgate/internal/auth"
	"github.com/tjfontaine/agentgate/internal/server"
)

type ListResponse struct {
	Plugins []Info `json:"plugins"`
}

type ToggleResponse struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// Mount registers the plugin management routes on r.
func (r *Registry) Mount(router chi.Router) {
	router.Route("/plugins", func(pr chi.Router) {
		pr.With(server.RequirePermission(r.authorizer, auth.ResourcePlugins, auth.PermissionList)).
			Get("/", r.handleList)
		pr.With(server.RequirePermission(r.authorizer, auth.ResourcePlugins, auth.PermissionEdit)).
			Put("/toggle/{id}", r.handleToggle)
	})
}

func (r *Registry) handleList(w http.ResponseWriter, req *http.Request) {
	server.WriteJSON(w, http.StatusOK, ListResponse{Plugins: r.Plugins()})
}

func (r *Registry) handleToggle(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	active, err := r.Toggle(id)
	if err != nil {
		server.WriteError(w, req, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, ToggleResponse{ID: id, Active: active})
}
