package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/agentgate/internal/auth"
	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/server"
)

type entry struct {
	plugin Plugin
	active bool
}

// Registry holds the installed plugins and routes requests to the endpoints
// of active ones. The routing table is rebuilt on every change.
type Registry struct {
	mu      sync.Mutex
	plugins map[string]*entry

	sessions   ports.SessionResolver
	authorizer ports.Authorizer
	logger     *slog.Logger

	router atomic.Pointer[chi.Mux]
}

// NewRegistry creates an empty registry.
func NewRegistry(sessions ports.SessionResolver, authorizer ports.Authorizer, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		plugins:    make(map[string]*entry),
		sessions:   sessions,
		authorizer: authorizer,
		logger:     logger,
	}
	r.router.Store(r.buildRouter())
	return r
}

// Register installs p as active. Duplicate ids and routes already served by
// another endpoint are rejected.
func (r *Registry) Register(p Plugin) error {
	if p.ID == "" {
		return fmt.Errorf("plugin has no id")
	}

	endpoints := make([]Endpoint, len(p.Endpoints))
	for i, ep := range p.Endpoints {
		norm, err := ep.normalize(p.ID)
		if err != nil {
			return fmt.Errorf("plugin %s: %w", p.ID, err)
		}
		endpoints[i] = norm
	}
	p.Endpoints = endpoints

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.ID]; exists {
		return fmt.Errorf("plugin %s already registered", p.ID)
	}

	taken := make(map[string]string)
	for id, e := range r.plugins {
		for _, ep := range e.plugin.Endpoints {
			for _, m := range ep.Methods {
				taken[m+" "+ep.Name()] = id
			}
		}
	}
	for _, ep := range p.Endpoints {
		for _, m := range ep.Methods {
			key := m + " " + ep.Name()
			if owner, ok := taken[key]; ok {
				return fmt.Errorf("plugin %s: %s is already served by plugin %s", p.ID, key, owner)
			}
			taken[key] = p.ID
		}
	}

	r.plugins[p.ID] = &entry{plugin: p, active: true}
	r.router.Store(r.buildRouter())
	r.logger.Info("plugin registered", slog.String("plugin_id", p.ID), slog.Int("endpoints", len(p.Endpoints)))
	return nil
}

// SetActive turns a plugin's endpoints on or off.
func (r *Registry) SetActive(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.plugins[id]
	if !ok {
		return domain.ErrNotFound(fmt.Sprintf("plugin %s not found", id))
	}
	r.setActiveLocked(e, active)
	return nil
}

// Toggle flips a plugin's state and returns the new one.
func (r *Registry) Toggle(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.plugins[id]
	if !ok {
		return false, domain.ErrNotFound(fmt.Sprintf("plugin %s not found", id))
	}
	r.setActiveLocked(e, !e.active)
	return e.active, nil
}

// setActiveLocked must be called with r.mu held.
func (r *Registry) setActiveLocked(e *entry, active bool) {
	if e.active == active {
		return
	}
	e.active = active
	r.router.Store(r.buildRouter())
	r.logger.Info("plugin toggled", slog.String("plugin_id", e.plugin.ID), slog.Bool("active", active))
}

// Active reports whether the plugin is installed and active.
func (r *Registry) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.plugins[id]
	return ok && e.active
}

// Info describes an installed plugin.
type Info struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Active      bool           `json:"active"`
	Endpoints   []EndpointInfo `json:"endpoints"`
}

// EndpointInfo describes a custom endpoint.
type EndpointInfo struct {
	Name    string   `json:"name"`
	Methods []string `json:"methods"`
	Tags    []string `json:"tags"`
}

// Plugins lists installed plugins sorted by id.
func (r *Registry) Plugins() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.plugins))
	for _, e := range r.plugins {
		info := Info{
			ID:          e.plugin.ID,
			Name:        e.plugin.Name,
			Description: e.plugin.Description,
			Active:      e.active,
			Endpoints:   make([]EndpointInfo, 0, len(e.plugin.Endpoints)),
		}
		for _, ep := range e.plugin.Endpoints {
			info.Endpoints = append(info.Endpoints, EndpointInfo{Name: ep.Name(), Methods: ep.Methods, Tags: ep.Tags})
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ServeHTTP dispatches to an active plugin endpoint, or answers 404.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Route on the full path with a fresh chi context.
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, (*chi.Context)(nil)))
	r.router.Load().ServeHTTP(w, req)
}

// buildRouter must be called with r.mu held.
func (r *Registry) buildRouter() *chi.Mux {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		server.WriteError(w, req, domain.ErrNotFound(fmt.Sprintf("no route for %s %s", req.Method, req.URL.Path)))
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apiErr := domain.ErrInvalidRequest(fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path))
		apiErr.StatusCode = http.StatusMethodNotAllowed
		server.WriteError(w, req, apiErr)
	})

	for _, e := range r.plugins {
		if !e.active {
			continue
		}
		for _, ep := range e.plugin.Endpoints {
			var route chi.Router = mux
			if ep.Resource != "" {
				route = mux.With(server.RequirePermission(r.authorizer, ep.Resource, ep.Permission))
			}
			h := r.wrap(ep)
			for _, m := range ep.Methods {
				route.MethodFunc(m, ep.Name(), h)
			}
		}
	}
	return mux
}

func (r *Registry) wrap(ep Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := auth.IdentityFromContext(req.Context())
		if id == nil {
			server.WriteError(w, req, domain.ErrAuthentication("request is not authenticated").
				WithCode(domain.ErrorCodeMissingCredentials))
			return
		}
		conv, err := r.sessions.Resolve(req.Context(), id.UserID)
		if err != nil {
			server.WriteError(w, req, err)
			return
		}
		server.AddLogField(req.Context(), "plugin_id", ep.PluginID)
		ep.Handler(w, req, conv)
	}
}
