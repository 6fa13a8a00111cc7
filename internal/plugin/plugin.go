// Package plugin hosts custom HTTP endpoints contributed by plugins. An
// endpoint answers only while its plugin is active.
package plugin

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/agentgate/internal/auth"
	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// DefaultPrefix is prepended to endpoint paths that don't set a prefix.
const DefaultPrefix = "/custom-endpoints"

// DefaultTags returns the tags given to endpoints that don't set any.
func DefaultTags() []string {
	return []string{"Custom Endpoints"}
}

// HandlerFunc serves a custom endpoint. conv is the caller's session.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, conv ports.Conversation)

// Endpoint is one custom route.
type Endpoint struct {
	Path    string
	Methods []string
	Prefix  string
	Tags    []string

	// Resource and Permission, when both set, are checked before Handler runs.
	Resource   auth.Resource
	Permission auth.Permission

	Handler HandlerFunc

	// PluginID is filled in on registration.
	PluginID string
}

// Name is the full route: prefix plus path.
func (e Endpoint) Name() string {
	return e.Prefix + e.Path
}

// Get declares a GET endpoint under DefaultPrefix.
func Get(path string, h HandlerFunc) Endpoint {
	return Endpoint{Path: path, Methods: []string{http.MethodGet}, Handler: h}
}

// Post declares a POST endpoint under DefaultPrefix.
func Post(path string, h HandlerFunc) Endpoint {
	return Endpoint{Path: path, Methods: []string{http.MethodPost}, Handler: h}
}

// Plugin groups endpoints under an id.
type Plugin struct {
	ID          string
	Name        string
	Description string
	Endpoints   []Endpoint
}

var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// normalize fills defaults and checks the endpoint can be routed.
func (e Endpoint) normalize(pluginID string) (Endpoint, error) {
	if e.Handler == nil {
		return e, fmt.Errorf("endpoint %q has no handler", e.Path)
	}
	if !strings.HasPrefix(e.Path, "/") {
		return e, fmt.Errorf("endpoint path %q must start with /", e.Path)
	}
	if e.Prefix == "" {
		e.Prefix = DefaultPrefix
	}
	if !strings.HasPrefix(e.Prefix, "/") || strings.HasSuffix(e.Prefix, "/") {
		return e, fmt.Errorf("endpoint prefix %q must start and not end with /", e.Prefix)
	}
	if len(e.Tags) == 0 {
		e.Tags = DefaultTags()
	}
	if len(e.Methods) == 0 {
		return e, fmt.Errorf("endpoint %s has no methods", e.Name())
	}
	methods := make([]string, len(e.Methods))
	for i, m := range e.Methods {
		m = strings.ToUpper(m)
		if !supportedMethods[m] {
			return e, fmt.Errorf("endpoint %s: unsupported method %q", e.Name(), m)
		}
		methods[i] = m
	}
	e.Methods = methods
	if (e.Resource == "") != (e.Permission == "") {
		return e, fmt.Errorf("endpoint %s: resource and permission must be set together", e.Name())
	}
	e.PluginID = pluginID
	return e, nil
}
