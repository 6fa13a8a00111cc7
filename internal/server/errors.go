package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tjfontaine/agentgate/internal/core/domain"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error *domain.APIError `json:"error"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as {"error": {...}} with the status derived from its
// type, and records it on the request log line.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := domain.ToAPIError(err)
	if errors.Is(err, context.DeadlineExceeded) {
		apiErr = domain.NewAPIError(domain.ErrorTypeServer, "request timed out").WithCause(err)
		apiErr.StatusCode = http.StatusGatewayTimeout
	}
	AddError(r.Context(), err)
	WriteJSON(w, apiErr.HTTPStatusCode(), ErrorResponse{Error: apiErr})
}

func errNotFound(r *http.Request) error {
	return domain.ErrNotFound(fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}
