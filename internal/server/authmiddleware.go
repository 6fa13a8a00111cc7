package server

import (
	"fmt"
	"net/http"

	"github.com/tjfontaine/agentgate/internal/auth"
	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// AuthMiddleware resolves the caller and injects its identity into the
// request context. Requests that fail authentication get 401.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticator.Authenticate(r)
			if err != nil {
				WriteError(w, r, err)
				return
			}

			AddLogField(r.Context(), "user_id", id.UserID)
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequirePermission lets a request through only when the authorizer grants
// perm on res to the identity set by AuthMiddleware. Denials get 403.
func RequirePermission(authorizer ports.Authorizer, res auth.Resource, perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.IdentityFromContext(r.Context())
			if id == nil {
				WriteError(w, r, domain.ErrAuthentication("request is not authenticated").
					WithCode(domain.ErrorCodeMissingCredentials))
				return
			}

			decision, err := authorizer.Authorize(r.Context(), &ports.AuthzRequest{
				UserID:      id.UserID,
				Resource:    string(res),
				Permission:  string(perm),
				Permissions: id.Permissions.Strings(),
			})
			if err != nil {
				WriteError(w, r, fmt.Errorf("authorize %s/%s: %w", res, perm, err))
				return
			}
			if !decision.Allow {
				WriteError(w, r, domain.ErrPermission(fmt.Sprintf("%s/%s denied: %s", res, perm, decision.Reason)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
