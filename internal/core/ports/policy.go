package ports

import "context"

// AuthzRequest is the input to an authorization decision.
type AuthzRequest struct {
	UserID      string
	Resource    string
	Permission  string
	Permissions map[string][]string // resource -> permissions held by the caller
}

// AuthzDecision is the result of an authorization check.
type AuthzDecision struct {
	Allow  bool
	Reason string
}

// Authorizer decides whether a caller may perform an action on a resource.
type Authorizer interface {
	Authorize(ctx context.Context, req *AuthzRequest) (*AuthzDecision, error)
}
