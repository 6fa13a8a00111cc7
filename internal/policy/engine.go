// Package policy makes authorization decisions with an OPA rego policy.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// Query is evaluated against the policy module; it must yield an object with
// a boolean "allow" and an optional string "reason".
const Query = "data.agentgate.authz"

// DefaultPolicy grants an action when the caller's permission table lists it.
const DefaultPolicy = `
package agentgate.authz

default allow = false

allow {
	input.permissions[input.resource][_] == input.permission
}

reason = "granted" {
	allow
}

reason = sprintf("%s lacks %s on %s", [input.user_id, input.permission, input.resource]) {
	not allow
}
`

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

var _ ports.Authorizer = (*Engine)(nil)

// NewEngine prepares the given policy module for evaluation.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query(Query),
		rego.Module("authz.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads a policy module from path. An empty path selects
// DefaultPolicy.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(data))
}

// Authorize evaluates the policy for req. A policy that yields no result
// denies.
func (e *Engine) Authorize(ctx context.Context, req *ports.AuthzRequest) (*ports.AuthzDecision, error) {
	if req == nil {
		return &ports.AuthzDecision{Allow: false, Reason: "empty request"}, nil
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(toInput(req)))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return &ports.AuthzDecision{Allow: false, Reason: "policy produced no decision"}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("policy returned %T, want object", results[0].Expressions[0].Value)
	}

	decision := &ports.AuthzDecision{}
	decision.Allow, _ = doc["allow"].(bool)
	decision.Reason, _ = doc["reason"].(string)
	return decision, nil
}

func toInput(req *ports.AuthzRequest) map[string]any {
	perms := make(map[string]any, len(req.Permissions))
	for res, list := range req.Permissions {
		items := make([]any, len(list))
		for i, p := range list {
			items[i] = p
		}
		perms[res] = items
	}
	return map[string]any{
		"user_id":     req.UserID,
		"resource":    req.Resource,
		"permission":  req.Permission,
		"permissions": perms,
	}
}
