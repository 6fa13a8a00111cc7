/*
Package server provides the HTTP server and middleware for agentgate.

# Middleware Chain Order

New installs the middleware in this order:
 1. RequestIDMiddleware (reuses an inbound X-Request-ID or generates one)
 2. LoggingMiddleware (one line per request, 5xx logged at error level)
 3. Recoverer (catches panics)
 4. OTel instrumentation (OpenTelemetry)
 5. TimeoutMiddleware (request deadline)
 6. AuthMiddleware (identity from API key, or the user_id header in open mode)

Routes that need a permission wrap themselves with RequirePermission.

# Context Keys

  - RequestIDKey: string UUID for the request
  - the authenticated identity, see auth.IdentityFromContext
  - extra log fields added with AddLogField and AddError

# Example Usage

	srv := server.New(server.Options{Port: 1865}, logger, authenticator)
	srv.Router.With(server.RequirePermission(authz, auth.ResourceStatus, auth.PermissionRead)).
		Get("/", handleStatus)
	ln, err := srv.Listen()
	if err != nil {
		return err
	}
	go srv.Serve(ln)
*/
package server
