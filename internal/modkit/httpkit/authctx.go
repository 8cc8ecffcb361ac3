package httpkit

import (
	"net/http"
	"slices"

	perrs "captchahub/internal/platform/errors"
	pnet "captchahub/internal/platform/net"
)

// User returns the authenticated client id from the request context
func User(r *http.Request) (string, error) {
	uid := pnet.UserID(r.Context())
	if uid == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	return uid, nil
}

// Role returns the role bound to the bearer token, empty when auth is off
func Role(r *http.Request) string {
	return pnet.Role(r.Context())
}

// RequireRole rejects authenticated callers whose role is not listed
// requests without a role pass, they only happen on open deployments
func RequireRole(r *http.Request, roles ...string) error {
	role := Role(r)
	if role == "" || slices.Contains(roles, role) {
		return nil
	}
	return perrs.Forbiddenf("role %q may not call %s", role, r.URL.Path)
}
