package httpkit

import (
	"net/http"
	"strings"

	perrs "captchahub/internal/platform/errors"
)

// TokenFunc maps a bearer token to the client id and its role
// an empty role is allowed and means unrestricted
type TokenFunc func(token string) (clientID string, role string, err error)

// Port implements middleware.AuthPort on top of a TokenFunc
type Port struct {
	parse TokenFunc
}

// NewPortFunc builds a Port from a parser function
func NewPortFunc(fn TokenFunc) *Port {
	return &Port{parse: fn}
}

// bearer returns the token of an "Authorization: Bearer <token>" header
// the scheme is case insensitive and surrounding spaces are ignored
func bearer(r *http.Request) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// Parse resolves the caller of r, every failure is unauthorized
func (p *Port) Parse(r *http.Request) (string, string, error) {
	tok, ok := bearer(r)
	if !ok {
		return "", "", perrs.Unauthorizedf("missing bearer token")
	}
	if p.parse == nil {
		return "", "", perrs.Unauthorizedf("invalid bearer token")
	}
	client, role, err := p.parse(tok)
	if err != nil {
		return "", "", perrs.Unauthorizedf("invalid bearer token")
	}
	return client, role, nil
}
