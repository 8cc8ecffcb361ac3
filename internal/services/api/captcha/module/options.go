package module

import (
	"crypto/subtle"
	"strconv"
	"strings"

	"captchahub/internal/modkit/httpkit"
	"captchahub/internal/platform/config"
	perr "captchahub/internal/platform/errors"
	chttp "captchahub/internal/services/api/captcha/http"
)

// Options controls access to the client API
type Options struct {
	// Tokens holds "client:token[:role]" or bare "token" entries, empty disables auth
	Tokens []string
}

// FromConfig reads CAPTCHA_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CAPTCHA_")
	return Options{Tokens: c.MayCSV("API_TOKENS", nil)}
}

type credential struct {
	client string
	role   string
	token  []byte
}

// parseCredential splits "client:token[:role]", a bare entry is an operator token
func parseCredential(i int, raw string) (credential, error) {
	parts := strings.Split(raw, ":")
	c := credential{role: chttp.RoleOperator}
	switch len(parts) {
	case 1:
		c.token = []byte(parts[0])
	case 2, 3:
		c.client, c.token = strings.TrimSpace(parts[0]), []byte(strings.TrimSpace(parts[1]))
		if len(parts) == 3 {
			c.role = strings.ToLower(strings.TrimSpace(parts[2]))
		}
	default:
		return c, perr.InvalidArgf("token entry %d: want client:token[:role]", i+1)
	}
	if len(c.token) == 0 {
		return c, perr.InvalidArgf("token entry %d: empty token", i+1)
	}
	if c.role != chttp.RoleOperator && c.role != chttp.RoleWorker {
		return c, perr.InvalidArgf("token entry %d: unknown role %q", i+1, c.role)
	}
	if c.client == "" {
		c.client = "token-" + strconv.Itoa(i+1)
	}
	return c, nil
}

// tokenPort maps bearer tokens to client ids and roles, nil when no tokens are configured
func tokenPort(tokens []string) (*httpkit.Port, error) {
	var creds []credential
	for i, raw := range tokens {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		c, err := parseCredential(i, raw)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	if len(creds) == 0 {
		return nil, nil
	}
	return httpkit.NewPortFunc(func(token string) (string, string, error) {
		got := []byte(token)
		for _, c := range creds {
			if subtle.ConstantTimeCompare(got, c.token) == 1 {
				return c.client, c.role, nil
			}
		}
		return "", "", perr.Unauthorizedf("unknown token")
	}), nil
}
