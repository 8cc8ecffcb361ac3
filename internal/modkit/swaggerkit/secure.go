package swaggerkit

import (
	"strings"
	"sync"
)

var (
	secMu   sync.Mutex
	secured = map[string]map[string]bool{}
)

// MarkSecure records that method on path sits behind bearer auth
// paths are relative to the api base, e.g. "/captcha/next"
func MarkSecure(method, path string) {
	secMu.Lock()
	defer secMu.Unlock()
	m := secured[path]
	if m == nil {
		m = map[string]bool{}
		secured[path] = m
	}
	m[strings.ToLower(method)] = true
}

// IsSecure reports whether method on path was marked
func IsSecure(method, path string) bool {
	secMu.Lock()
	defer secMu.Unlock()
	return secured[path][strings.ToLower(method)]
}

// applySecurity declares the bearer scheme and requires it on every marked operation
func applySecurity(spec map[string]any) {
	secMu.Lock()
	defer secMu.Unlock()
	if len(secured) == 0 {
		return
	}
	comps := child(spec, "components")
	child(comps, "securitySchemes")["bearer"] = map[string]any{"type": "http", "scheme": "bearer"}

	paths, _ := spec["paths"].(map[string]any)
	for path, methods := range secured {
		node, _ := paths[path].(map[string]any)
		for method := range methods {
			if op, ok := node[method].(map[string]any); ok {
				op["security"] = []any{map[string]any{"bearer": []any{}}}
			}
		}
	}
}

// child returns m[key] as a map, creating it when missing
func child(m map[string]any, key string) map[string]any {
	c, ok := m[key].(map[string]any)
	if !ok {
		c = map[string]any{}
		m[key] = c
	}
	return c
}
