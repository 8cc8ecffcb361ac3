package swaggerkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"captchahub/internal/platform/config"
)

const apiBase = "/api/v1"

// serveDocJSON serves the generated document after render
func serveDocJSON() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body, err := render(docReader(), config.New().Prefix("CORE_API_").MayString("DOCS_TITLE_SUFFIX", ""))
		if err != nil {
			http.Error(w, "spec parse error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(body)
	}
}

// render lifts raw to OAS 3.0.3, adds the shared error responses to every operation
// and requires bearer auth where MarkSecure was called
func render(raw, titleSuffix string) ([]byte, error) {
	var spec map[string]any
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, fmt.Errorf("swagger doc: %w", err)
	}

	// the ui cannot render 3.1
	delete(spec, "swagger")
	if v, _ := spec["openapi"].(string); !strings.HasPrefix(v, "3.0") {
		spec["openapi"] = "3.0.3"
	}
	if _, ok := spec["servers"]; !ok {
		spec["servers"] = []any{map[string]any{"url": apiBase}}
	}
	if titleSuffix != "" {
		info := child(spec, "info")
		if title, ok := info["title"].(string); ok {
			info["title"] = title + " " + titleSuffix
		}
	}

	child(child(spec, "components"), "schemas")["ErrorResponse"] = errorSchema
	paths, _ := spec["paths"].(map[string]any)
	for _, p := range paths {
		ops, _ := p.(map[string]any)
		for _, op := range ops {
			o, ok := op.(map[string]any)
			if !ok {
				continue
			}
			responses := child(o, "responses")
			for status, resp := range errorResponses {
				if _, set := responses[status]; !set {
					responses[status] = resp
				}
			}
		}
	}
	applySecurity(spec)
	return json.Marshal(spec)
}

var errorSchema = map[string]any{
	"type":        "object",
	"description": "Error envelope",
	"properties": map[string]any{
		"status_code": map[string]any{"type": "integer", "format": "int32"},
		"status":      map[string]any{"type": "string"},
		"code":        map[string]any{"type": "integer", "format": "int32"},
		"error":       map[string]any{"type": "string"},
		"request_id":  map[string]any{"type": "string"},
	},
	"required": []any{"status_code", "status"},
}

func errorExample(status, code int, msg string) map[string]any {
	text := http.StatusText(status)
	return map[string]any{
		"description": text,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/ErrorResponse"},
				"example": map[string]any{
					"status_code": status,
					"status":      text,
					"code":        code,
					"error":       msg,
				},
			},
		},
	}
}

var errorResponses = map[string]any{
	"400": errorExample(http.StatusBadRequest, 8, "id must be a task id"),
	"500": errorExample(http.StatusInternalServerError, 1, "panic recovered"),
}
