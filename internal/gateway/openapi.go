package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"
)

// buildOpenAPI generates an OpenAPI 3.1 document covering every
// registered tool. Chat-UI platforms import this document to discover
// the tool server.
func (s *Server) buildOpenAPI() map[string]any {
	paths := map[string]any{
		"/api/health": map[string]any{
			"get": map[string]any{
				"operationId": "health",
				"summary":     "Gateway health check",
				"responses": map[string]any{
					"200": map[string]any{"description": "Gateway is up"},
				},
			},
		},
		"/api/memories": map[string]any{
			"get": map[string]any{
				"operationId": "list_memories",
				"summary":     "List recent memory entries",
				"parameters": []any{
					map[string]any{
						"name":   "limit",
						"in":     "query",
						"schema": map[string]any{"type": "integer", "default": 50},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Recent entries, newest first"},
					"503": map[string]any{"description": "Memory store unavailable"},
				},
			},
		},
	}

	for _, name := range s.registry.ToolNames() {
		spec := s.registry.ToolSpec(name)
		if spec == nil {
			continue
		}
		paths["/api/tools/"+name] = map[string]any{
			"post": map[string]any{
				"operationId": name,
				"summary":     spec.Description,
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": spec.JSONSchema(),
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Tool result"},
					"502": map[string]any{"description": "Tool execution failed"},
				},
			},
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":       "Sovereign Gateway",
			"description": "Tool server backed by the Sovereign memory store.",
			"version":     "1.0.0",
		},
		"servers": []any{
			map[string]any{"url": fmt.Sprintf("http://%s:%d", s.host, s.port)},
		},
		"paths": paths,
	}
}

func (s *Server) handleOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc := s.buildOpenAPI()
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(doc)
}

func (s *Server) handleOpenAPIYAML(w http.ResponseWriter, r *http.Request) {
	doc := s.buildOpenAPI()
	data, err := yaml.Marshal(doc)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(data)
}
