// Package plugins provides the Sovereign tool system: native tools backed
// by the memory store, and third-party WASM tools loaded through Extism.
package plugins

import (
	"fmt"
	"os"
	"sort"

	"github.com/marcozac/go-jsonc"
)

// PluginManifest describes a plugin's metadata, capabilities, and tools.
type PluginManifest struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Provider     string            `json:"provider"`  // "extism" or "native"
	WasmPath     string            `json:"wasm_path"` // path to .wasm file (extism only)
	Capabilities CapabilitySet     `json:"capabilities"`
	Tools        []ToolSpec        `json:"tools"` // 1..N tools per plugin
	Config       map[string]string `json:"config"`
}

// ToolSpec describes a single tool interface exposed by a plugin.
type ToolSpec struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters"`
	Func        string               `json:"func,omitempty"`      // WASM export name (default: "handle")
	ReadOnly    bool                 `json:"read_only,omitempty"` // never mutates the store or the outside world
}

// JSONSchema renders the tool's parameters as a JSON Schema object for
// OpenAPI documents and MCP tool declarations. Required names are sorted
// so the rendered document is stable.
func (s *ToolSpec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	var required []string

	for name, p := range s.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop

		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Type        string   `json:"type"` // "string", "number", "boolean", "integer"
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// LoadManifest reads and parses a JSONC manifest file.
func LoadManifest(path string) (*PluginManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m PluginManifest
	if err := jsonc.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: name is required", path)
	}
	if len(m.Tools) == 0 {
		return nil, fmt.Errorf("manifest %s: at least one tool is required", path)
	}

	for i := range m.Tools {
		// Default Func to "handle"
		if m.Tools[i].Func == "" {
			m.Tools[i].Func = "handle"
		}
		// Default Name to manifest name (only if single tool)
		if m.Tools[i].Name == "" {
			if len(m.Tools) == 1 {
				m.Tools[i].Name = m.Name
			} else {
				return nil, fmt.Errorf("manifest %s: tool at index %d must have a name", path, i)
			}
		}
	}

	return &m, nil
}
