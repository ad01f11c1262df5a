package plugins

import (
	extism "github.com/extism/go-sdk"
)

// CapabilitySet defines what a plugin is allowed to do (deny-by-default).
type CapabilitySet struct {
	HTTP    *HTTPCapability `json:"http,omitempty"`
	Memory  bool            `json:"memory"` // access to the shared memory store
	Log     bool            `json:"log"`
	Wasm    *WasmLimit      `json:"wasm,omitempty"`
	Timeout int             `json:"timeout,omitempty"` // milliseconds
}

// HTTPCapability allows outbound network access to specific hosts.
type HTTPCapability struct {
	AllowedHosts []string `json:"allowed_hosts"`
}

// WasmLimit constrains WASM memory usage.
type WasmLimit struct {
	MaxPages uint32 `json:"max_pages"` // 1 page = 64 KiB
}

// BuildExtismManifest converts a PluginManifest into an extism.Manifest
// with deny-by-default capabilities.
func BuildExtismManifest(m *PluginManifest) extism.Manifest {
	em := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmFile{Path: m.WasmPath},
		},
		Config: m.Config,
	}

	caps := m.Capabilities

	// HTTP: deny-by-default — only allow if explicitly listed
	if caps.HTTP != nil && len(caps.HTTP.AllowedHosts) > 0 {
		em.AllowedHosts = caps.HTTP.AllowedHosts
	}

	if caps.Wasm != nil && caps.Wasm.MaxPages > 0 {
		em.Memory = &extism.ManifestMemory{
			MaxPages: caps.Wasm.MaxPages,
		}
	}

	if caps.Timeout > 0 {
		em.Timeout = uint64(caps.Timeout)
	}

	return em
}
