// Package mcp bridges the tool registry onto the Model Context Protocol
// so MCP clients (editors, agents) can drive the memory store over stdio.
package mcp

import (
	"context"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sovereign-tools/sovereign/internal/plugins"
)

// NewMCPServer builds an MCP server over the registry's tools. A non-empty
// filter narrows the surface to a single tool or to one plugin's tools —
// useful when a client should only remember and recall, never forget.
func NewMCPServer(registry *plugins.ToolRegistry, filter string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "sovereign",
		Version: "0.1.0",
	}, nil)

	for _, name := range exposedTools(registry, filter) {
		spec := registry.ToolSpec(name)
		if spec == nil {
			continue
		}
		server.AddTool(declareTool(spec), callHandler(registry.Tool(name)))
		slog.Debug("mcp tool registered", "tool", name)
	}

	return server
}

// exposedTools narrows the registry's tool names by filter: empty exposes
// everything, a tool name exposes that tool, a plugin name exposes every
// tool the plugin provides.
func exposedTools(registry *plugins.ToolRegistry, filter string) []string {
	names := registry.ToolNames()
	if filter == "" {
		return names
	}

	fromPlugin := make(map[string]bool)
	for _, t := range registry.PluginTools(filter) {
		fromPlugin[t] = true
	}

	var out []string
	for _, name := range names {
		if name == filter || fromPlugin[name] {
			out = append(out, name)
		}
	}
	return out
}

// declareTool renders a tool spec as an MCP tool declaration. Read-only
// tools (recall, current_datetime) carry the matching hint so clients can
// skip confirmation prompts for pure lookups.
func declareTool(spec *plugins.ToolSpec) *mcpsdk.Tool {
	t := &mcpsdk.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		InputSchema: spec.JSONSchema(),
	}
	if spec.ReadOnly {
		t.Annotations = &mcpsdk.ToolAnnotations{ReadOnlyHint: true}
	}
	return t
}

// callHandler adapts an invokable tool to the MCP handler signature. Tool
// failures become error results rather than protocol errors, so a failed
// recall does not tear down the session.
func callHandler(invokable tool.InvokableTool) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		result, err := invokable.InvokableRun(ctx, string(req.Params.Arguments))
		if err != nil {
			return &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
			}, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result}},
		}, nil
	}
}
