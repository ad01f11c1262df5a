package plugins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	extism "github.com/extism/go-sdk"
)

// einoTypes maps manifest parameter type names to Eino data types.
// Unknown names degrade to string rather than rejecting the manifest.
var einoTypes = map[string]schema.DataType{
	"string":  schema.String,
	"number":  schema.Number,
	"integer": schema.Integer,
	"boolean": schema.Boolean,
	"array":   schema.Array,
	"object":  schema.Object,
}

// EinoInfo renders the spec as an Eino ToolInfo so native and WASM tools
// register through the same interface.
func (s *ToolSpec) EinoInfo() *schema.ToolInfo {
	info := &schema.ToolInfo{
		Name: s.Name,
		Desc: s.Description,
	}
	if len(s.Parameters) == 0 {
		return info
	}

	params := make(map[string]*schema.ParameterInfo, len(s.Parameters))
	for name, p := range s.Parameters {
		dt, ok := einoTypes[p.Type]
		if !ok {
			dt = schema.String
		}
		params[name] = &schema.ParameterInfo{
			Type:     dt,
			Desc:     p.Description,
			Required: p.Required,
			Enum:     p.Enum,
		}
	}
	info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	return info
}

// WasmTool exposes one exported function of an Extism plugin as an
// invokable tool. A plugin exporting several functions shares one
// extism.Plugin across its WasmTools.
type WasmTool struct {
	spec   *ToolSpec
	plugin *extism.Plugin
	origin string // plugin name, for error attribution
}

func (t *WasmTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.spec.EinoInfo(), nil
}

// InvokableRun calls the plugin export with the JSON arguments. Guests
// following the sovereign PDK convention report failures as a bare
// {"error": ...} object with a zero exit code; those surface as Go errors
// so callers handle guest and host failures the same way.
func (t *WasmTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	_, output, err := t.plugin.CallWithContext(ctx, t.spec.Func, []byte(argumentsInJSON))
	if err != nil {
		return "", fmt.Errorf("plugin %q func %q: %w", t.origin, t.spec.Func, err)
	}
	if msg, failed := guestError(output); failed {
		return "", fmt.Errorf("plugin %q func %q: %s", t.origin, t.spec.Func, msg)
	}
	return string(output), nil
}

// guestError reports whether output is a JSON object whose only key is a
// non-empty "error" string.
func guestError(output []byte) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(output, &fields); err != nil || len(fields) != 1 {
		return "", false
	}
	raw, ok := fields["error"]
	if !ok {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil || msg == "" {
		return "", false
	}
	return msg, true
}

var _ tool.InvokableTool = (*WasmTool)(nil)
