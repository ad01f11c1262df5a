package plugins

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	extism "github.com/extism/go-sdk"

	"github.com/sovereign-tools/sovereign/internal/events"
	"github.com/sovereign-tools/sovereign/internal/memory"
)

// hostLogMessage is the JSON structure for sovereign.log calls.
type hostLogMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// hostEmitEvent is the JSON structure for sovereign.emit_event calls.
type hostEmitEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// hostMemoryWrite is the JSON input for sovereign.memory_remember.
type hostMemoryWrite struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

// hostMemoryKey is the JSON input for memory_recall (query) and
// memory_forget (topic).
type hostMemoryKey struct {
	Topic string `json:"topic,omitempty"`
	Query string `json:"query,omitempty"`
}

// NewHostFunctions creates the Sovereign host functions for a plugin.
// All functions live in the "sovereign" namespace. emit_event and
// get_config are always available; log and the memory_* family are gated
// by the manifest's capabilities. The memory functions share the host's
// store, so plugin writes are visible to the native tools and vice versa.
func NewHostFunctions(bus *events.Bus, store memory.Store, manifest *PluginManifest) []extism.HostFunction {
	var fns []extism.HostFunction
	pluginName := manifest.Name
	caps := manifest.Capabilities

	// sovereign.emit_event — publish an event on the bus
	emitFn := extism.NewHostFunctionWithStack(
		"emit_event",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			input, err := p.ReadBytes(stack[0])
			if err != nil {
				slog.Error("host: emit_event read", "plugin", pluginName, "error", err)
				return
			}
			var ev hostEmitEvent
			if err := json.Unmarshal(input, &ev); err != nil {
				slog.Error("host: emit_event parse", "plugin", pluginName, "error", err)
				return
			}
			bus.Publish(events.NewEvent(events.EventType(ev.Type), events.SourcePlugin, ev.Payload))
		},
		[]extism.ValueType{extism.ValueTypePTR},
		nil,
	)
	emitFn.SetNamespace("sovereign")
	fns = append(fns, emitFn)

	// sovereign.get_config — read a manifest config value
	getConfigFn := extism.NewHostFunctionWithStack(
		"get_config",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			key, err := p.ReadString(stack[0])
			if err != nil {
				slog.Error("host: get_config read key", "plugin", pluginName, "error", err)
				stack[0] = 0
				return
			}
			value := manifest.Config[key]
			offset, err := p.WriteString(value)
			if err != nil {
				slog.Error("host: get_config write result", "plugin", pluginName, "error", err)
				stack[0] = 0
				return
			}
			stack[0] = offset
		},
		[]extism.ValueType{extism.ValueTypePTR},
		[]extism.ValueType{extism.ValueTypePTR},
	)
	getConfigFn.SetNamespace("sovereign")
	fns = append(fns, getConfigFn)

	if caps.Log {
		// sovereign.log — structured logging from plugin
		logFn := extism.NewHostFunctionWithStack(
			"log",
			func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
				input, err := p.ReadBytes(stack[0])
				if err != nil {
					slog.Error("host: failed to read log input", "plugin", pluginName, "error", err)
					return
				}
				var msg hostLogMessage
				if err := json.Unmarshal(input, &msg); err != nil {
					slog.Warn("host: invalid log message", "plugin", pluginName, "raw", string(input))
					return
				}
				switch msg.Level {
				case "debug":
					slog.Debug("plugin", "name", pluginName, "msg", msg.Message)
				case "warn":
					slog.Warn("plugin", "name", pluginName, "msg", msg.Message)
				case "error":
					slog.Error("plugin", "name", pluginName, "msg", msg.Message)
				default:
					slog.Info("plugin", "name", pluginName, "msg", msg.Message)
				}
			},
			[]extism.ValueType{extism.ValueTypePTR},
			nil,
		)
		logFn.SetNamespace("sovereign")
		fns = append(fns, logFn)
	}

	if caps.Memory && store != nil {
		fns = append(fns, memoryHostFunctions(store)...)
	}

	return fns
}

// memoryHostFunctions exposes remember / recall / forget to the plugin.
// Each is JSON-in / JSON-out over plugin memory; failures come back to the
// guest as {"error": ...} instead of trapping the module.
func memoryHostFunctions(store memory.Store) []extism.HostFunction {
	call := func(name string, handler func(ctx context.Context, input []byte) (any, error)) extism.HostFunction {
		fn := extism.NewHostFunctionWithStack(
			name,
			func(ctx context.Context, p *extism.CurrentPlugin, stack []uint64) {
				input, err := p.ReadBytes(stack[0])
				if err != nil {
					slog.Error("host: read input", "func", name, "error", err)
					stack[0] = 0
					return
				}

				var out any
				result, err := handler(ctx, input)
				if err != nil {
					out = map[string]string{"error": err.Error()}
				} else {
					out = result
				}

				data, err := json.Marshal(out)
				if err != nil {
					slog.Error("host: marshal result", "func", name, "error", err)
					stack[0] = 0
					return
				}
				offset, err := p.WriteBytes(data)
				if err != nil {
					slog.Error("host: write result", "func", name, "error", err)
					stack[0] = 0
					return
				}
				stack[0] = offset
			},
			[]extism.ValueType{extism.ValueTypePTR},
			[]extism.ValueType{extism.ValueTypePTR},
		)
		fn.SetNamespace("sovereign")
		return fn
	}

	remember := call("memory_remember", func(ctx context.Context, input []byte) (any, error) {
		var req hostMemoryWrite
		if err := json.Unmarshal(input, &req); err != nil {
			return nil, err
		}
		action, err := store.Remember(ctx, req.Topic, req.Content)
		if err != nil {
			return nil, err
		}
		return map[string]string{"topic": req.Topic, "status": string(action)}, nil
	})

	recall := call("memory_recall", func(ctx context.Context, input []byte) (any, error) {
		var req hostMemoryKey
		if err := json.Unmarshal(input, &req); err != nil {
			return nil, err
		}
		entries, err := store.Recall(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		type entryJSON struct {
			Topic     string `json:"topic"`
			Content   string `json:"content"`
			UpdatedAt string `json:"updated_at"`
		}
		out := make([]entryJSON, len(entries))
		for i, e := range entries {
			out[i] = entryJSON{
				Topic:     e.Topic,
				Content:   e.Content,
				UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
			}
		}
		return map[string]any{"query": req.Query, "count": len(out), "entries": out}, nil
	})

	forget := call("memory_forget", func(ctx context.Context, input []byte) (any, error) {
		var req hostMemoryKey
		if err := json.Unmarshal(input, &req); err != nil {
			return nil, err
		}
		existed, err := store.Forget(ctx, req.Topic)
		if err != nil {
			return nil, err
		}
		status := "absent"
		if existed {
			status = "forgotten"
		}
		return map[string]string{"topic": req.Topic, "status": status}, nil
	})

	return []extism.HostFunction{remember, recall, forget}
}
