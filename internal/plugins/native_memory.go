package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/sovereign-tools/sovereign/internal/events"
	"github.com/sovereign-tools/sovereign/internal/memory"
)

// memoryEntryJSON is the wire shape of one recalled entry.
type memoryEntryJSON struct {
	Topic     string `json:"topic"`
	Content   string `json:"content"`
	UpdatedAt string `json:"updated_at"`
}

// publish is nil-bus safe: CLI one-shot invocations run without a bus.
func publish(bus *events.Bus, source events.EventSource, payload events.EventPayload) {
	if bus != nil {
		bus.Publish(events.NewTypedEvent(source, payload))
	}
}

// =============================================================================
// remember
// =============================================================================

// RememberTool persists a fact under a topic, overwriting any previous
// content for that topic.
type RememberTool struct {
	store memory.Store
	bus   *events.Bus
}

// NewRememberTool creates a new remember tool.
func NewRememberTool(store memory.Store, bus *events.Bus) *RememberTool {
	return &RememberTool{store: store, bus: bus}
}

// RememberManifest returns the plugin manifest for the remember tool.
func RememberManifest() *PluginManifest {
	return &PluginManifest{
		Name:        "remember",
		Description: "Persist a fact or preference under a topic",
		Provider:    "native",
		Tools: []ToolSpec{
			{
				Name:        "remember",
				Description: "Store a fact, preference, or correction under a short topic key. Writing to an existing topic replaces its content entirely.",
				Parameters: map[string]ParamSpec{
					"topic": {
						Type:        "string",
						Description: "Short unique key identifying the fact (e.g. comm_style, tech_stack)",
						Required:    true,
					},
					"content": {
						Type:        "string",
						Description: "The full content to remember; replaces any previous content for the topic",
						Required:    true,
					},
				},
			},
		},
	}
}

type rememberInput struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

func (t *RememberTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return RememberManifest().Tools[0].EinoInfo(), nil
}

func (t *RememberTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input rememberInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("remember: parse input: %w", err)
	}
	if strings.TrimSpace(input.Topic) == "" {
		return "", fmt.Errorf("remember: topic is required")
	}

	action, err := t.store.Remember(ctx, input.Topic, input.Content)
	if err != nil {
		publish(t.bus, events.SourceTool, events.ToolFailedPayload{Tool: "remember", Error: err.Error()})
		return "", fmt.Errorf("remember: %w", err)
	}

	publish(t.bus, events.SourceTool,
		events.MemoryWritePayload(input.Topic, len(input.Content), action == memory.ActionUpdated))

	result, _ := json.Marshal(map[string]string{
		"topic":  strings.TrimSpace(input.Topic),
		"status": string(action),
	})
	return string(result), nil
}

var _ tool.InvokableTool = (*RememberTool)(nil)

// =============================================================================
// recall
// =============================================================================

// RecallTool looks up stored entries by query.
type RecallTool struct {
	store memory.Store
	bus   *events.Bus
}

// NewRecallTool creates a new recall tool.
func NewRecallTool(store memory.Store, bus *events.Bus) *RecallTool {
	return &RecallTool{store: store, bus: bus}
}

// RecallManifest returns the plugin manifest for the recall tool.
func RecallManifest() *PluginManifest {
	return &PluginManifest{
		Name:        "recall",
		Description: "Look up remembered facts by topic or content",
		Provider:    "native",
		Tools: []ToolSpec{
			{
				Name:        "recall",
				Description: "Retrieve stored facts. Pass \"*\" for everything, an exact topic, or a fragment that matches topics or content case-insensitively. Results are most-recently-updated first.",
				ReadOnly:    true,
				Parameters: map[string]ParamSpec{
					"query": {
						Type:        "string",
						Description: "Topic, substring, or \"*\" for all entries",
						Required:    true,
					},
				},
			},
		},
	}
}

type recallInput struct {
	Query string `json:"query"`
}

func (t *RecallTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return RecallManifest().Tools[0].EinoInfo(), nil
}

func (t *RecallTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input recallInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("recall: parse input: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("recall: query is required")
	}

	entries, err := t.store.Recall(ctx, input.Query)
	if err != nil {
		publish(t.bus, events.SourceTool, events.ToolFailedPayload{Tool: "recall", Error: err.Error()})
		return "", fmt.Errorf("recall: %w", err)
	}

	out := make([]memoryEntryJSON, len(entries))
	for i, e := range entries {
		out[i] = memoryEntryJSON{
			Topic:     e.Topic,
			Content:   e.Content,
			UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
		}
	}

	result, err := json.Marshal(map[string]any{
		"query":   strings.TrimSpace(input.Query),
		"count":   len(out),
		"entries": out,
	})
	if err != nil {
		return "", fmt.Errorf("recall: marshal: %w", err)
	}
	return string(result), nil
}

var _ tool.InvokableTool = (*RecallTool)(nil)

// =============================================================================
// forget
// =============================================================================

// ForgetTool removes the entry stored under an exact topic.
type ForgetTool struct {
	store memory.Store
	bus   *events.Bus
}

// NewForgetTool creates a new forget tool.
func NewForgetTool(store memory.Store, bus *events.Bus) *ForgetTool {
	return &ForgetTool{store: store, bus: bus}
}

// ForgetManifest returns the plugin manifest for the forget tool.
func ForgetManifest() *PluginManifest {
	return &PluginManifest{
		Name:        "forget",
		Description: "Remove a remembered fact",
		Provider:    "native",
		Tools: []ToolSpec{
			{
				Name:        "forget",
				Description: "Permanently remove the entry stored under the exact topic. Forgetting a topic that does not exist still succeeds.",
				Parameters: map[string]ParamSpec{
					"topic": {
						Type:        "string",
						Description: "The exact topic key to remove",
						Required:    true,
					},
				},
			},
		},
	}
}

type forgetInput struct {
	Topic string `json:"topic"`
}

func (t *ForgetTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return ForgetManifest().Tools[0].EinoInfo(), nil
}

func (t *ForgetTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input forgetInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("forget: parse input: %w", err)
	}
	if strings.TrimSpace(input.Topic) == "" {
		return "", fmt.Errorf("forget: topic is required")
	}

	existed, err := t.store.Forget(ctx, input.Topic)
	if err != nil {
		publish(t.bus, events.SourceTool, events.ToolFailedPayload{Tool: "forget", Error: err.Error()})
		return "", fmt.Errorf("forget: %w", err)
	}

	status := "absent"
	if existed {
		status = "forgotten"
		publish(t.bus, events.SourceTool, events.MemoryForgottenPayload{Topic: strings.TrimSpace(input.Topic)})
	}

	result, _ := json.Marshal(map[string]string{
		"topic":  strings.TrimSpace(input.Topic),
		"status": status,
	})
	return string(result), nil
}

var _ tool.InvokableTool = (*ForgetTool)(nil)
