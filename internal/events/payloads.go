package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// MEMORY EVENTS
// =============================================================================

// Memory payloads carry topics and sizes, never the stored content: the
// audit log persists every payload to disk.

type MemoryStoredPayload struct {
	Topic string `json:"topic"`
	Bytes int    `json:"bytes"`
}

func (MemoryStoredPayload) EventType() EventType { return EventMemoryStored }

type MemoryUpdatedPayload struct {
	Topic string `json:"topic"`
	Bytes int    `json:"bytes"`
}

func (MemoryUpdatedPayload) EventType() EventType { return EventMemoryUpdated }

type MemoryForgottenPayload struct {
	Topic string `json:"topic"`
}

func (MemoryForgottenPayload) EventType() EventType { return EventMemoryForgotten }

type MemoryPrunedPayload struct {
	Removed int `json:"removed"`
}

func (MemoryPrunedPayload) EventType() EventType { return EventMemoryPruned }

type MemoryWipedPayload struct {
	Removed int `json:"removed"`
}

func (MemoryWipedPayload) EventType() EventType { return EventMemoryWiped }

// MemoryWritePayload picks the stored or updated payload for a write.
func MemoryWritePayload(topic string, bytes int, updated bool) EventPayload {
	if updated {
		return MemoryUpdatedPayload{Topic: topic, Bytes: bytes}
	}
	return MemoryStoredPayload{Topic: topic, Bytes: bytes}
}

// =============================================================================
// TOOL EVENTS
// =============================================================================

type ToolInvokedPayload struct {
	Tool     string        `json:"tool"`
	Plugin   string        `json:"plugin,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

func (ToolInvokedPayload) EventType() EventType { return EventToolInvoked }

type ToolFailedPayload struct {
	Tool  string `json:"tool"`
	Error string `json:"error"`
}

func (ToolFailedPayload) EventType() EventType { return EventToolFailed }

// =============================================================================
// WEB EVENTS
// =============================================================================

type WebReadPayload struct {
	URL       string `json:"url"`
	Status    int    `json:"status"`
	Bytes     int    `json:"bytes"`
	Truncated bool   `json:"truncated"`
}

func (WebReadPayload) EventType() EventType { return EventWebRead }

// =============================================================================
// MAINTENANCE EVENTS
// =============================================================================

type MaintenanceRunPayload struct {
	Pruned   int           `json:"pruned"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

func (MaintenanceRunPayload) EventType() EventType { return EventMaintenanceRun }

// =============================================================================
// PLUGIN EVENTS
// =============================================================================

type PluginLoadedPayload struct {
	Name  string   `json:"name"`
	Path  string   `json:"path,omitempty"`
	Tools []string `json:"tools,omitempty"`
}

func (PluginLoadedPayload) EventType() EventType { return EventPluginLoaded }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}
