package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sovereign-tools/sovereign/internal/events"
	"github.com/sovereign-tools/sovereign/internal/memory"
	"github.com/sovereign-tools/sovereign/internal/plugins"
)

// waitForEvents polls the bus history until at least n events are present.
func waitForEvents(bus *events.Bus, n int) {
	for i := 0; i < 200; i++ {
		if len(bus.History(100)) >= n {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
}

func newTestStore(t *testing.T) *memory.SQLiteStore {
	t.Helper()
	s := memory.New(memory.DefaultConfig(filepath.Join(t.TempDir(), "memory.db")))
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestServer(t *testing.T, store memory.Store) *Server {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	registry := plugins.NewToolRegistry(bus, store)
	if store != nil {
		if err := registry.RegisterNative("remember", plugins.NewRememberTool(store, bus), plugins.RememberManifest()); err != nil {
			t.Fatalf("register remember: %v", err)
		}
	}
	if err := registry.RegisterNative("current_datetime", plugins.NewClockTool(), plugins.ClockManifest()); err != nil {
		t.Fatalf("register clock: %v", err)
	}

	srv := NewServer(bus, registry, store, "localhost", 0)
	t.Cleanup(func() { srv.hub.Close() })
	return srv
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status %q, got %q", "ok", body["status"])
	}
}

func TestHandleTools(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []toolJSON
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(body))
	}
	// ToolNames is sorted.
	if body[0].Name != "current_datetime" || body[1].Name != "remember" {
		t.Fatalf("unexpected tool names: %q, %q", body[0].Name, body[1].Name)
	}
	if _, ok := body[1].Parameters["topic"]; !ok {
		t.Fatalf("expected remember to expose a topic parameter")
	}
}

func TestHandleInvoke(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(t, store)

	body := strings.NewReader(`{"topic": "language", "content": "prefers Go"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/tools/remember", body)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID         string          `json:"id"`
		Tool       string          `json:"tool"`
		DurationMS int64           `json:"duration_ms"`
		Result     json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.ID == "" {
		t.Fatalf("expected a non-empty invocation id")
	}
	if resp.Tool != "remember" {
		t.Fatalf("expected tool %q, got %q", "remember", resp.Tool)
	}

	var result map[string]string
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result["status"] != "stored" {
		t.Fatalf("expected status %q, got %q", "stored", result["status"])
	}

	entry, err := store.Get(context.Background(), "language")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry == nil || entry.Content != "prefers Go" {
		t.Fatalf("expected stored entry, got %+v", entry)
	}
}

func TestHandleInvoke_UnknownTool(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tools/nope", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestHandleInvoke_BadBody(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tools/current_datetime", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestHandleInvoke_ToolFailure(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	// Missing topic makes remember fail.
	req := httptest.NewRequest(http.MethodPost, "/api/tools/remember", strings.NewReader(`{"content": "orphan"}`))
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected an error message")
	}

	waitForEvents(srv.bus, 1)
	history := srv.bus.History(10)
	found := false
	for _, e := range history {
		if e.Type == events.EventToolFailed {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a tool.failed event in history")
	}
}

func TestHandleMemories(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(t, store)

	ctx := context.Background()
	if _, err := store.Remember(ctx, "alpha", "first"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if _, err := store.Remember(ctx, "beta", "second"); err != nil {
		t.Fatalf("remember: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/memories?limit=1", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []memoryJSON
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(body))
	}
}

func TestHandleMemories_NoStore(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/memories", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
}

func TestHandleEvents_WithHistory(t *testing.T) {
	srv := newTestServer(t, nil)

	srv.bus.Publish(events.NewTypedEvent(events.SourceGateway, events.ToolInvokedPayload{Tool: "current_datetime"}))
	waitForEvents(srv.bus, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected 1 event, got %d", len(body))
	}
	if body[0]["type"] != string(events.EventToolInvoked) {
		t.Fatalf("expected type %q, got %v", events.EventToolInvoked, body[0]["type"])
	}
}

func TestOpenAPIJSON(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var doc map[string]any
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc["openapi"] != "3.1.0" {
		t.Fatalf("expected openapi 3.1.0, got %v", doc["openapi"])
	}

	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		t.Fatalf("expected a paths object")
	}
	if _, ok := paths["/api/tools/remember"]; !ok {
		t.Fatalf("expected a path for the remember tool")
	}
	if _, ok := paths["/api/memories"]; !ok {
		t.Fatalf("expected a path for memories")
	}
}

func TestOpenAPIYAML(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if doc["openapi"] != "3.1.0" {
		t.Fatalf("expected openapi 3.1.0, got %v", doc["openapi"])
	}
}
