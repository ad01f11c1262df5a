package plugins

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sovereign-tools/sovereign/internal/memory"
)

func newTestStore(t *testing.T) *memory.SQLiteStore {
	t.Helper()
	s := memory.New(memory.DefaultConfig(filepath.Join(t.TempDir(), "memory.db")))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRememberTool_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	remember := NewRememberTool(store, nil)
	recall := NewRecallTool(store, nil)

	out, err := remember.InvokableRun(ctx, `{"topic":"comm_style","content":"terse"}`)
	if err != nil {
		t.Fatalf("remember: %v", err)
	}

	var stored map[string]string
	if err := json.Unmarshal([]byte(out), &stored); err != nil {
		t.Fatalf("decode remember output: %v", err)
	}
	if stored["status"] != "stored" {
		t.Errorf("status = %q, want %q", stored["status"], "stored")
	}

	out, err = recall.InvokableRun(ctx, `{"query":"comm_style"}`)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}

	var result struct {
		Query   string            `json:"query"`
		Count   int               `json:"count"`
		Entries []memoryEntryJSON `json:"entries"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode recall output: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("count = %d, want 1", result.Count)
	}
	if result.Entries[0].Content != "terse" {
		t.Errorf("content = %q, want %q", result.Entries[0].Content, "terse")
	}
	if result.Entries[0].UpdatedAt == "" {
		t.Error("expected updated_at to be set")
	}
}

func TestRememberTool_OverwriteReportsUpdated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	remember := NewRememberTool(store, nil)

	if _, err := remember.InvokableRun(ctx, `{"topic":"tech_stack","content":"Go, Postgres"}`); err != nil {
		t.Fatalf("first remember: %v", err)
	}
	out, err := remember.InvokableRun(ctx, `{"topic":"tech_stack","content":"Go, Postgres, Redis"}`)
	if err != nil {
		t.Fatalf("second remember: %v", err)
	}

	var res map[string]string
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res["status"] != "updated" {
		t.Errorf("status = %q, want %q", res["status"], "updated")
	}

	recall := NewRecallTool(store, nil)
	out, err = recall.InvokableRun(ctx, `{"query":"tech"}`)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	var result struct {
		Count   int               `json:"count"`
		Entries []memoryEntryJSON `json:"entries"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("count = %d, want 1 (overwrite must not duplicate)", result.Count)
	}
	if result.Entries[0].Content != "Go, Postgres, Redis" {
		t.Errorf("content = %q, want latest write", result.Entries[0].Content)
	}
}

func TestRememberTool_EmptyTopic(t *testing.T) {
	remember := NewRememberTool(newTestStore(t), nil)

	_, err := remember.InvokableRun(context.Background(), `{"topic":"  ","content":"x"}`)
	if err == nil {
		t.Fatal("expected error for empty topic")
	}
	if !strings.Contains(err.Error(), "remember:") {
		t.Errorf("error %q should carry the tool name", err)
	}
}

func TestForgetTool_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	remember := NewRememberTool(store, nil)
	forget := NewForgetTool(store, nil)

	if _, err := remember.InvokableRun(ctx, `{"topic":"tmp","content":"x"}`); err != nil {
		t.Fatalf("remember: %v", err)
	}

	out, err := forget.InvokableRun(ctx, `{"topic":"tmp"}`)
	if err != nil {
		t.Fatalf("forget: %v", err)
	}
	var res map[string]string
	json.Unmarshal([]byte(out), &res)
	if res["status"] != "forgotten" {
		t.Errorf("status = %q, want %q", res["status"], "forgotten")
	}

	// Second forget of the same (now absent) topic still succeeds.
	out, err = forget.InvokableRun(ctx, `{"topic":"tmp"}`)
	if err != nil {
		t.Fatalf("forget absent: %v", err)
	}
	json.Unmarshal([]byte(out), &res)
	if res["status"] != "absent" {
		t.Errorf("status = %q, want %q", res["status"], "absent")
	}
}

func TestRecallTool_EmptyStoreWildcard(t *testing.T) {
	recall := NewRecallTool(newTestStore(t), nil)

	out, err := recall.InvokableRun(context.Background(), `{"query":"*"}`)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	var result struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Count != 0 {
		t.Errorf("count = %d, want 0", result.Count)
	}
}
