package plugins

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sovereign-tools/sovereign/internal/config"
)

func TestExtractText_BasicHTML(t *testing.T) {
	html := `<html><head><title>Test</title></head><body><h1>Hello</h1><p>World</p></body></html>`
	got := extractText(html)
	if got != "Test\nHello\nWorld" {
		t.Errorf("expected 'Test\\nHello\\nWorld', got %q", got)
	}
}

func TestExtractText_NoiseContainers(t *testing.T) {
	html := `<nav>Home | About</nav><p>Before</p><script>var x=1;</script><style>.a{color:red}</style>` +
		`<aside>Ad block</aside><p>After</p><footer>© 2026</footer>`
	got := extractText(html)
	if got != "Before\nAfter" {
		t.Errorf("expected 'Before\\nAfter', got %q", got)
	}
}

func TestExtractText_NestedNoise(t *testing.T) {
	html := `<div><nav>Top<nav>Inner</nav>Bottom</nav><p>Content</p></div>`
	got := extractText(html)
	if got != "Content" {
		t.Errorf("expected 'Content', got %q", got)
	}
}

func TestExtractText_TagNameBoundary(t *testing.T) {
	// <navigation-menu> is a custom element, not the nav noise tag.
	html := `<navigation-menu>Visible</navigation-menu>`
	got := extractText(html)
	if got != "Visible" {
		t.Errorf("expected 'Visible', got %q", got)
	}
}

func TestExtractText_WhitespaceAndEntities(t *testing.T) {
	html := `<p>A &amp; B    &lt; C</p>`
	got := extractText(html)
	if got != "A & B < C" {
		t.Errorf("expected 'A & B < C', got %q", got)
	}
}

func TestExtractTitle(t *testing.T) {
	if got := extractTitle(`<title> My  Page </title>`); got != "My  Page" {
		t.Errorf("extractTitle = %q, want %q", got, "My  Page")
	}
	if got := extractTitle(`<p>no title here</p>`); got != "Untitled" {
		t.Errorf("extractTitle = %q, want %q", got, "Untitled")
	}
}

func TestExtractMetaDescription(t *testing.T) {
	html := `<meta property="og:description" content="og desc">` +
		`<meta name="description" content="plain desc">`
	if got := extractMetaDescription(html); got != "plain desc" {
		t.Errorf("expected name=description to win, got %q", got)
	}

	ogOnly := `<meta property="og:description" content="og desc">`
	if got := extractMetaDescription(ogOnly); got != "og desc" {
		t.Errorf("expected og:description fallback, got %q", got)
	}
}

func TestHostAllowed(t *testing.T) {
	tool := &ReadWebpageTool{
		allowedHosts: []string{"*.example.com", "docs.internal"},
		blockedHosts: []string{"private.example.com"},
	}

	cases := []struct {
		host string
		want bool
	}{
		{"api.example.com", true},
		{"docs.internal", true},
		{"private.example.com", false}, // blocked wins over allowed
		{"other.org", false},
	}
	for _, c := range cases {
		if got := tool.hostAllowed(c.host); got != c.want {
			t.Errorf("hostAllowed(%q) = %v, want %v", c.host, got, c.want)
		}
	}

	open := &ReadWebpageTool{blockedHosts: []string{"evil.test"}}
	if !open.hostAllowed("anything.org") {
		t.Error("empty allowlist should permit all hosts")
	}
	if open.hostAllowed("evil.test") {
		t.Error("blocked host should be refused even with empty allowlist")
	}
}

func newReaderTool(t *testing.T, cfg config.ReaderConfig) *ReadWebpageTool {
	t.Helper()
	return NewReadWebpageTool(cfg, nil)
}

func TestReadWebpage_HTMLPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Article</title>` +
			`<meta name="description" content="A short summary"></head>` +
			`<body><nav>menu</nav><article><p>First paragraph.</p><p>Second paragraph.</p></article></body></html>`))
	}))
	defer srv.Close()

	reader := newReaderTool(t, config.ReaderConfig{MaxChars: 8000})

	out, err := reader.InvokableRun(context.Background(), `{"url":"`+srv.URL+`"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}

	var result readWebpageOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if result.Title != "Article" {
		t.Errorf("Title = %q, want %q", result.Title, "Article")
	}
	if result.Description != "A short summary" {
		t.Errorf("Description = %q, want %q", result.Description, "A short summary")
	}
	if result.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", result.Status)
	}
	if strings.Contains(result.Content, "menu") {
		t.Errorf("nav content should be stripped, got %q", result.Content)
	}
	if !strings.Contains(result.Content, "First paragraph.") || !strings.Contains(result.Content, "Second paragraph.") {
		t.Errorf("article text missing from %q", result.Content)
	}
	if result.Truncated {
		t.Error("small page should not be truncated")
	}
}

func TestReadWebpage_Truncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>" + strings.Repeat("lorem ipsum ", 500) + "</p>"))
	}))
	defer srv.Close()

	reader := newReaderTool(t, config.ReaderConfig{MaxChars: 100})

	out, err := reader.InvokableRun(context.Background(), `{"url":"`+srv.URL+`"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}

	var result readWebpageOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if !result.Truncated {
		t.Fatal("expected truncated result")
	}
	if !strings.Contains(result.Content, "[truncated at 100 chars") {
		t.Errorf("expected truncation marker in %q", result.Content)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"}, // é is 2 bytes; cutting at 2 would split it
		{"日本語", 4, "日"},   // each rune is 3 bytes
		{"日本語", 6, "日本"},
		{"", 5, ""},
	}

	for _, tt := range tests {
		got := truncateRunes(tt.s, tt.max)
		if got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateRunes(%q, %d) produced invalid UTF-8", tt.s, tt.max)
		}
	}
}

func TestReadWebpage_TruncationKeepsRunesWhole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		// Every rune is 3 bytes, so a 100-byte cut always lands mid-rune.
		w.Write([]byte("<p>" + strings.Repeat("記憶", 200) + "</p>"))
	}))
	defer srv.Close()

	reader := newReaderTool(t, config.ReaderConfig{MaxChars: 100})

	out, err := reader.InvokableRun(context.Background(), `{"url":"`+srv.URL+`"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}

	var result readWebpageOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if !result.Truncated {
		t.Fatal("expected truncated result")
	}
	if !utf8.ValidString(result.Content) {
		t.Error("truncated content is not valid UTF-8")
	}
	if strings.ContainsRune(result.Content, utf8.RuneError) {
		t.Errorf("truncated content contains a replacement character: %q", result.Content)
	}
}

func TestReadWebpage_NonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"raw": true}`))
	}))
	defer srv.Close()

	reader := newReaderTool(t, config.ReaderConfig{MaxChars: 8000})

	out, err := reader.InvokableRun(context.Background(), `{"url":"`+srv.URL+`"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}

	var result readWebpageOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if !strings.Contains(result.Title, "Non-HTML content") {
		t.Errorf("Title = %q, want non-HTML marker", result.Title)
	}
	if result.Content != `{"raw": true}` {
		t.Errorf("Content = %q, want raw preview", result.Content)
	}
}

func TestReadWebpage_RejectsBadInput(t *testing.T) {
	reader := newReaderTool(t, config.ReaderConfig{})

	if _, err := reader.InvokableRun(context.Background(), `{}`); err == nil {
		t.Error("expected error for missing url")
	}
	if _, err := reader.InvokableRun(context.Background(), `{"url":"ftp://example.com/x"}`); err == nil {
		t.Error("expected error for non-http scheme")
	}
}

func TestReadWebpage_BlockedHost(t *testing.T) {
	reader := newReaderTool(t, config.ReaderConfig{BlockedHosts: []string{"127.0.0.1"}})

	_, err := reader.InvokableRun(context.Background(), `{"url":"http://127.0.0.1:9/x"}`)
	if err == nil || !strings.Contains(err.Error(), "not permitted") {
		t.Fatalf("expected blocked-host error, got %v", err)
	}
}
