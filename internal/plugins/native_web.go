package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/sovereign-tools/sovereign/internal/config"
	"github.com/sovereign-tools/sovereign/internal/events"
)

const defaultUserAgent = "Sovereign/1.0 (read_webpage)"

// maxBodyBytes caps how much of a response is read before extraction.
const maxBodyBytes = 2 << 20 // 2 MiB

// ReadWebpageTool fetches a URL and extracts its readable content.
type ReadWebpageTool struct {
	client       *http.Client
	maxChars     int
	userAgent    string
	allowedHosts []string
	blockedHosts []string
	bus          *events.Bus
}

// NewReadWebpageTool creates a read_webpage tool with the given config.
func NewReadWebpageTool(cfg config.ReaderConfig, bus *events.Bus) *ReadWebpageTool {
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 8000
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &ReadWebpageTool{
		client:       &http.Client{Timeout: timeout},
		maxChars:     maxChars,
		userAgent:    ua,
		allowedHosts: cfg.AllowedHosts,
		blockedHosts: cfg.BlockedHosts,
		bus:          bus,
	}
}

// ReadWebpageManifest returns the plugin manifest for read_webpage.
func ReadWebpageManifest() *PluginManifest {
	return &PluginManifest{
		Name:        "read_webpage",
		Description: "Deep web page reader: fetches, cleans, and extracts article content from URLs",
		Provider:    "native",
		Capabilities: CapabilitySet{
			HTTP: &HTTPCapability{AllowedHosts: []string{"*"}},
		},
		Tools: []ToolSpec{
			{
				Name:        "read_webpage",
				Description: "Fetch a web page and extract its readable content. Use this for deep reading of articles, documentation, blog posts, technical references, or any URL where you need the full text beyond what a search snippet provides.",
				ReadOnly:    true,
				Parameters: map[string]ParamSpec{
					"url": {
						Type:        "string",
						Description: "The full URL to read (must start with http:// or https://)",
						Required:    true,
					},
				},
			},
		},
	}
}

type readWebpageInput struct {
	URL string `json:"url"`
}

type readWebpageOutput struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content"`
	Truncated   bool   `json:"truncated"`
}

func (t *ReadWebpageTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return ReadWebpageManifest().Tools[0].EinoInfo(), nil
}

func (t *ReadWebpageTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input readWebpageInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("read_webpage: parse input: %w", err)
	}
	if input.URL == "" {
		return "", fmt.Errorf("read_webpage: url is required")
	}
	if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
		return "", fmt.Errorf("read_webpage: invalid url %q: must start with http:// or https://", input.URL)
	}

	parsed, err := url.Parse(input.URL)
	if err != nil {
		return "", fmt.Errorf("read_webpage: invalid url: %w", err)
	}
	if !t.hostAllowed(parsed.Hostname()) {
		return "", fmt.Errorf("read_webpage: host %q is not permitted", parsed.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return "", fmt.Errorf("read_webpage: create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*")

	resp, err := t.client.Do(req)
	if err != nil {
		publish(t.bus, events.SourceTool, events.ToolFailedPayload{Tool: "read_webpage", Error: err.Error()})
		return "", fmt.Errorf("read_webpage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("read_webpage: HTTP %d fetching %s", resp.StatusCode, input.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read_webpage: read body: %w", err)
	}

	out := readWebpageOutput{
		URL:    resp.Request.URL.String(),
		Status: resp.StatusCode,
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "html") {
		// Non-HTML: raw preview, no extraction
		preview := string(body)
		if len(preview) > t.maxChars {
			preview = truncateRunes(preview, t.maxChars)
			out.Truncated = true
		}
		out.Title = fmt.Sprintf("Non-HTML content (%s)", contentType)
		out.Content = preview
	} else {
		page := string(body)
		out.Title = extractTitle(page)
		out.Description = extractMetaDescription(page)

		text := extractText(page)
		if len(text) > t.maxChars {
			text = truncateRunes(text, t.maxChars) +
				fmt.Sprintf("\n\n[truncated at %d chars; full page was larger]", t.maxChars)
			out.Truncated = true
		}
		out.Content = text
	}

	publish(t.bus, events.SourceTool, events.WebReadPayload{
		URL:       out.URL,
		Status:    out.Status,
		Bytes:     len(out.Content),
		Truncated: out.Truncated,
	})

	result, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("read_webpage: marshal result: %w", err)
	}
	return string(result), nil
}

// truncateRunes cuts s at the last rune boundary at or before max bytes,
// so a multibyte character is never split mid-sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// hostAllowed applies the configured glob patterns: blocked patterns win,
// an empty allowlist means every host is permitted.
func (t *ReadWebpageTool) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, pattern := range t.blockedHosts {
		if ok, _ := doublestar.Match(strings.ToLower(pattern), host); ok {
			return false
		}
	}
	if len(t.allowedHosts) == 0 {
		return true
	}
	for _, pattern := range t.allowedHosts {
		if ok, _ := doublestar.Match(strings.ToLower(pattern), host); ok {
			return true
		}
	}
	return false
}

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaRe  = regexp.MustCompile(`(?is)<meta\s+[^>]*>`)
	attrRe  = regexp.MustCompile(`(?is)([a-z:-]+)\s*=\s*"([^"]*)"`)
)

// extractTitle returns the page title, or "Untitled" when absent.
func extractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return "Untitled"
	}
	title := strings.TrimSpace(decodeEntities(m[1]))
	if title == "" {
		return "Untitled"
	}
	return title
}

// extractMetaDescription returns the meta description, preferring
// name="description" and falling back to property="og:description".
func extractMetaDescription(html string) string {
	var ogDesc string
	for _, tag := range metaRe.FindAllString(html, -1) {
		attrs := map[string]string{}
		for _, kv := range attrRe.FindAllStringSubmatch(tag, -1) {
			attrs[strings.ToLower(kv[1])] = kv[2]
		}
		switch {
		case strings.EqualFold(attrs["name"], "description"):
			return strings.TrimSpace(decodeEntities(attrs["content"]))
		case strings.EqualFold(attrs["property"], "og:description") && ogDesc == "":
			ogDesc = strings.TrimSpace(decodeEntities(attrs["content"]))
		}
	}
	return ogDesc
}

// noiseTags are container elements whose entire contents are skipped.
var noiseTags = []string{"script", "style", "nav", "footer", "header", "aside", "iframe", "noscript", "svg"}

// blockTags start a new output line when opened or closed.
var blockTags = []string{"p>", "p ", "div>", "div ", "br>", "br/>", "br />",
	"h1>", "h1 ", "h2>", "h2 ", "h3>", "h3 ", "h4>", "h4 ",
	"li>", "li ", "tr>", "tr ", "td>", "td "}

// extractText strips HTML and returns the page's readable text, one line
// per block element. Noise containers (navigation, scripts, chrome) are
// dropped wholesale. Simple state-machine approach — no external
// dependency needed.
func extractText(html string) string {
	var sb strings.Builder
	sb.Grow(len(html) / 2)

	inTag := false
	skipTag := "" // inside a noise container until its close tag
	skipDepth := 0
	lastSpace := true

	lower := strings.ToLower(html)

	for i := 0; i < len(html); {
		r, size := utf8.DecodeRuneInString(html[i:])

		if skipTag != "" {
			if tagBoundary(lower[i:], "</"+skipTag) {
				skipDepth--
				if skipDepth == 0 {
					end := strings.IndexByte(html[i:], '>')
					if end < 0 {
						break
					}
					i += end + 1
					skipTag = ""
					continue
				}
				i += len(skipTag) + 2
				continue
			}
			if tagBoundary(lower[i:], "<"+skipTag) {
				skipDepth++
				i += len(skipTag) + 1
				continue
			}
			i += size
			continue
		}

		if r == '<' {
			rest := lower[i:]
			for _, nt := range noiseTags {
				if tagBoundary(rest, "<"+nt) {
					skipTag = nt
					skipDepth = 1
					break
				}
			}
			if skipTag != "" {
				i += size
				continue
			}

			inTag = true

			// Block-level tags → newline
			if len(rest) > 1 {
				tag := rest[1:]
				for _, bt := range blockTags {
					if strings.HasPrefix(tag, bt) || strings.HasPrefix(tag, "/"+bt[:len(bt)-1]) {
						if !lastSpace {
							sb.WriteByte('\n')
							lastSpace = true
						}
						break
					}
				}
			}

			i += size
			continue
		}

		if r == '>' {
			inTag = false
			i += size
			continue
		}

		if inTag {
			i += size
			continue
		}

		// HTML entities
		if r == '&' {
			end := strings.IndexByte(html[i:], ';')
			if end > 0 && end < 10 {
				entity := html[i : i+end+1]
				if decoded, ok := entityTable[entity]; ok {
					sb.WriteString(decoded)
				} else {
					sb.WriteString(entity)
				}
				lastSpace = false
				i += end + 1
				continue
			}
		}

		// Collapse whitespace within a line
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				sb.WriteByte(' ')
				lastSpace = true
			}
			i += size
			continue
		}

		sb.WriteRune(r)
		lastSpace = false
		i += size
	}

	// Drop blank and whitespace-only lines
	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// tagBoundary reports whether s starts with prefix followed by the end of
// a tag name, so "nav" never matches "<navbar...>".
func tagBoundary(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	if len(s) == len(prefix) {
		return false
	}
	switch s[len(prefix)] {
	case '>', ' ', '\t', '\n', '/':
		return true
	}
	return false
}

var entityTable = map[string]string{
	"&nbsp;": " ", "&#160;": " ",
	"&amp;": "&", "&lt;": "<", "&gt;": ">",
	"&quot;": `"`, "&#39;": "'", "&apos;": "'",
}

func decodeEntities(s string) string {
	for entity, decoded := range entityTable {
		s = strings.ReplaceAll(s, entity, decoded)
	}
	return s
}

var _ tool.InvokableTool = (*ReadWebpageTool)(nil)
