package backup

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"filippo.io/age"

	"github.com/sovereign-tools/sovereign/internal/memory"
)

// ageHeader starts every age v1 file; imports sniff it to decide
// whether to decrypt.
const ageHeader = "age-encryption.org/v1"

// Source is the store side of an export.
type Source interface {
	Recall(ctx context.Context, query string) ([]memory.Entry, error)
}

// Sink is the store side of an import.
type Sink interface {
	Restore(ctx context.Context, entries []memory.Entry) (int, error)
}

// entryLine is one JSONL record. Timestamps round-trip as RFC 3339.
type entryLine struct {
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Export writes every entry in the store to w as JSONL. When recipient
// is non-nil the whole stream is age-encrypted.
func Export(ctx context.Context, store Source, w io.Writer, recipient *age.X25519Recipient) (int, error) {
	entries, err := store.Recall(ctx, memory.Wildcard)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	out := w
	var enc io.WriteCloser
	if recipient != nil {
		enc, err = age.Encrypt(w, recipient)
		if err != nil {
			return 0, fmt.Errorf("export: age encrypt: %w", err)
		}
		out = enc
	}

	encoder := json.NewEncoder(out)
	for _, e := range entries {
		line := entryLine{
			Topic:     e.Topic,
			Content:   e.Content,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		}
		if err := encoder.Encode(line); err != nil {
			return 0, fmt.Errorf("export: encode %q: %w", e.Topic, err)
		}
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return 0, fmt.Errorf("export: age close: %w", err)
		}
	}
	return len(entries), nil
}

// Import reads JSONL from r and restores the entries into the store.
// An age-encrypted stream is detected by its header and decrypted with
// identity; a nil identity on encrypted input is an error.
func Import(ctx context.Context, store Sink, r io.Reader, identity *age.X25519Identity) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("import: read: %w", err)
	}

	if bytes.HasPrefix(data, []byte(ageHeader)) {
		if identity == nil {
			return 0, fmt.Errorf("import: input is age-encrypted but no key is available")
		}
		dec, err := age.Decrypt(bytes.NewReader(data), identity)
		if err != nil {
			return 0, fmt.Errorf("import: age decrypt: %w", err)
		}
		data, err = io.ReadAll(dec)
		if err != nil {
			return 0, fmt.Errorf("import: read decrypted: %w", err)
		}
	}

	var entries []memory.Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var el entryLine
		if err := json.Unmarshal(line, &el); err != nil {
			return 0, fmt.Errorf("import: line %d: %w", lineNo, err)
		}
		if el.Topic == "" {
			return 0, fmt.Errorf("import: line %d: empty topic", lineNo)
		}
		entries = append(entries, memory.Entry{
			Topic:     el.Topic,
			Content:   el.Content,
			CreatedAt: el.CreatedAt,
			UpdatedAt: el.UpdatedAt,
		})
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("import: scan: %w", err)
	}

	n, err := store.Restore(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	return n, nil
}
