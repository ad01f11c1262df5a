package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sovereign-tools/sovereign/internal/events"
)

// AuditLogger persists bus events to JSONL files, one per UTC day.
// Writes are best-effort: a disk failure never blocks the host.
type AuditLogger struct {
	dir         string
	bus         *events.Bus
	unsubscribe func()
	now         func() time.Time
}

// NewAuditLogger creates an AuditLogger that subscribes to all bus events
// and appends them to dir/<YYYY-MM-DD>.jsonl.
func NewAuditLogger(dir string, bus *events.Bus) *AuditLogger {
	al := &AuditLogger{
		dir: dir,
		bus: bus,
		now: time.Now,
	}
	al.unsubscribe = bus.Subscribe(al.handleEvent)
	return al
}

// Close unsubscribes the logger from the event bus.
func (al *AuditLogger) Close() {
	if al.unsubscribe != nil {
		al.unsubscribe()
	}
}

func (al *AuditLogger) handleEvent(e events.Event) {
	_ = al.writeEvent(e)
}

func (al *AuditLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := al.logPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

func (al *AuditLogger) logPath() string {
	day := al.now().UTC().Format("2006-01-02")
	return filepath.Join(al.dir, day+".jsonl")
}
