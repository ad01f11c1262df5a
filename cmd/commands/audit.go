package commands

import (
	"github.com/sovereign-tools/sovereign/internal/config"
	"github.com/sovereign-tools/sovereign/internal/events"
	"github.com/sovereign-tools/sovereign/internal/storage"
)

// auditCLI records a destructive one-shot operation in the audit log.
// One-shot commands carry no long-lived bus, so a throwaway bus delivers
// the event to the audit logger; Close blocks until it lands on disk.
func auditCLI(cfg *config.Config, payload events.EventPayload) {
	if cfg.Events.AuditDisabled {
		return
	}

	bus := events.NewBus(4)
	audit := storage.NewAuditLogger(cfg.Events.AuditDir, bus)
	bus.Publish(events.NewTypedEvent(events.SourceCLI, payload))
	bus.Close()
	audit.Close()
}
