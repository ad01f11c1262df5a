package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/sovereign-tools/sovereign/internal/events"
	"github.com/sovereign-tools/sovereign/internal/memory"
)

// Maintainer is the subset of the memory store the sweeper drives.
type Maintainer interface {
	Maintain(ctx context.Context) (int, error)
}

// Sweeper runs store maintenance on a cron schedule. Each run prunes
// entries beyond the configured cap and compacts the database.
type Sweeper struct {
	store Maintainer
	bus   *events.Bus
	expr  *CronExpr
	done  chan struct{}
	now   func() time.Time
}

// NewSweeper creates a sweeper for the given schedule.
func NewSweeper(store Maintainer, bus *events.Bus, schedule string) (*Sweeper, error) {
	expr, err := ParseCron(schedule)
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		store: store,
		bus:   bus,
		expr:  expr,
		done:  make(chan struct{}),
		now:   time.Now,
	}, nil
}

// Start begins the minute ticker. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("maintenance sweeper started", "schedule", s.expr.String(), "next", s.expr.Next(s.now()))
	go s.loop(ctx)
}

// Stop halts the sweeper.
func (s *Sweeper) Stop() {
	close(s.done)
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.expr.Matches(s.now()) {
				s.Run(ctx)
			}
		}
	}
}

// Run executes a single maintenance pass and publishes the outcome. A
// pass that removed entries additionally publishes memory.pruned so
// store subscribers need not watch maintenance events.
func (s *Sweeper) Run(ctx context.Context) {
	start := s.now()
	pruned, err := s.store.Maintain(ctx)
	elapsed := time.Since(start)

	if pruned > 0 {
		s.bus.Publish(events.NewTypedEvent(events.SourceMaintenance, events.MemoryPrunedPayload{Removed: pruned}))
	}

	payload := events.MaintenanceRunPayload{
		Pruned:   pruned,
		Duration: elapsed,
	}
	if err != nil {
		payload.Error = err.Error()
		slog.Warn("maintenance run failed", "error", err)
	} else {
		slog.Info("maintenance run complete", "pruned", pruned, "duration", elapsed)
	}
	s.bus.Publish(events.NewTypedEvent(events.SourceMaintenance, payload))
}

var _ Maintainer = (*memory.SQLiteStore)(nil)
