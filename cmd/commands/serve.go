package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sovereign-tools/sovereign/internal/config"
	"github.com/sovereign-tools/sovereign/internal/events"
	"github.com/sovereign-tools/sovereign/internal/gateway"
	"github.com/sovereign-tools/sovereign/internal/heartbeat"
	"github.com/sovereign-tools/sovereign/internal/maintenance"
	"github.com/sovereign-tools/sovereign/internal/memory"
	"github.com/sovereign-tools/sovereign/internal/plugins"
	"github.com/sovereign-tools/sovereign/internal/storage"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	// Event bus
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	// Audit log
	if !cfg.Events.AuditDisabled {
		audit := storage.NewAuditLogger(cfg.Events.AuditDir, bus)
		defer audit.Close()
	}

	// Memory store — degrade to memory-less serving when the database
	// cannot be reached.
	var store memory.Store
	sqlStore := openStore(cfg)
	if _, err := sqlStore.Count(ctx); err != nil {
		slog.Warn("memory store unavailable, serving without memory", "path", cfg.Memory.Path, "error", err)
		sqlStore.Close()
	} else {
		store = sqlStore
		defer sqlStore.Close()
	}

	// Tool registry — native tools + WASM plugins
	toolRegistry, err := plugins.SetupToolRegistry(ctx, cfg, bus, store)
	if err != nil {
		return fmt.Errorf("setup tools: %w", err)
	}
	defer toolRegistry.Close(ctx)
	slog.Info("tools loaded", "count", len(toolRegistry.ToolNames()))

	// Maintenance sweeper
	if store != nil && !cfg.Maintenance.Disabled {
		sweeper, err := maintenance.NewSweeper(sqlStore, bus, cfg.Maintenance.Schedule)
		if err != nil {
			return fmt.Errorf("maintenance schedule: %w", err)
		}
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// Gateway server
	server := gateway.NewServer(bus, toolRegistry, store, cfg.Gateway.Host, cfg.Gateway.Port)

	// Heartbeat
	hb := heartbeat.NewWriter(filepath.Join(config.SovereignPath(), "heartbeat.json"), server.Addr())
	hb.Start()
	defer hb.Stop()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for signal or error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
