package plugins

import (
	"context"
	"log/slog"

	"github.com/sovereign-tools/sovereign/internal/config"
	"github.com/sovereign-tools/sovereign/internal/events"
	"github.com/sovereign-tools/sovereign/internal/memory"
)

// SetupToolRegistry creates and populates a ToolRegistry with the native
// tools and any WASM plugins found in the plugins directory.
//
// A nil store means the host is running without memory (the database could
// not be opened): the memory tools are simply not registered and the host
// keeps serving the remaining tools.
func SetupToolRegistry(ctx context.Context, cfg *config.Config, bus *events.Bus, store memory.Store) (*ToolRegistry, error) {
	registry := NewToolRegistry(bus, store)

	if store != nil {
		if err := registry.RegisterNative("remember", NewRememberTool(store, bus), RememberManifest()); err != nil {
			slog.Warn("failed to register remember tool", "error", err)
		}
		if err := registry.RegisterNative("recall", NewRecallTool(store, bus), RecallManifest()); err != nil {
			slog.Warn("failed to register recall tool", "error", err)
		}
		if err := registry.RegisterNative("forget", NewForgetTool(store, bus), ForgetManifest()); err != nil {
			slog.Warn("failed to register forget tool", "error", err)
		}
	} else {
		slog.Warn("memory store unavailable, memory tools disabled")
	}

	if err := registry.RegisterNative("current_datetime", NewClockTool(), ClockManifest()); err != nil {
		slog.Warn("failed to register current_datetime tool", "error", err)
	}

	if !cfg.Reader.Disabled {
		if err := registry.RegisterNative("read_webpage", NewReadWebpageTool(cfg.Reader, bus), ReadWebpageManifest()); err != nil {
			slog.Warn("failed to register read_webpage tool", "error", err)
		}
	}

	if err := registry.LoadPluginsDir(ctx, cfg.Plugins.Dir, cfg.Plugins.Enabled); err != nil {
		slog.Warn("failed to load plugins", "dir", cfg.Plugins.Dir, "error", err)
	}

	return registry, nil
}
