package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/sovereign-tools/sovereign/internal/events"
	sovereignmcp "github.com/sovereign-tools/sovereign/internal/mcp"
	"github.com/sovereign-tools/sovereign/internal/memory"
	"github.com/sovereign-tools/sovereign/internal/plugins"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose Sovereign tools as an MCP server (stdio)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "filter",
				UsageText: "Plugin or tool name to expose (empty = all)",
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	// Logging stays quiet and on stderr regardless of log.level: stdout
	// carries the MCP stdio transport.
	level := slog.LevelWarn
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Minimal event bus (needed for plugin host functions)
	bus := events.NewBus(64)
	defer bus.Close()

	// Memory store — degrade to memory-less tools if unreachable.
	var store memory.Store
	sqlStore := openStore(cfg)
	if _, err := sqlStore.Count(ctx); err != nil {
		slog.Warn("memory store unavailable, memory tools disabled", "path", cfg.Memory.Path, "error", err)
		sqlStore.Close()
	} else {
		store = sqlStore
		defer sqlStore.Close()
	}

	toolRegistry, err := plugins.SetupToolRegistry(ctx, cfg, bus, store)
	if err != nil {
		return err
	}
	defer toolRegistry.Close(ctx)

	// Optional filter — use StringArg for urfave/cli v3 Arguments
	filter := cmd.StringArg("filter")

	slog.Debug("starting MCP server", "filter", filter, "tools", len(toolRegistry.ToolNames()))

	server := sovereignmcp.NewMCPServer(toolRegistry, filter)
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
