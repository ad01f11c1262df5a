// Package commands defines the sovereign CLI.
package commands

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/sovereign-tools/sovereign/internal/config"
	"github.com/sovereign-tools/sovereign/internal/memory"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "sovereign",
		Usage: "Persistent memory your chat platform can call",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewRememberCommand(),
			NewRecallCommand(),
			NewForgetCommand(),
			NewMemoryCommand(),
			NewServeCommand(),
			NewMCPServeCommand(),
			NewStatusCommand(),
		},
	}
}

// loadConfig reads the config named by --config, falling back to defaults,
// and rebuilds the default logger at the configured level. --debug always
// wins over log.level.
func loadConfig(cmd *cli.Command) *config.Config {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		slog.Warn("config not usable, falling back to defaults", "path", cmd.String("config"), "error", err)
		cfg = config.Default()
	}

	if !cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))
	}
	return cfg
}

// openStore builds the SQLite store from config. Opening is lazy; errors
// surface on first use.
func openStore(cfg *config.Config) *memory.SQLiteStore {
	mc := memory.DefaultConfig(cfg.Memory.Path)
	if cfg.Memory.MaxEntries != 0 {
		mc.MaxEntries = cfg.Memory.MaxEntries
	}
	if cfg.Memory.BusyTimeout != 0 {
		mc.BusyTimeout = cfg.Memory.BusyTimeout.Duration()
	}
	return memory.New(mc)
}

// preview returns the first n characters of s, flattening newlines.
func preview(s string, n int) string {
	flat := make([]rune, 0, n+1)
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		flat = append(flat, r)
		if len(flat) > n {
			break
		}
	}
	if len(flat) > n {
		return string(flat[:n]) + "…"
	}
	return string(flat)
}
