package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sovereign-tools/sovereign/internal/config"
	"github.com/sovereign-tools/sovereign/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show gateway liveness and store statistics",
		Action: runStatus,
	}
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	hbPath := filepath.Join(config.SovereignPath(), "heartbeat.json")
	status, hb, err := heartbeat.Check(hbPath, 2*time.Minute)
	if err != nil {
		return fmt.Errorf("check heartbeat: %w", err)
	}

	switch status {
	case heartbeat.StatusAlive:
		fmt.Printf("Gateway: ALIVE (PID %d, uptime %s", hb.PID, hb.Uptime)
		if hb.ListenAddr != "" {
			fmt.Printf(", %s", hb.ListenAddr)
		}
		fmt.Println(")")
	case heartbeat.StatusStale:
		fmt.Printf("Gateway: STALE (PID %d, last heartbeat %s ago)\n",
			hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
	case heartbeat.StatusDead:
		fmt.Println("Gateway: NOT RUNNING")
	}

	cfg := loadConfig(cmd)
	fmt.Printf("Store:   %s\n", cfg.Memory.Path)

	info, err := os.Stat(cfg.Memory.Path)
	if err != nil {
		fmt.Println("Entries: (database not created yet)")
		return nil
	}
	fmt.Printf("Size:    %.1f KiB\n", float64(info.Size())/1024)

	store := openStore(cfg)
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	fmt.Printf("Entries: %d\n", count)
	return nil
}
