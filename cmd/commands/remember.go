package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sovereign-tools/sovereign/internal/memory"
)

// NewRememberCommand returns the remember subcommand.
func NewRememberCommand() *cli.Command {
	return &cli.Command{
		Name:      "remember",
		Usage:     "Store a fact under a topic (overwrites any previous fact)",
		ArgsUsage: "<topic> <content...>",
		Action:    runRemember,
	}
}

func runRemember(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("usage: sovereign remember <topic> <content...>")
	}
	topic := args[0]
	content := strings.Join(args[1:], " ")

	cfg := loadConfig(cmd)
	store := openStore(cfg)
	defer store.Close()

	action, err := store.Remember(ctx, topic, content)
	if err != nil {
		return err
	}

	if action == memory.ActionUpdated {
		fmt.Printf("Updated %q.\n", topic)
	} else {
		fmt.Printf("Stored %q.\n", topic)
	}
	return nil
}
