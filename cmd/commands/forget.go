package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewForgetCommand returns the forget subcommand.
func NewForgetCommand() *cli.Command {
	return &cli.Command{
		Name:      "forget",
		Usage:     "Delete the fact stored under a topic",
		ArgsUsage: "<topic>",
		Action:    runForget,
	}
}

func runForget(ctx context.Context, cmd *cli.Command) error {
	topic := cmd.Args().First()
	if topic == "" {
		return fmt.Errorf("usage: sovereign forget <topic>")
	}

	cfg := loadConfig(cmd)
	store := openStore(cfg)
	defer store.Close()

	removed, err := store.Forget(ctx, topic)
	if err != nil {
		return err
	}

	if removed {
		fmt.Printf("Forgot %q.\n", topic)
	} else {
		fmt.Printf("Nothing stored under %q.\n", topic)
	}
	return nil
}
