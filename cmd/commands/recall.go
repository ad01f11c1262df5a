package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/sovereign-tools/sovereign/internal/memory"
)

// NewRecallCommand returns the recall subcommand.
func NewRecallCommand() *cli.Command {
	return &cli.Command{
		Name:      "recall",
		Usage:     "Find stored facts by topic or content",
		ArgsUsage: "[query]",
		Action:    runRecall,
	}
}

func runRecall(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		query = memory.Wildcard
	}

	cfg := loadConfig(cmd)
	store := openStore(cfg)
	defer store.Close()

	entries, err := store.Recall(ctx, query)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No matching memories.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tUPDATED\tCONTENT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			e.Topic, e.UpdatedAt.Format("2006-01-02 15:04"), preview(e.Content, 60))
	}
	return w.Flush()
}
