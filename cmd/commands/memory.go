package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/sovereign-tools/sovereign/internal/backup"
	"github.com/sovereign-tools/sovereign/internal/events"
	"github.com/sovereign-tools/sovereign/internal/memory"
)

// NewMemoryCommand returns the memory subcommand.
func NewMemoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Administer the fact store",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all stored facts",
				Action: runMemoryList,
			},
			{
				Name:      "show",
				Usage:     "Show the full fact stored under a topic",
				ArgsUsage: "<topic>",
				Action:    runMemoryShow,
			},
			{
				Name:  "wipe",
				Usage: "Delete every stored fact",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
				Action: runMemoryWipe,
			},
			{
				Name:   "prune",
				Usage:  "Prune overflow entries and compact the database",
				Action: runMemoryPrune,
			},
			{
				Name:  "export",
				Usage: "Export all facts as JSONL",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
					&cli.BoolFlag{
						Name:  "encrypt",
						Usage: "Encrypt the export with the local age key",
					},
				},
				Action: runMemoryExport,
			},
			{
				Name:      "import",
				Usage:     "Import facts from a JSONL export (age-encrypted or plain)",
				ArgsUsage: "<file>",
				Action:    runMemoryImport,
			},
		},
		DefaultCommand: "list",
	}
}

func runMemoryList(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	store := openStore(cfg)
	defer store.Close()

	entries, err := store.Recall(ctx, memory.Wildcard)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No memories stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tCREATED\tUPDATED\tCONTENT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Topic,
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.UpdatedAt.Format("2006-01-02 15:04"),
			preview(e.Content, 50))
	}
	return w.Flush()
}

func runMemoryShow(ctx context.Context, cmd *cli.Command) error {
	topic := cmd.Args().First()
	if topic == "" {
		return fmt.Errorf("usage: sovereign memory show <topic>")
	}

	cfg := loadConfig(cmd)
	store := openStore(cfg)
	defer store.Close()

	entry, err := store.Get(ctx, topic)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("nothing stored under %q", topic)
	}

	fmt.Printf("Topic:   %s\n", entry.Topic)
	fmt.Printf("Created: %s\n", entry.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n", entry.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("\n%s\n", entry.Content)
	return nil
}

func runMemoryWipe(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	store := openStore(cfg)
	defer store.Close()

	if !cmd.Bool("yes") {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to wipe without --yes on a non-interactive terminal")
		}
		count, err := store.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("This deletes all %d stored facts. Type 'yes' to continue: ", count)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	removed, err := store.Wipe(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		auditCLI(cfg, events.MemoryWipedPayload{Removed: removed})
	}
	fmt.Printf("Wiped %d memories.\n", removed)
	return nil
}

func runMemoryPrune(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	store := openStore(cfg)
	defer store.Close()

	pruned, err := store.Maintain(ctx)
	if err != nil {
		return err
	}
	if pruned > 0 {
		auditCLI(cfg, events.MemoryPrunedPayload{Removed: pruned})
	}
	fmt.Printf("Pruned %d memories.\n", pruned)
	return nil
}

func runMemoryExport(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	store := openStore(cfg)
	defer store.Close()

	out := os.Stdout
	if path := cmd.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if cmd.Bool("encrypt") {
		keyPath := backup.KeyPath()
		if err := backup.GenerateIdentity(keyPath); err != nil {
			return err
		}
		identity, err := backup.LoadIdentity(keyPath)
		if err != nil {
			return err
		}
		n, err := backup.Export(ctx, store, out, identity.Recipient())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d memories (encrypted).\n", n)
		return nil
	}

	n, err := backup.Export(ctx, store, out, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d memories.\n", n)
	return nil
}

func runMemoryImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: sovereign memory import <file>")
	}

	cfg := loadConfig(cmd)
	store := openStore(cfg)
	defer store.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	// The key is optional: plain exports import without one.
	id, err := backup.LoadIdentity(backup.KeyPath())
	if err != nil {
		id = nil
	}

	n, err := backup.Import(ctx, store, f, id)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d memories.\n", n)
	return nil
}
