// ABOUTME: inventory CLI for listing, editing and watching items
// ABOUTME: Works against any configured backend: local SQLite, memory or a remote server

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/inventory/internal/config"
	"github.com/2389/inventory/internal/container"
	"github.com/2389/inventory/internal/inventory"
	"github.com/2389/inventory/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine
	_ = godotenv.Load()

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, cmd, args)
	cancel()

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := config.LoadOrDefault("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Keep the terminal for command output unless asked for more
	if os.Getenv("INVENTORY_LOG_LEVEL") != "" {
		cfg.Logging.Level = os.Getenv("INVENTORY_LOG_LEVEL")
	} else if cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	logger := logging.New(cfg.Logging, os.Stderr)

	repo, err := container.SharedRepository(cfg, logger)
	defer func() {
		if err := container.Reset(); err != nil {
			logger.Warn("closing repository", "error", err)
		}
	}()
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}

	switch cmd {
	case "list":
		return cmdList(ctx, repo)
	case "get":
		return cmdGet(ctx, repo, args)
	case "add":
		return cmdAdd(ctx, repo, args)
	case "update":
		return cmdUpdate(ctx, repo, args)
	case "delete":
		return cmdDelete(ctx, repo, args)
	case "watch":
		return cmdWatch(ctx, repo, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: inventory <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  list                                  List all items")
	fmt.Println("  get <id>                              Show one item")
	fmt.Println("  add --name N --price P --quantity Q   Add an item (--id to choose the id)")
	fmt.Println("  update <id> [--name N] [--price P] [--quantity Q]")
	fmt.Println("                                        Change fields of an item")
	fmt.Println("  delete <id>                           Delete an item")
	fmt.Println("  watch [id]                            Print every change until interrupted")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  INVENTORY_CONFIG      Config file (default: ~/.config/inventory/config.yaml)")
	fmt.Println("  INVENTORY_LOG_LEVEL   Override logging.level for this command")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  inventory add --name Widget --price 2.50 --quantity 5")
	fmt.Println("  inventory update 1 --quantity 3")
	fmt.Println("  inventory watch")
	fmt.Println()
}

func cmdList(ctx context.Context, repo inventory.ItemsRepository) error {
	items, err := repo.GetAllItemsStream().First(ctx)
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Items")
	cyan.Println("  -----")
	printItems(items)
	return nil
}

func printItems(items []inventory.Item) {
	if len(items) == 0 {
		fmt.Println("  (no items)")
		fmt.Println()
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tPRICE\tQUANTITY")
	fmt.Fprintln(w, "  --\t----\t-----\t--------")
	for _, item := range items {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%d\n", item.ID, truncate(item.Name, 32), formatPrice(item.Price), item.Quantity)
	}
	w.Flush()
	fmt.Println()
}

func printItem(item *inventory.Item) {
	if item == nil {
		color.New(color.FgHiBlack).Println("  (absent)")
		return
	}
	fmt.Printf("  ID:        %d\n", item.ID)
	fmt.Printf("  Name:      %s\n", item.Name)
	fmt.Printf("  Price:     %s\n", formatPrice(item.Price))
	fmt.Printf("  Quantity:  %d\n", item.Quantity)
}

func cmdGet(ctx context.Context, repo inventory.ItemsRepository, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return fmt.Errorf("usage: get <id>: %w", err)
	}

	item, err := repo.GetItemStream(id).First(ctx)
	if err != nil {
		return fmt.Errorf("reading item: %w", err)
	}
	if item == nil {
		return fmt.Errorf("item %d not found", id)
	}

	printItem(item)
	return nil
}

func cmdAdd(ctx context.Context, repo inventory.ItemsRepository, args []string) error {
	f, err := parseItemFlags(args, true)
	if err != nil {
		return fmt.Errorf("usage: add --name <name> --price <price> --quantity <n> [--id <id>]: %w", err)
	}
	if f.name == nil || f.price == nil || f.quantity == nil {
		return fmt.Errorf("usage: add --name <name> --price <price> --quantity <n> [--id <id>]")
	}

	item := f.apply(inventory.Item{})
	id, err := repo.InsertItem(ctx, item)
	if err != nil {
		return fmt.Errorf("adding item: %w", err)
	}
	if id == 0 {
		color.New(color.FgYellow).Printf("! Item %d already exists, nothing changed\n", item.ID)
		return nil
	}

	item.ID = id
	color.New(color.FgGreen).Printf("✓ Added item: %d\n", id)
	printItem(&item)
	return nil
}

func cmdUpdate(ctx context.Context, repo inventory.ItemsRepository, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return fmt.Errorf("usage: update <id> [--name N] [--price P] [--quantity Q]: %w", err)
	}
	f, err := parseItemFlags(args[1:], false)
	if err != nil {
		return fmt.Errorf("usage: update <id> [--name N] [--price P] [--quantity Q]: %w", err)
	}

	current, err := repo.GetItemStream(id).First(ctx)
	if err != nil {
		return fmt.Errorf("reading item: %w", err)
	}
	if current == nil {
		return fmt.Errorf("item %d not found", id)
	}

	item := f.apply(*current)
	if err := repo.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("updating item: %w", err)
	}

	color.New(color.FgGreen).Printf("✓ Updated item: %d\n", id)
	printItem(&item)
	return nil
}

func cmdDelete(ctx context.Context, repo inventory.ItemsRepository, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return fmt.Errorf("usage: delete <id>: %w", err)
	}

	if err := repo.DeleteItem(ctx, inventory.Item{ID: id}); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}

	color.New(color.FgGreen).Printf("✓ Deleted item: %d\n", id)
	return nil
}

func cmdWatch(ctx context.Context, repo inventory.ItemsRepository, args []string) error {
	gray := color.New(color.FgHiBlack)
	stamp := func() {
		gray.Printf("[%s]\n", time.Now().Format("15:04:05"))
	}

	var done <-chan struct{}
	var errFn func() error

	if len(args) > 0 {
		id, err := parseID(args)
		if err != nil {
			return fmt.Errorf("usage: watch [id]: %w", err)
		}
		sub, err := repo.GetItemStream(id).Subscribe(ctx, func(item *inventory.Item) {
			stamp()
			printItem(item)
			fmt.Println()
		})
		if err != nil {
			return fmt.Errorf("watching item %d: %w", id, err)
		}
		done, errFn = sub.Done(), sub.Err
	} else {
		sub, err := repo.GetAllItemsStream().Subscribe(ctx, func(items []inventory.Item) {
			stamp()
			printItems(items)
		})
		if err != nil {
			return fmt.Errorf("watching items: %w", err)
		}
		done, errFn = sub.Done(), sub.Err
	}

	<-done
	if err := errFn(); err != nil {
		return fmt.Errorf("watch ended: %w", err)
	}
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
