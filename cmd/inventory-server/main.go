// ABOUTME: Entry point for inventory-server
// ABOUTME: Serves the configured local item repository over gRPC

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/2389/inventory/internal/config"
	"github.com/2389/inventory/internal/container"
	"github.com/2389/inventory/internal/logging"
	"github.com/2389/inventory/internal/remote"
)

// version is set with -ldflags at build time.
var version = "dev"

const banner = `
 _                      _
(_)_ ____   _____ _ __ | |_ ___  _ __ _   _       ___  ___ _ ____   _____ _ __
| | '_ \ \ / / _ \ '_ \| __/ _ \| '__| | | |_____/ __|/ _ \ '__\ \ / / _ \ '__|
| | | | \ V /  __/ | | | || (_) | |  | |_| |_____\__ \  __/ |   \ V /  __/ |
|_|_| |_|\_/ \___|_| |_|\__\___/|_|   \__, |     |___/\___|_|    \_/ \___|_|
                                      |___/
`

// shutdownGrace bounds how long open watches may keep a stopping server alive.
const shutdownGrace = 5 * time.Second

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: inventory-server <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                  Start the gRPC server")
		fmt.Println("  init                   Create a new config file interactively")
		fmt.Println("  version                Print the version")
		os.Exit(1)
	}

	// A missing .env is fine
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Storage.Backend == config.BackendRemote {
		return fmt.Errorf("storage.backend %q cannot be served, use sqlite or memory", cfg.Storage.Backend)
	}

	logger := logging.New(cfg.Logging, os.Stderr)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", cfg.Storage.Backend)
	if cfg.Storage.Backend == config.BackendSQLite {
		green.Print("    ▶ ")
		fmt.Printf("Database:  %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	}
	green.Print("    ▶ ")
	fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
	fmt.Println()

	logger.Info("starting inventory-server",
		"config", configPath,
		"backend", cfg.Storage.Backend,
		"grpc_addr", cfg.Server.GRPCAddr,
	)

	repo, err := container.SharedRepository(cfg, logger)
	defer func() {
		if err := container.Reset(); err != nil {
			logger.Error("closing repository", "error", err)
		}
	}()
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.GRPCAddr, err)
	}

	gs := remote.NewGRPCServer(logger)
	remote.NewServer(repo, logger).Register(gs)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", "addr", lis.Addr().String())
		serveErr <- gs.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving gRPC: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	stopGracefully(gs, logger)
	return nil
}

// stopGracefully lets in-flight calls finish, then cuts open watches, which
// would otherwise never end on their own.
func stopGracefully(gs *grpc.Server, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		logger.Warn("graceful stop timed out, closing open watches")
		gs.Stop()
		<-done
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("inventory configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	def := config.Default()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", outputFile, err)
	}

	fmt.Println("\n--- Storage Configuration ---")
	backend := prompt(reader, "Backend (sqlite/memory/remote)", def.Storage.Backend)
	dbPath := def.Database.Path
	driver := def.Database.Driver
	remoteAddr := def.Remote.Addr
	switch backend {
	case config.BackendSQLite:
		dbPath = prompt(reader, "SQLite database path", dbPath)
		driver = prompt(reader, "SQLite driver (sqlite/sqlite3)", driver)
	case config.BackendRemote:
		remoteAddr = prompt(reader, "inventory-server address", remoteAddr)
	}

	fmt.Println("\n--- Server Configuration ---")
	grpcAddr := prompt(reader, "gRPC listen address", def.Server.GRPCAddr)

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", def.Logging.Level)
	logFormat := prompt(reader, "Log format (text/json)", def.Logging.Format)

	var cfg strings.Builder
	cfg.WriteString("# inventory configuration\n")
	cfg.WriteString("# Generated by inventory-server init\n\n")

	cfg.WriteString("storage:\n")
	cfg.WriteString(fmt.Sprintf("  backend: %q\n\n", backend))

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  driver: %q\n", driver))
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString(fmt.Sprintf("  busy_timeout: %q\n\n", def.Database.BusyTimeoutRaw))

	cfg.WriteString("remote:\n")
	cfg.WriteString(fmt.Sprintf("  addr: %q\n", remoteAddr))
	cfg.WriteString(fmt.Sprintf("  dial_timeout: %q\n\n", def.Remote.DialTimeoutRaw))

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  grpc_addr: %q\n\n", grpcAddr))

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Catch typos before the first serve
	if _, err := config.Load(outputFile); err != nil {
		return fmt.Errorf("config written to %s but invalid: %w", outputFile, err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  INVENTORY_CONFIG=%s inventory-server serve\n", outputFile)

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
