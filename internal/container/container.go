// ABOUTME: Dependency container building the configured ItemsRepository once per process
// ABOUTME: Lazy, mutex guarded, with explicit teardown for tests and shutdown

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/2389/inventory/internal/config"
	"github.com/2389/inventory/internal/inventory"
	"github.com/2389/inventory/internal/remote"
	"github.com/2389/inventory/internal/store"
)

// AppContainer provides the application's data dependencies.
type AppContainer interface {
	// ItemsRepository returns the repository, building it on first use. Every
	// call returns the same instance until Close.
	ItemsRepository() (inventory.ItemsRepository, error)
	// Close releases everything the container opened.
	Close() error
}

// AppDataContainer is the AppContainer for a config.Config.
type AppDataContainer struct {
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	repo    inventory.ItemsRepository
	closers []io.Closer
}

// New creates a container. Nothing is opened until ItemsRepository is called.
// Pass nil logger for default.
func New(cfg *config.Config, logger *slog.Logger) *AppDataContainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppDataContainer{
		cfg:    cfg,
		logger: logger,
	}
}

func (c *AppDataContainer) ItemsRepository() (inventory.ItemsRepository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repo != nil {
		return c.repo, nil
	}

	repo, closer, err := c.build()
	if err != nil {
		return nil, err
	}
	c.repo = repo
	if closer != nil {
		c.closers = append(c.closers, closer)
	}

	c.logger.With("component", "container").Info("repository ready", "backend", c.cfg.Storage.Backend)
	return repo, nil
}

func (c *AppDataContainer) build() (inventory.ItemsRepository, io.Closer, error) {
	switch c.cfg.Storage.Backend {
	case config.BackendSQLite, "":
		engine, err := store.OpenShared(context.Background(), store.Options{
			Driver:      c.cfg.Database.Driver,
			Path:        c.cfg.Database.Path,
			Tables:      []store.Table{inventory.ItemsTable},
			BusyTimeout: c.cfg.Database.BusyTimeout,
			Logger:      c.logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		dao := inventory.NewItemDao(engine, c.logger)
		return inventory.NewOfflineItemsRepository(dao), engine, nil

	case config.BackendMemory:
		return inventory.NewMemoryItemsRepository(c.logger), nil, nil

	case config.BackendRemote:
		ctx := context.Background()
		if c.cfg.Remote.DialTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.Remote.DialTimeout)
			defer cancel()
		}
		client, err := remote.Dial(ctx, c.cfg.Remote.Addr, c.logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", c.cfg.Storage.Backend)
	}
}

// Close releases the repository. A later ItemsRepository call builds a new one.
func (c *AppDataContainer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	c.repo = nil
	return errors.Join(errs...)
}

var _ AppContainer = (*AppDataContainer)(nil)

var (
	sharedMu sync.Mutex
	shared   *AppDataContainer
)

// SharedRepository returns the process-wide repository, creating the shared
// container from cfg on first use. Later calls ignore cfg until Reset.
func SharedRepository(cfg *config.Config, logger *slog.Logger) (inventory.ItemsRepository, error) {
	sharedMu.Lock()
	if shared == nil {
		shared = New(cfg, logger)
	}
	c := shared
	sharedMu.Unlock()

	return c.ItemsRepository()
}

// Reset closes the process-wide container so the next SharedRepository call
// starts fresh.
func Reset() error {
	sharedMu.Lock()
	c := shared
	shared = nil
	sharedMu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}
