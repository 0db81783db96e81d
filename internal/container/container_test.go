// ABOUTME: Tests for the dependency container
// ABOUTME: Covers backend selection, single instance under concurrency and teardown

package container

import (
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/inventory/internal/config"
	"github.com/2389/inventory/internal/inventory"
	"github.com/2389/inventory/internal/remote"
	"github.com/2389/inventory/internal/store"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "inventory.db")
	return cfg
}

func TestItemsRepository_SQLiteBackend(t *testing.T) {
	c := New(sqliteConfig(t), nil)
	defer c.Close()

	repo, err := c.ItemsRepository()
	require.NoError(t, err)
	assert.IsType(t, &inventory.OfflineItemsRepository{}, repo)

	id, err := repo.InsertItem(t.Context(), inventory.Item{Name: "Widget", Price: 2.5, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestItemsRepository_MemoryBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory

	c := New(cfg, nil)
	defer c.Close()

	repo, err := c.ItemsRepository()
	require.NoError(t, err)
	assert.IsType(t, &inventory.MemoryItemsRepository{}, repo)
}

func TestItemsRepository_RemoteBackend(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := remote.NewGRPCServer(nil)
	remote.NewServer(inventory.NewMemoryItemsRepository(nil), nil).Register(gs)
	go gs.Serve(lis)
	defer gs.Stop()

	cfg := config.Default()
	cfg.Storage.Backend = config.BackendRemote
	cfg.Remote.Addr = lis.Addr().String()
	cfg.Remote.DialTimeout = 5 * time.Second

	c := New(cfg, nil)
	defer c.Close()

	repo, err := c.ItemsRepository()
	require.NoError(t, err)
	assert.IsType(t, &remote.Client{}, repo)

	id, err := repo.InsertItem(t.Context(), inventory.Item{Name: "over the wire"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestItemsRepository_RemoteUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	cfg := config.Default()
	cfg.Storage.Backend = config.BackendRemote
	cfg.Remote.Addr = addr
	cfg.Remote.DialTimeout = 200 * time.Millisecond

	c := New(cfg, nil)
	defer c.Close()

	_, err = c.ItemsRepository()
	assert.Error(t, err)
}

func TestItemsRepository_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "postgres"

	_, err := New(cfg, nil).ItemsRepository()
	assert.ErrorContains(t, err, `unknown storage backend "postgres"`)
}

func TestItemsRepository_ConcurrentFirstAccessYieldsOneInstance(t *testing.T) {
	c := New(sqliteConfig(t), nil)
	defer c.Close()

	const n = 20
	repos := make([]inventory.ItemsRepository, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo, err := c.ItemsRepository()
			assert.NoError(t, err)
			repos[i] = repo
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, repos[0], repos[i])
	}
}

func TestClose_ReleasesEngine(t *testing.T) {
	c := New(sqliteConfig(t), nil)

	repo, err := c.ItemsRepository()
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = repo.InsertItem(t.Context(), inventory.Item{Name: "late"})
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)

	// The container can be used again after Close
	again, err := c.ItemsRepository()
	require.NoError(t, err)
	defer c.Close()
	assert.NotSame(t, repo, again)
}

func TestSharedRepository(t *testing.T) {
	t.Cleanup(func() { Reset() })
	cfg := sqliteConfig(t)

	first, err := SharedRepository(cfg, nil)
	require.NoError(t, err)

	memCfg := config.Default()
	memCfg.Storage.Backend = config.BackendMemory
	second, err := SharedRepository(memCfg, nil)
	require.NoError(t, err)
	assert.Same(t, first, second, "config is ignored once the shared container exists")

	require.NoError(t, Reset())
	require.NoError(t, Reset(), "reset without a container is a no-op")

	third, err := SharedRepository(memCfg, nil)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.IsType(t, &inventory.MemoryItemsRepository{}, third)
}
