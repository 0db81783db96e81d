// ABOUTME: In-memory ItemsRepository with the same semantics as the SQLite one
// ABOUTME: Used for tests and as the "memory" backend

package inventory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/inventory/internal/live"
)

type memoryRow struct {
	item     Item
	position int64
}

// MemoryItemsRepository is an in-memory ItemsRepository. Ids follow the SQLite
// AUTOINCREMENT policy: the next id is one past the largest id ever stored and
// ids are never reused.
type MemoryItemsRepository struct {
	mu           sync.RWMutex
	rows         map[int64]*memoryRow // keyed by item ID
	lastID       int64
	lastPosition int64
	hub          *live.Hub
	logger       *slog.Logger
}

// NewMemoryItemsRepository creates an empty repository. Pass nil logger for default.
func NewMemoryItemsRepository(logger *slog.Logger) *MemoryItemsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "memory_repository")
	return &MemoryItemsRepository{
		rows:   make(map[int64]*memoryRow),
		hub:    live.NewHub(logger),
		logger: logger,
	}
}

// InsertItem stores a copy of item.
func (m *MemoryItemsRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := item.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID != 0 {
		if _, ok := m.rows[item.ID]; ok {
			return 0, nil
		}
	} else {
		item.ID = m.lastID + 1
	}
	if item.ID > m.lastID {
		m.lastID = item.ID
	}

	m.lastPosition++
	m.rows[item.ID] = &memoryRow{item: item, position: m.lastPosition}
	m.hub.Notify(ItemsTableName, 1)

	return item.ID, nil
}

// UpdateItem replaces the stored copy of item.ID, keeping its position.
func (m *MemoryItemsRepository) UpdateItem(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := item.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[item.ID]
	if !ok {
		return nil
	}
	row.item = item
	m.hub.Notify(ItemsTableName, 1)
	return nil
}

// DeleteItem removes item.ID.
func (m *MemoryItemsRepository) DeleteItem(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[item.ID]; !ok {
		return nil
	}
	delete(m.rows, item.ID)
	m.hub.Notify(ItemsTableName, 1)
	return nil
}

func (m *MemoryItemsRepository) GetAllItemsStream() *live.Stream[[]Item] {
	return watchMemory(m, m.listLocked)
}

func (m *MemoryItemsRepository) GetItemStream(id int64) *live.Stream[*Item] {
	return watchMemory(m, func() *Item {
		row, ok := m.rows[id]
		if !ok {
			return nil
		}
		item := row.item
		return &item
	})
}

// watchMemory emits snapshot() now and after every change. snapshot runs with
// m.mu held: read-locked at registration, write-locked by the mutating call
// when notified.
func watchMemory[T any](m *MemoryItemsRepository, snapshot func() T) *live.Stream[T] {
	return live.NewStream(func(ctx context.Context, sink live.Sink[T]) (func(), error) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		sink.Emit(snapshot())
		id := m.hub.Watch(ItemsTableName, func(live.Change) {
			sink.Emit(snapshot())
		})
		return func() { m.hub.Unwatch(ItemsTableName, id) }, nil
	})
}

// listLocked must be called with mu held.
func (m *MemoryItemsRepository) listLocked() []Item {
	rows := make([]*memoryRow, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].item.Name != rows[j].item.Name {
			return rows[i].item.Name < rows[j].item.Name
		}
		return rows[i].position < rows[j].position
	})

	items := make([]Item, len(rows))
	for i, row := range rows {
		items[i] = row.item
	}
	return items
}

var _ ItemsRepository = (*MemoryItemsRepository)(nil)
