// ABOUTME: ItemsRepository interface consumed by callers, plus its DAO-backed implementation
// ABOUTME: Callers never reach the DAO or engine directly

package inventory

import (
	"context"

	"github.com/2389/inventory/internal/live"
)

// ItemsRepository is the data access surface for items. Implementations are
// interchangeable: SQLite (OfflineItemsRepository), in-memory
// (MemoryItemsRepository) and remote (remote.Client).
type ItemsRepository interface {
	// GetAllItemsStream emits all items ordered by name ascending (byte-wise),
	// equal names in insertion order, then once more after every change.
	GetAllItemsStream() *live.Stream[[]Item]

	// GetItemStream emits the item with id, or nil when it does not exist,
	// then once more after every change.
	GetItemStream(id int64) *live.Stream[*Item]

	// InsertItem stores item and returns the assigned id. Inserting an
	// explicit id that already exists changes nothing and returns 0.
	InsertItem(ctx context.Context, item Item) (int64, error)

	// UpdateItem replaces the fields of the item with item.ID. Updating a
	// missing id is a no-op.
	UpdateItem(ctx context.Context, item Item) error

	// DeleteItem removes the item with item.ID. Deleting a missing id is a
	// no-op.
	DeleteItem(ctx context.Context, item Item) error
}

// OfflineItemsRepository implements ItemsRepository over a local engine.
type OfflineItemsRepository struct {
	dao *ItemDao
}

// NewOfflineItemsRepository creates a repository backed by dao.
func NewOfflineItemsRepository(dao *ItemDao) *OfflineItemsRepository {
	return &OfflineItemsRepository{dao: dao}
}

func (r *OfflineItemsRepository) GetAllItemsStream() *live.Stream[[]Item] {
	return r.dao.GetAllItems()
}

func (r *OfflineItemsRepository) GetItemStream(id int64) *live.Stream[*Item] {
	return r.dao.GetItem(id)
}

func (r *OfflineItemsRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	return r.dao.Insert(ctx, item)
}

func (r *OfflineItemsRepository) UpdateItem(ctx context.Context, item Item) error {
	return r.dao.Update(ctx, item)
}

func (r *OfflineItemsRepository) DeleteItem(ctx context.Context, item Item) error {
	return r.dao.Delete(ctx, item)
}

var _ ItemsRepository = (*OfflineItemsRepository)(nil)
