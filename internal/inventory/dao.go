// ABOUTME: Item data access object: the only code that knows the items SQL
// ABOUTME: Mutations go through Engine.Mutate, reads become live streams

package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/2389/inventory/internal/live"
	"github.com/2389/inventory/internal/store"
)

const (
	insertItemSQL = `
		INSERT INTO items (id, name, price, quantity, position)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM items))
		ON CONFLICT(id) DO NOTHING
	`

	updateItemSQL = `
		UPDATE items
		SET name = ?, price = ?, quantity = ?
		WHERE id = ?
	`

	deleteItemSQL = `DELETE FROM items WHERE id = ?`

	selectItemSQL = `
		SELECT id, name, price, quantity
		FROM items
		WHERE id = ?
	`

	selectAllItemsSQL = `
		SELECT id, name, price, quantity
		FROM items
		ORDER BY name ASC, position ASC
	`
)

// ItemDao runs the item queries against an engine.
type ItemDao struct {
	engine *store.Engine
	logger *slog.Logger
}

// NewItemDao creates a DAO. The engine must have been opened with ItemsTable.
// Pass nil logger for default.
func NewItemDao(engine *store.Engine, logger *slog.Logger) *ItemDao {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemDao{
		engine: engine,
		logger: logger.With("component", "item_dao"),
	}
}

// Insert adds item and returns its id. An ID of 0 lets the store assign the
// next id. If a row with the same explicit id exists, nothing changes and the
// returned id is 0. Any other constraint failure is an error.
func (d *ItemDao) Insert(ctx context.Context, item Item) (int64, error) {
	if err := item.Validate(); err != nil {
		return 0, err
	}

	var id int64
	_, err := d.engine.Mutate(ctx, ItemsTableName, func(ctx context.Context, tx *sql.Tx) (int64, error) {
		var explicitID any
		if item.ID != 0 {
			explicitID = item.ID
		}

		result, err := tx.ExecContext(ctx, insertItemSQL, explicitID, item.Name, item.Price, item.Quantity)
		if err != nil {
			return 0, fmt.Errorf("inserting item: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("getting rows affected: %w", err)
		}
		if rows == 0 {
			return 0, nil
		}

		id, err = result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("getting inserted id: %w", err)
		}
		return rows, nil
	})
	if err != nil {
		return 0, err
	}

	if id == 0 {
		d.logger.Debug("insert ignored, id exists", "id", item.ID)
	} else {
		d.logger.Debug("inserted item", "id", id, "name", item.Name)
	}
	return id, nil
}

// Update replaces name, price and quantity of the row with item.ID. A missing
// row is not an error.
func (d *ItemDao) Update(ctx context.Context, item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	rows, err := d.engine.Mutate(ctx, ItemsTableName, func(ctx context.Context, tx *sql.Tx) (int64, error) {
		result, err := tx.ExecContext(ctx, updateItemSQL, item.Name, item.Price, item.Quantity, item.ID)
		if err != nil {
			return 0, fmt.Errorf("updating item: %w", err)
		}
		return result.RowsAffected()
	})
	if err != nil {
		return err
	}

	d.logger.Debug("updated item", "id", item.ID, "rows", rows)
	return nil
}

// Delete removes the row with item.ID. A missing row is not an error.
func (d *ItemDao) Delete(ctx context.Context, item Item) error {
	rows, err := d.engine.Mutate(ctx, ItemsTableName, func(ctx context.Context, tx *sql.Tx) (int64, error) {
		result, err := tx.ExecContext(ctx, deleteItemSQL, item.ID)
		if err != nil {
			return 0, fmt.Errorf("deleting item: %w", err)
		}
		return result.RowsAffected()
	})
	if err != nil {
		return err
	}

	d.logger.Debug("deleted item", "id", item.ID, "rows", rows)
	return nil
}

// GetItem returns a live view of one row; nil means absent.
func (d *ItemDao) GetItem(id int64) *live.Stream[*Item] {
	return store.Live(d.engine, ItemsTableName, func(ctx context.Context, q store.Querier) (*Item, error) {
		return queryItem(ctx, q, id)
	})
}

// GetAllItems returns a live view of all rows ordered by name, then insertion.
func (d *ItemDao) GetAllItems() *live.Stream[[]Item] {
	return store.Live(d.engine, ItemsTableName, queryAllItems)
}

// FindItem reads one row once; nil means absent.
func (d *ItemDao) FindItem(ctx context.Context, id int64) (*Item, error) {
	var item *Item
	err := d.engine.Read(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		item, err = queryItem(ctx, q, id)
		return err
	})
	return item, err
}

// ListItems reads all rows once, in stream order.
func (d *ItemDao) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	err := d.engine.Read(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		items, err = queryAllItems(ctx, q)
		return err
	})
	return items, err
}

func queryItem(ctx context.Context, q store.Querier, id int64) (*Item, error) {
	var item Item
	err := q.QueryRowContext(ctx, selectItemSQL, id).Scan(
		&item.ID,
		&item.Name,
		&item.Price,
		&item.Quantity,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return &item, nil
}

func queryAllItems(ctx context.Context, q store.Querier) ([]Item, error) {
	rows, err := q.QueryContext(ctx, selectAllItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Price,
			&item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating item rows: %w", err)
	}

	return items, nil
}
