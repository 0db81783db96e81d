// ABOUTME: Item data type and the explicit schema of the items table
// ABOUTME: Identity is the store-assigned ID; other fields may repeat across rows

package inventory

import (
	"errors"
	"fmt"
	"math"

	"github.com/2389/inventory/internal/store"
)

// ItemsTableName is the name of the items table.
const ItemsTableName = "items"

// Item is one inventory row. ID 0 means "not yet assigned".
type Item struct {
	ID       int64
	Name     string
	Price    float64
	Quantity int
}

// ErrInvalidItem is returned when an item cannot be stored. It is a caller
// error, never a storage failure, and no backend changes anything.
var ErrInvalidItem = errors.New("invalid item")

// Validate reports whether item can be stored. Price must be finite: SQLite
// turns NaN into NULL, which the schema rejects.
func (i Item) Validate() error {
	if math.IsNaN(i.Price) || math.IsInf(i.Price, 0) {
		return fmt.Errorf("%w: price %v is not finite", ErrInvalidItem, i.Price)
	}
	return nil
}

// ItemsTable is the schema of the items table. position is an insertion
// sequence used to keep equal names in insertion order; it is not part of Item.
var ItemsTable = store.Table{
	Name: ItemsTableName,
	Columns: []store.Column{
		{Name: "id", Type: store.ColumnInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Type: store.ColumnText, NotNull: true, Collate: "BINARY"},
		{Name: "price", Type: store.ColumnReal, NotNull: true},
		{Name: "quantity", Type: store.ColumnInteger, NotNull: true},
		{Name: "position", Type: store.ColumnInteger, NotNull: true},
	},
	Indexes: []store.Index{
		{Name: "idx_items_name_position", Columns: []string{"name", "position"}},
	},
}
