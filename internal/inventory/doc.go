// Package inventory is the item data layer.
//
// # Layers
//
//   - Item and ItemsTable: the data type and its explicit table schema
//   - ItemDao: the item SQL, run through a store.Engine
//   - ItemsRepository: what callers use; streams plus three mutations
//
// Two implementations live here:
//
//	repo := inventory.NewOfflineItemsRepository(inventory.NewItemDao(engine, logger))
//	repo := inventory.NewMemoryItemsRepository(logger)
//
// A third, remote.Client, talks to an inventory-server over gRPC.
//
// # Streams
//
// GetAllItemsStream and GetItemStream return live.Streams. A subscriber first
// receives the current value and then one value per committed insert, update or
// delete that changed a row, in commit order:
//
//	sub, err := repo.GetAllItemsStream().Subscribe(ctx, func(items []inventory.Item) {
//		fmt.Println(len(items), "items")
//	})
//
// # Soft Outcomes
//
// Lookups of missing ids yield nil rather than an error. Inserting an explicit
// id that exists, and updating or deleting a missing id, succeed without
// changing anything and without notifying subscribers.
package inventory
