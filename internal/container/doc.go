// Package container wires the configured storage backend into an
// inventory.ItemsRepository.
//
// The backend comes from config.StorageConfig.Backend:
//
//   - sqlite: a shared store.Engine (one per database file per process) behind
//     an OfflineItemsRepository
//   - memory: a MemoryItemsRepository
//   - remote: a remote.Client connected to an inventory-server
//
// Binaries create one AppDataContainer and Close it on exit. Code that cannot
// thread a container through uses SharedRepository, and tests call Reset
// between cases.
package container
