// Package live provides continuously updating query results.
//
// # Streams
//
// A Stream wraps a Source. Subscribing starts the source, which emits the
// current value immediately and again after every relevant change:
//
//	sub, err := stream.Subscribe(ctx, func(items []inventory.Item) {
//		render(items)
//	})
//	defer sub.Cancel()
//
// Values are delivered on one goroutine per subscription, in the order the
// source emitted them. The per-subscription queue is unbounded: a slow
// subscriber delays only itself and never loses a value.
//
// # Hub
//
// Hub fans change notifications out to observers registered per topic. Storage
// backends notify the hub after each committed mutation while still holding
// their write lock, which makes the notification order equal to commit order.
package live
