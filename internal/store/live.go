// ABOUTME: Turns a read query into a live.Stream that re-runs after each commit
// ABOUTME: A failing re-run ends the subscription with the storage error

package store

import (
	"context"
	"sync/atomic"

	"github.com/2389/inventory/internal/live"
)

// QueryFunc reads a value from the database.
type QueryFunc[T any] func(ctx context.Context, q Querier) (T, error)

// Live returns a stream of query results over table. Each subscriber gets the
// current result, then one fresh result per commit that changed table.
func Live[T any](e *Engine, table string, query QueryFunc[T]) *live.Stream[T] {
	return live.NewStream(func(ctx context.Context, sink live.Sink[T]) (func(), error) {
		var failed atomic.Bool

		run := func() error {
			var v T
			err := e.Read(ctx, func(ctx context.Context, q Querier) error {
				var err error
				v, err = query(ctx, q)
				return err
			})
			if err != nil {
				return err
			}
			sink.Emit(v)
			return nil
		}

		return e.Watch(table, run, func(live.Change) {
			if failed.Load() {
				return
			}
			if err := run(); err != nil {
				// The subscriber is going away; its cancellation stops us
				if ctx.Err() != nil {
					return
				}
				failed.Store(true)
				e.logger.Warn("live query failed", "table", table, "error", err)
				sink.Fail(err)
			}
		})
	})
}
