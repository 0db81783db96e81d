// ABOUTME: Behavioral contract every ItemsRepository implementation must satisfy
// ABOUTME: Shared by the SQLite, in-memory and remote repository tests

package inventorytest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/inventory/internal/inventory"
	"github.com/2389/inventory/internal/live"
	"github.com/2389/inventory/internal/store"
)

const (
	waitTimeout = 5 * time.Second
	quietPeriod = 150 * time.Millisecond
)

// Recorder collects the emissions of one subscription.
type Recorder[T any] struct {
	ch  chan T
	Sub *live.Subscription
}

// Watch subscribes to stream for the duration of the test.
func Watch[T any](t *testing.T, stream *live.Stream[T]) *Recorder[T] {
	t.Helper()

	r := &Recorder[T]{ch: make(chan T, 1024)}
	sub, err := stream.Subscribe(t.Context(), func(v T) {
		r.ch <- v
	})
	require.NoError(t, err)
	r.Sub = sub
	t.Cleanup(sub.Cancel)
	return r
}

// Next waits for the next emission.
func (r *Recorder[T]) Next(t *testing.T) T {
	t.Helper()
	select {
	case v := <-r.ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for emission")
	}
	var zero T
	return zero
}

// None asserts that nothing is emitted for a short while.
func (r *Recorder[T]) None(t *testing.T) {
	t.Helper()
	select {
	case v := <-r.ch:
		t.Fatalf("unexpected emission: %+v", v)
	case <-time.After(quietPeriod):
	}
}

// Run runs the contract against repositories built by newRepo. Every subtest
// gets a fresh, empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) inventory.ItemsRepository) {
	t.Run("WidgetScenario", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		all := Watch(t, repo.GetAllItemsStream())
		assert.Empty(t, all.Next(t))

		id, err := repo.InsertItem(ctx, inventory.Item{Name: "Widget", Price: 2.50, Quantity: 5})
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
		assert.Equal(t, []inventory.Item{{ID: 1, Name: "Widget", Price: 2.50, Quantity: 5}}, all.Next(t))

		require.NoError(t, repo.UpdateItem(ctx, inventory.Item{ID: 1, Name: "Widget", Price: 2.50, Quantity: 3}))
		assert.Equal(t, []inventory.Item{{ID: 1, Name: "Widget", Price: 2.50, Quantity: 3}}, all.Next(t))

		require.NoError(t, repo.DeleteItem(ctx, inventory.Item{ID: 1}))
		assert.Empty(t, all.Next(t))
	})

	t.Run("AssignsDistinctSequentialIDs", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		for want := int64(1); want <= 5; want++ {
			id, err := repo.InsertItem(ctx, inventory.Item{Name: "same", Price: 1, Quantity: 1})
			require.NoError(t, err)
			assert.Equal(t, want, id)
		}

		items := first(t, repo.GetAllItemsStream())
		require.Len(t, items, 5)
		seen := map[int64]bool{}
		for _, item := range items {
			assert.False(t, seen[item.ID], "duplicate id %d", item.ID)
			seen[item.ID] = true
		}
	})

	t.Run("IDsContinuePastExplicitAndDeleted", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		id, err := repo.InsertItem(ctx, inventory.Item{ID: 10, Name: "explicit"})
		require.NoError(t, err)
		assert.Equal(t, int64(10), id)

		id, err = repo.InsertItem(ctx, inventory.Item{Name: "auto"})
		require.NoError(t, err)
		assert.Equal(t, int64(11), id)

		require.NoError(t, repo.DeleteItem(ctx, inventory.Item{ID: 11}))
		id, err = repo.InsertItem(ctx, inventory.Item{Name: "after delete"})
		require.NoError(t, err)
		assert.Equal(t, int64(12), id, "ids are never reused")
	})

	t.Run("DuplicateExplicitIDIsIgnored", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		id, err := repo.InsertItem(ctx, inventory.Item{ID: 7, Name: "first", Price: 1, Quantity: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)

		all := Watch(t, repo.GetAllItemsStream())
		assert.Len(t, all.Next(t), 1)

		id, err = repo.InsertItem(ctx, inventory.Item{ID: 7, Name: "second", Price: 2, Quantity: 2})
		require.NoError(t, err, "conflicting insert is not an error")
		assert.Equal(t, int64(0), id)
		all.None(t)

		item := first(t, repo.GetItemStream(7))
		require.NotNil(t, item)
		assert.Equal(t, inventory.Item{ID: 7, Name: "first", Price: 1, Quantity: 1}, *item)
	})

	t.Run("OrdersByNameThenInsertion", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		for _, item := range []inventory.Item{
			{Name: "b"},
			{Name: "a", Quantity: 1},
			{Name: "B"},
			{Name: "a", Quantity: 2},
			{Name: "A"},
			{Name: "a", Quantity: 3},
		} {
			_, err := repo.InsertItem(ctx, item)
			require.NoError(t, err)
		}

		items := first(t, repo.GetAllItemsStream())
		var got []string
		for _, item := range items {
			got = append(got, fmt.Sprintf("%s%d", item.Name, item.Quantity))
		}
		assert.Equal(t, []string{"A0", "B0", "a1", "a2", "a3", "b0"}, got)
	})

	t.Run("UpdateMovesItemToSortPosition", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		for _, name := range []string{"apple", "banana", "cherry"} {
			_, err := repo.InsertItem(ctx, inventory.Item{Name: name, Price: 1, Quantity: 1})
			require.NoError(t, err)
		}

		all := Watch(t, repo.GetAllItemsStream())
		all.Next(t)

		require.NoError(t, repo.UpdateItem(ctx, inventory.Item{ID: 1, Name: "zucchini", Price: 4.25, Quantity: 9}))
		items := all.Next(t)
		require.Len(t, items, 3)
		assert.Equal(t, "banana", items[0].Name)
		assert.Equal(t, "cherry", items[1].Name)
		assert.Equal(t, inventory.Item{ID: 1, Name: "zucchini", Price: 4.25, Quantity: 9}, items[2])
	})

	t.Run("ItemStreamFollowsOneRow", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		one := Watch(t, repo.GetItemStream(1))
		assert.Nil(t, one.Next(t), "missing item is absent, not an error")

		_, err := repo.InsertItem(ctx, inventory.Item{Name: "Gadget", Price: 9.99, Quantity: 2})
		require.NoError(t, err)
		got := one.Next(t)
		require.NotNil(t, got)
		assert.Equal(t, inventory.Item{ID: 1, Name: "Gadget", Price: 9.99, Quantity: 2}, *got)

		require.NoError(t, repo.UpdateItem(ctx, inventory.Item{ID: 1, Name: "Gadget", Price: 8.75, Quantity: 4}))
		got = one.Next(t)
		require.NotNil(t, got)
		assert.Equal(t, inventory.Item{ID: 1, Name: "Gadget", Price: 8.75, Quantity: 4}, *got)

		require.NoError(t, repo.DeleteItem(ctx, inventory.Item{ID: 1}))
		assert.Nil(t, one.Next(t))
	})

	t.Run("MissingRowMutationsAreSilentNoOps", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		all := Watch(t, repo.GetAllItemsStream())
		assert.Empty(t, all.Next(t))

		require.NoError(t, repo.UpdateItem(ctx, inventory.Item{ID: 42, Name: "ghost"}))
		require.NoError(t, repo.DeleteItem(ctx, inventory.Item{ID: 42}))
		all.None(t)

		_, err := repo.InsertItem(ctx, inventory.Item{Name: "real"})
		require.NoError(t, err)
		items := all.Next(t)
		require.Len(t, items, 1)
		assert.Equal(t, "real", items[0].Name)
	})

	t.Run("KeepsFullPricePrecision", func(t *testing.T) {
		repo := newRepo(t)
		price := 0.1 + 0.2

		id, err := repo.InsertItem(t.Context(), inventory.Item{Name: "precise", Price: price, Quantity: 1})
		require.NoError(t, err)

		item := first(t, repo.GetItemStream(id))
		require.NotNil(t, item)
		assert.Equal(t, price, item.Price)
	})

	t.Run("RejectsNonFinitePrice", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		id, err := repo.InsertItem(ctx, inventory.Item{Name: "kept", Price: 1, Quantity: 1})
		require.NoError(t, err)

		all := Watch(t, repo.GetAllItemsStream())
		assert.Len(t, all.Next(t), 1)

		for _, price := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			got, err := repo.InsertItem(ctx, inventory.Item{Name: "bad", Price: price})
			require.ErrorIs(t, err, inventory.ErrInvalidItem)
			assert.NotErrorIs(t, err, store.ErrStorageUnavailable)
			assert.Equal(t, int64(0), got)

			err = repo.UpdateItem(ctx, inventory.Item{ID: id, Name: "bad", Price: price})
			require.ErrorIs(t, err, inventory.ErrInvalidItem)
			assert.NotErrorIs(t, err, store.ErrStorageUnavailable)
		}
		all.None(t)

		item := first(t, repo.GetItemStream(id))
		require.NotNil(t, item)
		assert.Equal(t, inventory.Item{ID: id, Name: "kept", Price: 1, Quantity: 1}, *item)
	})

	t.Run("ConcurrentUpdatesNeverInterleaveFields", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		const writers, rounds = 4, 25

		id, err := repo.InsertItem(ctx, inventory.Item{Name: "p0", Price: 0, Quantity: 0})
		require.NoError(t, err)

		consistent := func(item *inventory.Item) bool {
			return item != nil &&
				item.Name == fmt.Sprintf("p%d", item.Quantity) &&
				item.Price == float64(item.Quantity)
		}

		var torn atomic.Int64
		var seen atomic.Int64
		sub, err := repo.GetItemStream(id).Subscribe(ctx, func(item *inventory.Item) {
			seen.Add(1)
			if !consistent(item) {
				torn.Add(1)
			}
		})
		require.NoError(t, err)
		t.Cleanup(sub.Cancel)

		stop := make(chan struct{})
		readErrs := make(chan error, 1)
		var readers sync.WaitGroup
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				readCtx, cancel := context.WithTimeout(ctx, waitTimeout)
				item, err := repo.GetItemStream(id).First(readCtx)
				cancel()
				if err != nil {
					readErrs <- err
					return
				}
				if !consistent(item) {
					torn.Add(1)
				}
			}
		}()

		var wg sync.WaitGroup
		errs := make(chan error, writers*rounds)
		for w := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for r := range rounds {
					n := w*rounds + r + 1
					errs <- repo.UpdateItem(ctx, inventory.Item{ID: id, Name: fmt.Sprintf("p%d", n), Price: float64(n), Quantity: n})
				}
			}()
		}
		wg.Wait()
		close(errs)
		close(stop)
		readers.Wait()

		for err := range errs {
			require.NoError(t, err)
		}
		select {
		case err := <-readErrs:
			require.NoError(t, err)
		default:
		}

		// Initial value plus one emission per update
		assert.Eventually(t, func() bool {
			return seen.Load() == writers*rounds+1
		}, waitTimeout, 10*time.Millisecond)
		assert.Zero(t, torn.Load(), "observed a row with fields from different updates")
		assert.True(t, consistent(first(t, repo.GetItemStream(id))))
	})

	t.Run("OneEmissionPerCommitInOrder", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		id, err := repo.InsertItem(ctx, inventory.Item{Name: "counter"})
		require.NoError(t, err)

		one := Watch(t, repo.GetItemStream(id))
		require.NotNil(t, one.Next(t))

		for q := 1; q <= 20; q++ {
			require.NoError(t, repo.UpdateItem(ctx, inventory.Item{ID: id, Name: "counter", Quantity: q}))
		}
		for q := 1; q <= 20; q++ {
			got := one.Next(t)
			require.NotNil(t, got)
			assert.Equal(t, q, got.Quantity)
		}
		one.None(t)
	})

	t.Run("ConcurrentInsertsAreAllKept", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		const n = 50

		all := Watch(t, repo.GetAllItemsStream())
		assert.Empty(t, all.Next(t))

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.InsertItem(ctx, inventory.Item{Name: fmt.Sprintf("item-%02d", i), Price: float64(i), Quantity: i})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		// Every commit produced exactly one emission, each one row longer
		for want := 1; want <= n; want++ {
			assert.Len(t, all.Next(t), want)
		}
		all.None(t)

		items := first(t, repo.GetAllItemsStream())
		require.Len(t, items, n)
		ids := map[int64]bool{}
		names := map[string]bool{}
		for _, item := range items {
			ids[item.ID] = true
			names[item.Name] = true
		}
		assert.Len(t, ids, n)
		assert.Len(t, names, n)
	})

	t.Run("CancelledSubscriptionStopsOthersContinue", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		cancelled := Watch(t, repo.GetAllItemsStream())
		active := Watch(t, repo.GetAllItemsStream())
		cancelled.Next(t)
		active.Next(t)

		cancelled.Sub.Cancel()
		select {
		case <-cancelled.Sub.Done():
		case <-time.After(waitTimeout):
			t.Fatal("cancelled subscription did not finish")
		}
		assert.NoError(t, cancelled.Sub.Err())

		_, err := repo.InsertItem(ctx, inventory.Item{Name: "after cancel"})
		require.NoError(t, err)

		assert.Len(t, active.Next(t), 1)
		cancelled.None(t)

		cancelled.Sub.Cancel() // idempotent
	})

	t.Run("ContextCancellationEndsSubscription", func(t *testing.T) {
		repo := newRepo(t)
		subCtx, cancel := context.WithCancel(t.Context())

		received := make(chan []inventory.Item, 16)
		sub, err := repo.GetAllItemsStream().Subscribe(subCtx, func(items []inventory.Item) {
			received <- items
		})
		require.NoError(t, err)
		<-received

		cancel()
		select {
		case <-sub.Done():
		case <-time.After(waitTimeout):
			t.Fatal("subscription not ended by context cancellation")
		}

		_, err = repo.InsertItem(t.Context(), inventory.Item{Name: "unseen"})
		require.NoError(t, err)
		select {
		case items := <-received:
			t.Fatalf("emission after cancellation: %+v", items)
		case <-time.After(quietPeriod):
		}
	})
}

func first[T any](t *testing.T, stream *live.Stream[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), waitTimeout)
	defer cancel()
	v, err := stream.First(ctx)
	require.NoError(t, err)
	return v
}
