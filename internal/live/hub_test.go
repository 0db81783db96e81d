// ABOUTME: Tests for the change notification hub
// ABOUTME: Covers watch, unwatch, topic isolation, sequencing, close and concurrency

package live

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_ObserverReceivesChange(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var got []Change
	h.Watch("items", func(c Change) { got = append(got, c) })

	sent := h.Notify("items", 3)

	require.Len(t, got, 1)
	assert.Equal(t, sent, got[0])
	assert.Equal(t, "items", got[0].Topic)
	assert.Equal(t, int64(3), got[0].Rows)
	assert.Equal(t, uint64(1), got[0].Seq)
}

func TestHub_MultipleObserversSameTopic(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var calls atomic.Int32
	for range 3 {
		h.Watch("items", func(Change) { calls.Add(1) })
	}

	h.Notify("items", 1)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, h.Count("items"))
}

func TestHub_TopicsAreIsolated(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var items, orders int
	h.Watch("items", func(Change) { items++ })
	h.Watch("orders", func(Change) { orders++ })

	h.Notify("items", 1)

	assert.Equal(t, 1, items)
	assert.Equal(t, 0, orders, "observer of another topic should not be called")
}

func TestHub_SeqIncreasesAcrossTopics(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	a := h.Notify("a", 1)
	b := h.Notify("b", 1)
	c := h.Notify("a", 1)

	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(2), b.Seq)
	assert.Equal(t, uint64(3), c.Seq)
}

func TestHub_UnwatchStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var calls int
	id := h.Watch("items", func(Change) { calls++ })
	require.NotEmpty(t, id)

	h.Unwatch("items", id)
	h.Notify("items", 1)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, h.Count("items"))
}

func TestHub_UnwatchUnknownIsNoop(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	id := h.Watch("items", func(Change) {})

	// Should not panic
	h.Unwatch("items", "nonexistent")
	h.Unwatch("other", id)
	h.Unwatch("items", id)
	h.Unwatch("items", id)

	assert.Equal(t, 0, h.Count("items"))
}

func TestHub_ObserverMayUnwatchItself(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var calls int
	var id string
	id = h.Watch("items", func(Change) {
		calls++
		h.Unwatch("items", id)
	})

	h.Notify("items", 1)
	h.Notify("items", 1)

	assert.Equal(t, 1, calls)
}

func TestHub_CloseDropsObservers(t *testing.T) {
	h := NewHub(nil)

	var calls int
	h.Watch("items", func(Change) { calls++ })
	h.Close()

	h.Notify("items", 1)
	assert.Equal(t, 0, calls)

	id := h.Watch("items", func(Change) { calls++ })
	assert.Empty(t, id, "watching a closed hub should be ignored")
	h.Notify("items", 1)
	assert.Equal(t, 0, calls)
}

func TestHub_ConcurrentWatchNotify(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var calls atomic.Int64
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := h.Watch("items", func(Change) { calls.Add(1) })
			h.Notify("items", 1)
			h.Unwatch("items", id)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.Count("items"))
	// Each goroutine at least saw its own notification
	assert.GreaterOrEqual(t, calls.Load(), int64(20))
}
