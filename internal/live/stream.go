// ABOUTME: Live query streams: a Source re-emits values, Subscriptions deliver them in order
// ABOUTME: Each subscription owns an unbounded FIFO and one delivery goroutine

package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrSubscriptionEnded is returned by First when the subscription ended before
// delivering any value.
var ErrSubscriptionEnded = errors.New("subscription ended")

// Sink receives values from a Source. Emit and Fail never block.
type Sink[T any] interface {
	// Emit queues a value for delivery.
	Emit(v T)
	// Fail ends the subscription with err once queued values are delivered.
	Fail(err error)
}

// Source starts producing values into sink. It must emit the current value
// before returning, and returns a stop function that releases whatever the
// source registered. An error means nothing was registered.
type Source[T any] func(ctx context.Context, sink Sink[T]) (stop func(), err error)

// Stream is a continuously updating value. It is cold: nothing runs until
// Subscribe is called, and every subscriber gets its own registration.
type Stream[T any] struct {
	source Source[T]
}

// NewStream wraps a source.
func NewStream[T any](source Source[T]) *Stream[T] {
	return &Stream[T]{source: source}
}

// Subscribe registers onValue and returns immediately. onValue is called from a
// single goroutine, in emission order, starting with the current value. The
// subscription ends on Cancel, when ctx is done, or when the source fails.
func (s *Stream[T]) Subscribe(ctx context.Context, onValue func(T)) (*Subscription, error) {
	return s.start(ctx, newSubscription(), onValue)
}

// Chan adapts the stream to a channel. The channel is closed when the
// subscription ends; check Subscription.Err afterwards.
func (s *Stream[T]) Chan(ctx context.Context) (<-chan T, *Subscription, error) {
	ch := make(chan T)
	sub := newSubscription()
	_, err := s.start(ctx, sub, func(v T) {
		select {
		case ch <- v:
		case <-sub.cancelled:
		}
	})
	if err != nil {
		return nil, nil, err
	}

	go func() {
		<-sub.Done()
		close(ch)
	}()
	return ch, sub, nil
}

// First subscribes, returns the first value and cancels.
func (s *Stream[T]) First(ctx context.Context) (T, error) {
	var zero T

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, sub, err := s.Chan(ctx)
	if err != nil {
		return zero, err
	}
	defer sub.Cancel()

	select {
	case v, ok := <-ch:
		if ok {
			return v, nil
		}
		if err := sub.Err(); err != nil {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, ErrSubscriptionEnded
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Stream[T]) start(ctx context.Context, sub *Subscription, onValue func(T)) (*Subscription, error) {
	p := &pump[T]{
		sub:     sub,
		onValue: onValue,
		wake:    make(chan struct{}, 1),
	}

	stop, err := s.source(ctx, p)
	if err != nil {
		return nil, err
	}
	sub.stop = stop

	go p.run()

	// Auto-cleanup on context cancellation
	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Subscription is the handle of one active subscriber.
type Subscription struct {
	id string

	mu        sync.Mutex
	ended     bool
	err       error
	stop      func()
	stopOnce  sync.Once
	cancelled chan struct{}
	done      chan struct{}

	// deliverMu is held by the delivery goroutine from the active check until
	// the callback returns. delivering is set while the callback runs, so a
	// Cancel made from inside it does not wait on itself.
	deliverMu  sync.Mutex
	delivering atomic.Bool
}

func newSubscription() *Subscription {
	return &Subscription{
		id:        uuid.New().String(),
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id
}

// Cancel ends the subscription. Once Cancel has returned no callback starts;
// a callback that was already running when Cancel was called may finish. It is
// safe to call multiple times and from inside the callback.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	close(s.cancelled)
	s.mu.Unlock()

	s.release()

	// Wait out a delivery that passed its active check but has not started
	// the callback yet. The empty critical section is the barrier.
	if !s.delivering.Load() {
		s.deliverMu.Lock()
		s.deliverMu.Unlock()
	}
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription ended. It is nil while active and after a
// cancellation.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

// deliver calls fn unless the subscription has ended, reporting whether it did.
func (s *Subscription) deliver(fn func()) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if !s.active() {
		return false
	}
	s.delivering.Store(true)
	defer s.delivering.Store(false)
	fn()
	return true
}

func (s *Subscription) release() {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// finish is called by the delivery goroutine on exit.
func (s *Subscription) finish(err error) {
	s.mu.Lock()
	if !s.ended {
		s.ended = true
		s.err = err
		close(s.cancelled)
	}
	s.mu.Unlock()

	s.release()
	close(s.done)
}

// pump is the Sink handed to sources. It queues values without bound so a slow
// subscriber never loses an emission or stalls the writer.
type pump[T any] struct {
	sub     *Subscription
	onValue func(T)

	mu     sync.Mutex
	queue  []T
	failed error
	wake   chan struct{}
}

func (p *pump[T]) Emit(v T) {
	p.mu.Lock()
	if p.failed != nil {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, v)
	p.mu.Unlock()
	p.signal()
}

func (p *pump[T]) Fail(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	if p.failed == nil {
		p.failed = err
	}
	p.mu.Unlock()
	p.signal()
}

func (p *pump[T]) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest queued value. When the queue is empty it reports the
// failure, if any.
func (p *pump[T]) next() (v T, ok bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return v, false, p.failed
	}
	v = p.queue[0]
	var zero T
	p.queue[0] = zero
	p.queue = p.queue[1:]
	return v, true, nil
}

func (p *pump[T]) run() {
	var err error
	defer func() { p.sub.finish(err) }()

	for {
		select {
		case <-p.sub.cancelled:
			return
		case <-p.wake:
		}

		for {
			v, ok, failErr := p.next()
			if !ok {
				if failErr != nil {
					err = failErr
					return
				}
				break
			}
			if !p.sub.deliver(func() { p.onValue(v) }) {
				return
			}
		}
	}
}
