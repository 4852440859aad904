package intercom

import (
	"context"
	"sync"
)

// DefaultChannelCapacity is the per-subscriber backlog used when a
// Broadcaster is created with a non-positive capacity.
const DefaultChannelCapacity = 1000

// Publisher is the sending half of the publish channel as seen by the Engine.
type Publisher[T any] interface {
	// Send delivers v to every current subscriber and returns how many
	// subscribers it reached. Zero subscribers is not an error.
	Send(v T) int
}

// Broadcaster is a multi-subscriber notification channel with a bounded
// backlog per subscriber.
//
// Every subscriber receives each value sent after it subscribed. When a
// subscriber falls behind by more than the capacity, its oldest buffered
// value is dropped and counted (see Subscription.Missed). Consumers should
// treat the stream as "latest state eventually delivered", not as a
// guaranteed log of every state.
//
// Thread Safety: All methods are safe for concurrent use.
type Broadcaster[T any] struct {
	capacity int

	mu     sync.RWMutex
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// NewBroadcaster creates a Broadcaster whose subscribers each buffer up to
// capacity values. A non-positive capacity selects DefaultChannelCapacity.
func NewBroadcaster[T any](capacity int) *Broadcaster[T] {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &Broadcaster[T]{
		capacity: capacity,
		subs:     make(map[*Subscription[T]]struct{}),
	}
}

// Capacity returns the per-subscriber backlog size.
func (b *Broadcaster[T]) Capacity() int {
	return b.capacity
}

// Send delivers v to all subscribers without blocking.
//
// Returns:
//   - int: Number of subscribers the value was queued for (0 after Close)
func (b *Broadcaster[T]) Send(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	for sub := range b.subs {
		sub.push(v)
	}
	return len(b.subs)
}

// Subscribe registers a new consumer. Values sent before this call are not
// delivered to it. Subscribing to a closed Broadcaster returns a
// Subscription that is already closed.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		parent: b,
		buf:    make([]T, b.capacity),
		notify: make(chan struct{}, 1),
	}

	b.mu.Lock()
	if b.closed {
		sub.closed = true
	} else {
		b.subs[sub] = struct{}{}
	}
	b.mu.Unlock()

	return sub
}

// ReceiverCount returns the number of active subscriptions.
func (b *Broadcaster[T]) ReceiverCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops delivery. Subscribers can still drain values already buffered,
// after which Recv returns ErrClosed. Calling Close more than once is safe.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.markClosed()
		delete(b.subs, sub)
	}
}

// remove unregisters sub; no-op if already removed.
func (b *Broadcaster[T]) remove(sub *Subscription[T]) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Subscription is one consumer's view of a Broadcaster.
//
// Thread Safety: All methods are safe for concurrent use, though a single
// reader goroutine is the intended pattern.
type Subscription[T any] struct {
	parent *Broadcaster[T]

	mu     sync.Mutex
	buf    []T // ring buffer, len == capacity
	head   int
	size   int
	missed uint64
	closed bool

	// notify holds at most one pending wake-up for a blocked Recv.
	notify chan struct{}
}

// push appends v, overwriting the oldest value when the ring is full.
func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	capacity := len(s.buf)
	if s.size == capacity {
		s.buf[s.head] = v
		s.head = (s.head + 1) % capacity
		s.missed++
	} else {
		s.buf[(s.head+s.size)%capacity] = v
		s.size++
	}
	s.mu.Unlock()

	s.wake()
}

// pop removes the oldest value. Caller must hold s.mu and ensure size > 0.
func (s *Subscription[T]) pop() T {
	var zero T
	v := s.buf[s.head]
	s.buf[s.head] = zero
	s.head = (s.head + 1) % len(s.buf)
	s.size--
	return v
}

func (s *Subscription[T]) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

// Recv blocks until a value is available, the context is done, or the
// subscription is closed and drained.
//
// Returns:
//   - T: The oldest buffered value
//   - error: ctx.Err() on cancellation, ErrClosed once closed and empty
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		if s.size > 0 {
			v := s.pop()
			s.mu.Unlock()
			return v, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-s.notify:
		}
	}
}

// TryRecv returns the oldest buffered value without blocking.
// The boolean is false when nothing is buffered.
func (s *Subscription[T]) TryRecv() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == 0 {
		var zero T
		return zero, false
	}
	return s.pop(), true
}

// Len returns the number of buffered values.
func (s *Subscription[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Missed returns how many values were dropped because this subscriber fell
// more than the capacity behind.
func (s *Subscription[T]) Missed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missed
}

// Close unsubscribes. Buffered values remain readable.
func (s *Subscription[T]) Close() {
	s.parent.remove(s)
	s.markClosed()
}
