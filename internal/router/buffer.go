package router

import (
	"context"
	"errors"
	"sync"
)

// ErrBufferClosed is returned by Receive once the buffer is closed and empty.
var ErrBufferClosed = errors.New("buffer closed")

// GrowableBuffer is an unbounded FIFO queue shared between the router and a
// writer. It is backed by a ring that doubles when it reaches 70% occupancy,
// so Send never blocks the routing goroutine.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	ring   []T
	head   int
	size   int
	closed bool

	// ready holds at most one token. It is signalled on Send and closed on
	// Close so that Receive can wait alongside a context.
	ready chan struct{}

	received int64
	sent     int64
	resizes  int
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalSent     int64
	ResizeCount   int
}

// NewGrowableBuffer creates a buffer with the given initial capacity.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &GrowableBuffer[T]{
		ring:  make([]T, initialCapacity),
		ready: make(chan struct{}, 1),
	}
}

// Send appends an item. Returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := len(b.ring) * 70 / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.size+1 >= threshold {
		b.resize(len(b.ring) * 2)
	}

	b.ring[(b.head+b.size)%len(b.ring)] = item
	b.size++
	b.received++
	b.signalLocked()
	return true
}

// Receive removes the oldest item, waiting until one is available.
// Items queued before Close are still delivered; afterwards Receive returns
// ErrBufferClosed. A cancelled ctx returns ctx.Err().
func (b *GrowableBuffer[T]) Receive(ctx context.Context) (T, error) {
	for {
		b.mu.Lock()
		if b.size > 0 {
			item := b.popLocked()
			if b.size > 0 {
				b.signalLocked()
			}
			b.mu.Unlock()
			return item, nil
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			var zero T
			return zero, ErrBufferClosed
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-b.ready:
		}
	}
}

// TryReceive removes the oldest item without waiting.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.popLocked(), true
}

// DrainTo removes up to max items (all of them when max <= 0).
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}

	n := b.size
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.popLocked()
	}
	return out
}

// Close stops accepting items and wakes every waiting receiver.
// It is safe to call more than once.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.ready)
}

// Len returns the number of queued items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the current ring capacity.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.size,
		Capacity:      len(b.ring),
		TotalReceived: b.received,
		TotalSent:     b.sent,
		ResizeCount:   b.resizes,
	}
}

func (b *GrowableBuffer[T]) popLocked() T {
	var zero T
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.size--
	b.sent++
	return item
}

func (b *GrowableBuffer[T]) signalLocked() {
	if b.closed {
		return
	}
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// resize copies the queued items to the front of a new ring.
func (b *GrowableBuffer[T]) resize(capacity int) {
	ring := make([]T, capacity)
	for i := 0; i < b.size; i++ {
		ring[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.ring = ring
	b.head = 0
	b.resizes++
}
