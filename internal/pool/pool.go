// Package pool implements a typed, bounded cache of reusable packet
// buffers, generalizing the teacher's sync.Pool-backed BytePool (see
// DESIGN.md) to any Poolable packet type per spec.md §4.3 and the redesign
// note in spec.md §9 ("thread-unsafe pool with implicit reset" → "explicit
// Poolable capability requiring a reset() method").
package pool

import "sync"

// Poolable is implemented by any packet type that can be recycled. Reset
// must zero payload fields and restore the packet to a class-identifying
// zero state so a later Get never observes stale data.
type Poolable interface {
	Reset()
}

// Pool is a bounded, thread-safe cache of *T, keyed implicitly by the type
// parameter — one Pool instance per packet class.
type Pool[T Poolable] struct {
	new func() T

	mu       sync.Mutex
	items    []T
	maxItems int
}

// New creates a Pool whose items are produced by newFn when empty.
// maxCapacity bounds how many returned items are retained; 0 means
// unbounded.
func New[T Poolable](newFn func() T, maxCapacity int) *Pool[T] {
	return &Pool[T]{new: newFn, maxItems: maxCapacity}
}

// Get returns an item from the pool, or a freshly constructed one if the
// pool is empty.
func (p *Pool[T]) Get() T {
	p.mu.Lock()
	n := len(p.items)
	if n == 0 {
		p.mu.Unlock()
		return p.new()
	}
	item := p.items[n-1]
	p.items = p.items[:n-1]
	p.mu.Unlock()
	return item
}

// Put resets item and returns it to the pool. If the pool is already at
// capacity, item is discarded (left for the garbage collector).
func (p *Pool[T]) Put(item T) {
	item.Reset()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxItems > 0 && len(p.items) >= p.maxItems {
		return
	}
	p.items = append(p.items, item)
}

// SetMaxCapacity changes the retained-item bound. 0 means unbounded.
func (p *Pool[T]) SetMaxCapacity(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxItems = n
}

// Prealloc populates the pool with n freshly constructed items, up to
// maxItems (if bounded).
func (p *Pool[T]) Prealloc(n int) {
	for i := 0; i < n; i++ {
		p.Put(p.new())
	}
}
