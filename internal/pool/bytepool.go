package pool

import "sync"

// BytePool is a pool of reusable []byte buffers for the read/send hot path,
// adapted directly from the teacher's internal/login/bufpool.go.
type BytePool struct {
	pool sync.Pool
}

// NewBytePool creates a pool whose buffers start at defaultCap capacity.
func NewBytePool(defaultCap int) *BytePool {
	p := &BytePool{}
	p.pool.New = func() any {
		return make([]byte, 0, defaultCap)
	}
	return p
}

// Get returns a slice of length size, reusing a pooled buffer when its
// capacity is sufficient.
func (p *BytePool) Get(size int) []byte {
	b := p.pool.Get().([]byte)
	if cap(b) < size {
		p.pool.Put(b)
		return make([]byte, size)
	}
	b = b[:size]
	clear(b)
	return b
}

// Put returns a buffer to the pool.
func (p *BytePool) Put(b []byte) {
	if b == nil {
		return
	}
	p.pool.Put(b[:0])
}
