package worker

import "sync/atomic"

// idNode is a released ID waiting for reuse. A fresh node is allocated on
// every release; the GC keeps a node alive while any racing Acquire still
// references it, which is what makes the pop CAS below ABA-safe.
type idNode struct {
	id   int
	next *idNode
}

// Pool issues integer IDs that are unique among live guards and dense:
// an ID released by a finished worker is handed to the next acquirer
// before a new one is minted.
type Pool struct {
	free   atomic.Pointer[idNode]
	minted atomic.Int64
}

// NewPool creates an empty identity pool.
func NewPool() *Pool { return &Pool{} }

// Acquire claims an ID for the calling goroutine. The ID is stable until
// the returned guard is released.
func (p *Pool) Acquire() *Guard {
	for {
		n := p.free.Load()
		if n == nil {
			return &Guard{pool: p, id: int(p.minted.Add(1) - 1)}
		}
		if p.free.CompareAndSwap(n, n.next) {
			return &Guard{pool: p, id: n.id}
		}
	}
}

// Count returns an upper bound on all IDs ever minted. It never decreases,
// so it is safe to size per-worker arrays from it.
func (p *Pool) Count() int { return int(p.minted.Load()) }

// Guard owns one ID for the lifetime of a worker goroutine.
type Guard struct {
	pool *Pool
	id   int
}

// ID returns the guard's identity.
func (g *Guard) ID() int { return g.id }

// Release returns the ID to the pool for reuse. The guard must not be
// used afterwards.
func (g *Guard) Release() {
	n := &idNode{id: g.id}
	for {
		head := g.pool.free.Load()
		n.next = head
		if g.pool.free.CompareAndSwap(head, n) {
			return
		}
	}
}
