package lfstack

import (
	"sync"
	"sync/atomic"

	"parlay/hazard"
)

// node carries the value, the stack link, and the length of the list from
// this node down, so Size is O(1).
type node[T any] struct {
	hazard.Link
	next  *node[T]
	size  int64
	value T
	owner *Stack[T]
}

// Destroy poisons the node and returns it to its stack's pool. It runs
// only once the hazard domain has confirmed no concurrent popper still
// references the node, so reuse cannot corrupt an in-flight pop.
func (n *node[T]) Destroy() {
	var zero T
	n.value = zero
	n.next = nil
	n.size = 0
	owner := n.owner
	n.owner = nil
	owner.nodes.Put(n)
}

// Stack is a lock-free stack of values. All operations take the calling
// worker's hazard handle; push and pop are lock-free, Size is wait-free
// apart from the protect retry.
type Stack[T any] struct {
	head  atomic.Pointer[node[T]]
	dom   *hazard.Domain
	nodes sync.Pool
}

// New creates an empty stack that retires popped nodes through dom.
func New[T any](dom *hazard.Domain) *Stack[T] {
	s := &Stack[T]{dom: dom}
	s.nodes.New = func() any { return new(node[T]) }
	return s
}

// Push adds v on top. The current head is protected so its cached length
// can be read without racing a popper's retire.
func (s *Stack[T]) Push(h *hazard.Handle, v T) {
	n := s.nodes.Get().(*node[T])
	n.value = v
	n.owner = s
	for {
		old := hazard.Protect(h, &s.head)
		n.next = old
		if old == nil {
			n.size = 1
		} else {
			n.size = old.size + 1
		}
		if s.head.CompareAndSwap(old, n) {
			h.Release()
			return
		}
	}
}

// Pop removes and returns the top value. The popped node is retired, not
// freed: its memory is reused only after no concurrent Pop can still be
// dereferencing it.
func (s *Stack[T]) Pop(h *hazard.Handle) (T, bool) {
	for {
		old := hazard.Protect(h, &s.head)
		if old == nil {
			h.Release()
			var zero T
			return zero, false
		}
		if s.head.CompareAndSwap(old, old.next) {
			v := old.value
			h.Release()
			hazard.Retire(h, old)
			return v, true
		}
	}
}

// Size returns the number of values on the stack via the head node's
// cached length.
func (s *Stack[T]) Size(h *hazard.Handle) int64 {
	old := hazard.Protect(h, &s.head)
	if old == nil {
		h.Release()
		return 0
	}
	n := old.size
	h.Release()
	return n
}

// Empty reports whether the stack has no values.
func (s *Stack[T]) Empty() bool { return s.head.Load() == nil }
