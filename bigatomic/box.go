package bigatomic

import (
	"reflect"
	"sync/atomic"
	"unsafe"

	"parlay/hazard"
)

// node is a heap-boxed authoritative copy of the value. dirty is true
// until the inline buffer has caught up with this node; it never goes
// back to true, which is what makes the unprotected fast-path check
// sound. Nodes are garbage-collected, never pooled, so a stale reader
// touching a retired node's flag reads valid memory.
type node[T any] struct {
	hazard.Link
	value T
	dirty atomic.Bool
}

// Destroy poisons the stale copy. It runs only once the hazard domain has
// confirmed no in-flight slow-path load still references this node.
func (n *node[T]) Destroy() {
	var zero T
	n.value = zero
}

// Box holds one value of T. The zero Box is not usable; construct with New.
type Box[T any] struct {
	dom  *hazard.Domain
	seq  atomic.Uint64   // even = inline buffer stable
	fast []atomic.Uint64 // inline copy, whole words
	ind  atomic.Pointer[node[T]]
}

// New creates a box holding initial. It panics if T contains pointers.
func New[T any](dom *hazard.Domain, initial T) *Box[T] {
	var zero T
	if typeHasPointers(reflect.TypeOf(&zero).Elem()) {
		panic("bigatomic: value type must not contain pointers")
	}
	words := (unsafe.Sizeof(zero) + 7) / 8
	b := &Box[T]{dom: dom, fast: make([]atomic.Uint64, words)}
	b.writeFast(&initial)
	b.ind.Store(&node[T]{value: initial})
	return b
}

// Load returns the current value. Wait-free when no store is in flight;
// otherwise it copies out of the hazard-protected indirect node.
func (b *Box[T]) Load(h *hazard.Handle) T {
	s := b.seq.Load()
	if s&1 == 0 {
		var v T
		b.readFast(&v)
		n := b.ind.Load()
		if !n.dirty.Load() && b.seq.Load() == s {
			return v
		}
	}
	n := hazard.Protect(h, &b.ind)
	v := n.value
	h.Release()
	// opportunistically bring the fast path back
	b.trySync(s, n, &v)
	return v
}

// Store publishes v. It never blocks: the value is authoritative the
// moment the indirect pointer is swapped; the inline buffer is synced
// best-effort afterwards.
func (b *Box[T]) Store(h *hazard.Handle, v T) {
	s := b.seq.Load()
	n := &node[T]{value: v}
	n.dirty.Store(true)
	old := b.ind.Swap(n)
	hazard.Retire(h, old)
	b.trySync(s, n, &v)
}

// CompareAndSwap installs desired if the current value equals expected,
// comparing representation bytes. It retries only when the indirect
// pointer moves underneath it, so some caller always makes progress.
func (b *Box[T]) CompareAndSwap(h *hazard.Handle, expected, desired T) bool {
	for {
		s := b.seq.Load()
		n := hazard.Protect(h, &b.ind)
		cur := n.value
		if !bytesEqual(&cur, &expected) {
			h.Release()
			return false
		}
		nn := &node[T]{value: desired}
		nn.dirty.Store(true)
		if b.ind.CompareAndSwap(n, nn) {
			h.Release()
			hazard.Retire(h, n)
			b.trySync(s, nn, &desired)
			return true
		}
		h.Release()
	}
}

// trySync copies v, the value of node n, into the inline buffer under a
// seqlock write and clears n's dirty mark if n is still current. The
// version snapshot s must predate the swap that installed n: a sync that
// completed in between bumps the version and fails the CAS here, which
// is what keeps a stale value from overwriting a newer sync.
func (b *Box[T]) trySync(s uint64, n *node[T], v *T) {
	if s&1 != 0 {
		return
	}
	if !b.seq.CompareAndSwap(s, s+1) {
		return
	}
	b.writeFast(v)
	b.seq.Store(s + 2)
	if b.ind.Load() == n {
		n.dirty.Store(false)
	}
}

// writeFast copies *v into the word buffer. Caller holds the seqlock.
func (b *Box[T]) writeFast(v *T) {
	bs := unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
	for i := range b.fast {
		var w uint64
		for j := 0; j < 8 && i*8+j < len(bs); j++ {
			w |= uint64(bs[i*8+j]) << (8 * j)
		}
		b.fast[i].Store(w)
	}
}

// readFast copies the word buffer into *v. The caller validates the
// version afterwards; a torn read is discarded there.
func (b *Box[T]) readFast(v *T) {
	bs := unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
	for i := range b.fast {
		w := b.fast[i].Load()
		for j := 0; j < 8 && i*8+j < len(bs); j++ {
			bs[i*8+j] = byte(w >> (8 * j))
		}
	}
}

func bytesEqual[T any](a, b *T) bool {
	x := unsafe.Slice((*byte)(unsafe.Pointer(a)), unsafe.Sizeof(*a))
	y := unsafe.Slice((*byte)(unsafe.Pointer(b)), unsafe.Sizeof(*b))
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// typeHasPointers walks t and reports whether any part of it is a
// pointer-carrying kind.
func typeHasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Slice, reflect.String, reflect.Interface:
		return true
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if typeHasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	case reflect.Array:
		return t.Len() > 0 && typeHasPointers(t.Elem())
	default:
		return false
	}
}
