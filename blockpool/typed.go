package blockpool

import (
	"reflect"
	"unsafe"

	"parlay/hazard"
	"parlay/worker"
)

// Typed serves allocations of a single type T from a block allocator
// sized for it. T must not contain pointers: block memory is untyped
// bytes that the garbage collector does not scan.
type Typed[T any] struct {
	blocks *BlockAlloc
}

// NewTyped creates a typed allocator for T, retiring through dom. It
// panics if T contains pointer-typed fields.
func NewTyped[T any](dom *hazard.Domain) *Typed[T] {
	var zero T
	if typeHasPointers(reflect.TypeOf(&zero).Elem()) {
		panic("blockpool: typed allocator element must not contain pointers")
	}
	return &Typed[T]{blocks: NewBlock(dom, int(unsafe.Sizeof(zero)))}
}

// New returns a zeroed *T backed by block memory.
func (a *Typed[T]) New(w *worker.Guard, h *hazard.Handle) *T {
	p := (*T)(a.blocks.Alloc(w, h))
	var zero T
	*p = zero
	return p
}

// Free recycles t. The pointer must have come from New on this allocator.
func (a *Typed[T]) Free(w *worker.Guard, h *hazard.Handle, t *T) {
	a.blocks.Free(w, h, unsafe.Pointer(t))
}

// Stats reports live and cached element counts.
func (a *Typed[T]) Stats() (used, free int64) { return a.blocks.Stats() }

// Clear drops all cached memory; refused while elements are live.
func (a *Typed[T]) Clear() bool { return a.blocks.Clear() }

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
