package hazard

import (
	"sync/atomic"
	"unsafe"
)

// Protect reads src, announces the loaded pointer in the handle's slot,
// and re-reads src until the two agree. The returned pointer will not be
// destroyed until Release (or the next Protect) on this handle. The
// re-read closes the race with a retirer that unlinked the node between
// the initial load and the announcement becoming visible.
func Protect[T any](h *Handle, src *atomic.Pointer[T]) *T {
	return ProtectLoad(h, src.Load, func(p *T) unsafe.Pointer {
		return unsafe.Pointer(p)
	})
}

// ProtectLoad is the projector form of Protect: load reads the source
// word and ptr projects it to the pointer to announce. Use it when the
// source packs tag bits alongside the pointer.
func ProtectLoad[U comparable](h *Handle, load func() U, ptr func(U) unsafe.Pointer) U {
	v := load()
	for {
		atomic.StorePointer(&h.slot.protected, ptr(v))
		cur := load()
		if cur == v {
			return v
		}
		v = cur
	}
}

// Retire schedules node for destruction once no slot announces it. The
// node's embedded Link becomes the retired-list link; nothing is
// allocated. Crossing the domain threshold runs cleanup on the spot.
func Retire[T any, PT interface {
	Retirable
	*T
}](h *Handle, node PT) {
	l := node.link()
	l.addr = unsafe.Pointer(node)
	l.next = h.slot.retired
	h.slot.retired = node
	h.slot.nretired++
	if h.slot.nretired >= h.dom.threshold {
		h.dom.cleanup(h.slot)
	}
}
