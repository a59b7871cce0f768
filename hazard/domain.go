package hazard

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// DefaultThreshold is the number of locally retired nodes that triggers a
// cleanup pass.
const DefaultThreshold = 2000

// Retirable is implemented by nodes whose destruction must wait until no
// hazard pointer covers them. Embed a Link to satisfy the link accessor.
type Retirable interface {
	// Destroy releases the node. It is called at most once, and only
	// after every slot has been checked for a protecting announcement.
	Destroy()
	link() *Link
}

// Link is the intrusive retired-list hook. Embedding it in a node type
// means retiring that node allocates nothing.
type Link struct {
	next Retirable
	addr unsafe.Pointer
}

func (l *Link) link() *Link { return l }

// Slot holds one goroutine's announcement: the single pointer it claims
// live, a link in the global slot list, and the retired nodes local to
// the slot. Slots are recycled across goroutine lifetimes through the
// in-use flag; the list itself only ever grows.
type Slot struct {
	protected unsafe.Pointer // atomic
	next      atomic.Pointer[Slot]
	inUse     atomic.Bool

	// owned by the current holder, plain access
	retired  Retirable
	nretired int
	scratch  map[unsafe.Pointer]struct{}

	_ cpu.CacheLinePad
}

// Domain is a process-wide reclamation context. Construct one and share it
// between every structure that retires through it.
type Domain struct {
	head      atomic.Pointer[Slot]
	threshold int
}

// New creates a domain with the default retire threshold.
func New() *Domain { return NewWithThreshold(DefaultThreshold) }

// NewWithThreshold creates a domain that runs cleanup once a slot has n
// retired nodes pending.
func NewWithThreshold(n int) *Domain {
	if n < 1 {
		n = 1
	}
	return &Domain{threshold: n}
}

// Acquire claims a slot for the calling goroutine, recycling a vacated
// slot when one is free and growing the list otherwise.
func (d *Domain) Acquire() *Handle {
	for s := d.head.Load(); s != nil; s = s.next.Load() {
		if !s.inUse.Load() && s.inUse.CompareAndSwap(false, true) {
			return &Handle{dom: d, slot: s}
		}
	}
	s := &Slot{scratch: make(map[unsafe.Pointer]struct{})}
	s.inUse.Store(true)
	for {
		head := d.head.Load()
		s.next.Store(head)
		if d.head.CompareAndSwap(head, s) {
			return &Handle{dom: d, slot: s}
		}
	}
}

// Slots returns the current length of the slot list.
func (d *Domain) Slots() int {
	n := 0
	for s := d.head.Load(); s != nil; s = s.next.Load() {
		n++
	}
	return n
}

// cleanup scans every slot's announcement into the calling slot's scratch
// set, then destroys the retired nodes not found in it. Protected nodes
// stay on the list for a later pass.
func (d *Domain) cleanup(s *Slot) {
	clear(s.scratch)
	for sl := d.head.Load(); sl != nil; sl = sl.next.Load() {
		if p := atomic.LoadPointer(&sl.protected); p != nil {
			s.scratch[p] = struct{}{}
		}
	}
	var keep Retirable
	kept := 0
	cur := s.retired
	for cur != nil {
		l := cur.link()
		next := l.next
		if _, held := s.scratch[l.addr]; held {
			l.next = keep
			keep = cur
			kept++
		} else {
			l.next = nil
			cur.Destroy()
		}
		cur = next
	}
	s.retired = keep
	s.nretired = kept
}

// Handle is a goroutine's view of its slot. At most one pointer is
// protected at a time; a second Protect replaces the first.
type Handle struct {
	dom  *Domain
	slot *Slot
}

// Release clears the protected pointer. A handle that never releases
// pins the node it last protected for as long as it lives.
func (h *Handle) Release() {
	atomic.StorePointer(&h.slot.protected, nil)
}

// Flush runs a cleanup pass immediately, regardless of the threshold.
func (h *Handle) Flush() {
	h.dom.cleanup(h.slot)
}

// Pending returns the number of retired nodes awaiting destruction on
// this handle's slot.
func (h *Handle) Pending() int { return h.slot.nretired }

// Close vacates the slot for another goroutine. Retired nodes still
// pending stay with the slot and are destroyed by its next holder.
func (h *Handle) Close() {
	atomic.StorePointer(&h.slot.protected, nil)
	h.slot.inUse.Store(false)
}
