package wsdeque

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// age packs the steal end into one atomically-swappable word: the high 32
// bits hold a wrap tag bumped on every reset, the low 32 bits the top
// index.
func pack(tag, top uint32) uint64      { return uint64(tag)<<32 | uint64(top) }
func unpack(a uint64) (uint32, uint32) { return uint32(a >> 32), uint32(a) }

// Deque is one worker's task queue. PushBottom and PopBottom are
// owner-only and must never run concurrently with themselves; PopTop is
// safe from arbitrarily many stealer threads and from a concurrent owner
// operation.
type Deque[J any] struct {
	age atomic.Uint64
	_   cpu.CacheLinePad
	bot atomic.Int64
	_   cpu.CacheLinePad

	slots []atomic.Pointer[J]
}

// New allocates a deque holding at most capacity jobs.
func New[J any](capacity int) *Deque[J] {
	if capacity <= 0 {
		panic("wsdeque: capacity must be positive")
	}
	return &Deque[J]{slots: make([]atomic.Pointer[J], capacity)}
}

// PushBottom appends a job at the owner end and reports whether the deque
// was empty beforehand, the signal used to wake idle stealers.
func (d *Deque[J]) PushBottom(j *J) bool {
	b := d.bot.Load()
	if int(b) == len(d.slots) {
		panic("wsdeque: deque overflow")
	}
	_, top := unpack(d.age.Load())
	d.slots[b].Store(j)
	d.bot.Store(b + 1)
	return b == int64(top)
}

// PopBottom takes the newest job. When the owner and a thief meet on the
// final item, one CAS on the packed {tag, top} pair decides the winner;
// the loser sees an empty deque, which is reset to index zero with the
// tag bumped.
func (d *Deque[J]) PopBottom() (*J, bool) {
	b := d.bot.Load()
	if b == 0 {
		return nil, false
	}
	b--
	d.bot.Store(b)
	j := d.slots[b].Load()
	old := d.age.Load()
	tag, top := unpack(old)
	if b > int64(top) {
		return j, true
	}
	d.bot.Store(0)
	reset := pack(tag+1, 0)
	if b == int64(top) {
		if d.age.CompareAndSwap(old, reset) {
			return j, true
		}
	}
	d.age.Store(reset)
	return nil, false
}

// PopTop steals the oldest job. The second result reports whether the
// deque was observed empty or drained by this steal, telling a stealer to
// move on. A lost CAS returns (nil, false): another thief or the owner
// took the item, but more may remain.
func (d *Deque[J]) PopTop() (*J, bool) {
	old := d.age.Load()
	_, top := unpack(old)
	b := d.bot.Load()
	if b <= int64(top) {
		return nil, true
	}
	j := d.slots[top].Load()
	if d.age.CompareAndSwap(old, old+1) {
		return j, b == int64(top)+1
	}
	return nil, false
}

// ---------------- Diagnostics ---------------- //

// Len returns the number of jobs currently queued.
func (d *Deque[J]) Len() int {
	_, top := unpack(d.age.Load())
	n := int(d.bot.Load()) - int(top)
	if n < 0 {
		return 0
	}
	return n
}

// Cap returns the fixed capacity.
func (d *Deque[J]) Cap() int { return len(d.slots) }

// Dump prints a short summary for debugging.
func (d *Deque[J]) Dump() {
	tag, top := unpack(d.age.Load())
	fmt.Printf("wsdeque{len=%d, cap=%d, bottom=%d, top=%d, tag=%d}\n",
		d.Len(), d.Cap(), d.bot.Load(), top, tag)
}
