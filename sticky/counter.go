package sticky

import "sync/atomic"

const (
	// zeroFlag latches the counter at zero.
	zeroFlag = uint64(1) << 63
	// zeroPending marks a zero observed by Load that a racing Decrement
	// may still claim.
	zeroPending = uint64(1) << 62

	// MaxValue is the largest count the two reserved bits leave room for.
	MaxValue = zeroPending - 1
)

// Counter is a wait-free counter with sticky zero. The zero value is a
// counter at zero, not yet latched.
type Counter struct {
	v atomic.Uint64
}

// New returns a counter holding start.
func New(start uint64) *Counter {
	c := &Counter{}
	c.v.Store(start)
	return c
}

// Increment adds n. It returns false, leaving the latch intact, if the
// counter had already latched at zero.
func (c *Counter) Increment(n uint64) bool {
	old := c.v.Add(n) - n
	return old&zeroFlag == 0
}

// Decrement subtracts n. It returns true exactly once: for the decrement
// that takes the value to zero and wins the latch, possibly claiming a
// zero observation a concurrent Load left pending.
func (c *Counter) Decrement(n uint64) bool {
	if c.v.Add(^(n - 1)) == 0 {
		if c.v.CompareAndSwap(0, zeroFlag) {
			return true
		}
		if c.v.Load()&zeroPending != 0 && c.v.Swap(zeroFlag)&zeroPending != 0 {
			return true
		}
	}
	return false
}

// Load returns the current value, 0 once latched. A load that observes an
// exact zero latches it, racing safely with a decrement attempting the
// same.
func (c *Counter) Load() uint64 {
	v := c.v.Load()
	if v == 0 && c.v.CompareAndSwap(0, zeroFlag|zeroPending) {
		return 0
	}
	if v&zeroFlag != 0 {
		return 0
	}
	return v
}

// Reset un-latches the counter with a new value. It must not race with
// Increment or Decrement.
func (c *Counter) Reset(v uint64) { c.v.Store(v) }
