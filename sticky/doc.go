// Package sticky implements a wait-free unsigned counter that latches
// once it reaches zero. The zero transition is observed by exactly one
// caller, and increments after the latch fail instead of reviving the
// counter, which makes it suitable for reference-counted teardown
// without double-free races.
package sticky
