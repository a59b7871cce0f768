// Package bigatomic provides lock-free atomic load, store and
// compare-and-swap for plain-data values larger than a machine word.
//
// The common case is a wait-free seqlock read of an inline word buffer.
// A load that catches a store in flight falls back to an indirect
// heap-boxed copy protected through the hazard domain. Stores swap the
// indirect pointer first, so the new value is authoritative immediately;
// syncing the inline buffer is best-effort and may be left behind under
// sustained contention, degrading throughput but never correctness.
//
// Values must not contain pointers, and equality in CompareAndSwap is
// representational (a byte comparison), so types with padding should be
// avoided.
package bigatomic
