// Package parlay is the concurrency and memory-management substrate for
// a parallel-algorithms library: worker identity, hazard-pointer
// reclamation, lock-free containers and a size-classed allocator, tied
// together by an explicitly-constructed Runtime so lifetime and test
// isolation stay visible.
//
// A scheduler acquires one Worker per goroutine it pins; the Worker
// bundles the identity guard and the hazard slot every substrate
// operation needs.
package parlay
