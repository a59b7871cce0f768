// Package blockpool implements the two-tier allocator: fixed-size block
// allocators with per-worker free lists, and a size-classed pool that
// routes requests to them.
//
// A free block's storage doubles as its free-list link (the link lives in
// the block's first word), so list membership costs no header. Blocks move
// between workers only in whole pre-linked chunks through a global
// lock-free stack, which bounds cross-worker contention to rare
// chunk-sized transfers.
//
// Memory handed out by this package is untyped bytes: the garbage
// collector does not scan it, so callers must not store Go pointers in it.
package blockpool
