// Package hazard implements single-pointer hazard-pointer reclamation.
//
// A goroutine that walks lock-free structures acquires a Handle and uses
// Protect to announce the one pointer it is about to dereference. A node
// unlinked from a structure is handed to Retire instead of being reused;
// it is destroyed only once a scan of every slot shows no announcement
// covering it. This is what lets node memory be recycled through pools
// without the classic use-after-free on a racing reader.
//
// Go's sync/atomic operations are sequentially consistent, so the
// announce-then-revalidate step in Protect and the slot scan in cleanup
// order correctly without explicit fences.
package hazard
