// Package worker issues small dense integer identities for worker
// goroutines. IDs index per-worker state elsewhere in the runtime
// without a lock: acquire is wait-free apart from a lock-free pop of
// the reuse list, and minting a fresh ID is a single atomic increment.
package worker
