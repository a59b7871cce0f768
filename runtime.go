package parlay

import (
	"runtime"
	"unsafe"

	"parlay/blockpool"
	"parlay/hazard"
	"parlay/worker"
)

// Runtime is the shared state of the substrate: the identity pool, the
// reclamation domain and the allocator. Construct one per process (or
// per test) and inject it into whatever consumes the substrate.
type Runtime struct {
	Workers *worker.Pool
	Hazards *hazard.Domain
	Memory  *blockpool.Pool

	// Procs is the detected hardware concurrency, the only
	// environment-sensitive input. Use it to size deque capacities and
	// per-worker tables.
	Procs int
}

// New builds a runtime with the default allocator layout.
func New() *Runtime {
	return NewWithConfig(blockpool.DefaultConfig())
}

// NewWithConfig builds a runtime with a custom allocator layout.
func NewWithConfig(cfg blockpool.Config) *Runtime {
	dom := hazard.New()
	return &Runtime{
		Workers: worker.NewPool(),
		Hazards: dom,
		Memory:  blockpool.New(dom, cfg),
		Procs:   runtime.NumCPU(),
	}
}

// Close tears the runtime down, reporting allocator leaks.
func (rt *Runtime) Close() {
	rt.Memory.Close()
}

// Worker is one goroutine's view of the runtime: an identity guard plus
// the goroutine's single hazard slot.
type Worker struct {
	Guard  *worker.Guard
	Hazard *hazard.Handle
	rt     *Runtime
}

// AcquireWorker claims an identity and a hazard slot for the calling
// goroutine. Release the worker when the goroutine leaves the substrate.
func (rt *Runtime) AcquireWorker() *Worker {
	return &Worker{
		Guard:  rt.Workers.Acquire(),
		Hazard: rt.Hazards.Acquire(),
		rt:     rt,
	}
}

// Release returns the identity and hazard slot for reuse. Retired nodes
// still pending on the slot are destroyed by its next holder.
func (w *Worker) Release() {
	w.Hazard.Close()
	w.Guard.Release()
}

// ID returns the worker's dense identity.
func (w *Worker) ID() int { return w.Guard.ID() }

// Alloc returns a block of at least size bytes from the runtime pool.
func (w *Worker) Alloc(size int) unsafe.Pointer {
	return w.rt.Memory.Alloc(w.Guard, w.Hazard, size)
}

// Free returns a block obtained from Alloc with the same size.
func (w *Worker) Free(p unsafe.Pointer, size int) {
	w.rt.Memory.Free(w.Guard, w.Hazard, p, size)
}
