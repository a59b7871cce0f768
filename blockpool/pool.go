package blockpool

import (
	"log"
	"sync"
	"sync/atomic"
	"unsafe"

	"parlay/hazard"
	"parlay/lfstack"
	"parlay/worker"
)

// Config sets the size-class layout of a Pool. Both slices must be sorted
// ascending; every LargeSizes entry must exceed the last SmallSizes entry.
type Config struct {
	// SmallSizes each get a BlockAlloc with per-worker caching.
	SmallSizes []int
	// LargeSizes each get one shared free stack.
	LargeSizes []int
	// StrictLeaks promotes the Close leak diagnostic to a panic.
	StrictLeaks bool
}

// DefaultConfig covers 64B..16KB with block allocators and 32KB..2MB with
// shared stacks; anything larger bypasses the pool.
func DefaultConfig() Config {
	return Config{
		SmallSizes: []int{64, 128, 256, 512, 1 << 10, 2 << 10, 4 << 10, 8 << 10, 16 << 10},
		LargeSizes: []int{32 << 10, 128 << 10, 512 << 10, 2 << 20},
	}
}

// Pool routes size-classed requests: small classes to per-class block
// allocators, large classes to shared lock-free stacks of free blocks,
// and anything above the largest class straight to the heap.
type Pool struct {
	cfg   Config
	dom   *hazard.Domain
	small []*BlockAlloc
	large []*lfstack.Stack[unsafe.Pointer]

	mu         sync.Mutex
	largeSlabs map[unsafe.Pointer][]byte // retention for large-class blocks
	hugeSlabs  map[unsafe.Pointer][]byte // retention for bypass allocations

	largeBytes atomic.Int64 // bytes carved for large classes
	hugeBytes  atomic.Int64 // bytes live in bypass allocations
	usedBytes  atomic.Int64 // bytes handed out, rounded up to class size
}

// New creates a pool with the given class layout, retiring through dom.
func New(dom *hazard.Domain, cfg Config) *Pool {
	for i := 1; i < len(cfg.SmallSizes); i++ {
		if cfg.SmallSizes[i] <= cfg.SmallSizes[i-1] {
			panic("blockpool: SmallSizes must be sorted ascending")
		}
	}
	for i := 1; i < len(cfg.LargeSizes); i++ {
		if cfg.LargeSizes[i] <= cfg.LargeSizes[i-1] {
			panic("blockpool: LargeSizes must be sorted ascending")
		}
	}
	if len(cfg.SmallSizes) > 0 && len(cfg.LargeSizes) > 0 &&
		cfg.LargeSizes[0] <= cfg.SmallSizes[len(cfg.SmallSizes)-1] {
		panic("blockpool: LargeSizes must start above the last small class")
	}
	p := &Pool{
		cfg:        cfg,
		dom:        dom,
		largeSlabs: make(map[unsafe.Pointer][]byte),
		hugeSlabs:  make(map[unsafe.Pointer][]byte),
	}
	for _, sz := range cfg.SmallSizes {
		p.small = append(p.small, NewBlock(dom, sz))
	}
	for range cfg.LargeSizes {
		p.large = append(p.large, lfstack.New[unsafe.Pointer](dom))
	}
	return p
}

// smallClass returns the index of the first small class holding size, or -1.
func (p *Pool) smallClass(size int) int {
	for i, sz := range p.cfg.SmallSizes {
		if size <= sz {
			return i
		}
	}
	return -1
}

// largeClass returns the index of the first large class holding size, or -1.
func (p *Pool) largeClass(size int) int {
	for i, sz := range p.cfg.LargeSizes {
		if size <= sz {
			return i
		}
	}
	return -1
}

// Alloc returns a block of at least size bytes, aligned to 64.
func (p *Pool) Alloc(w *worker.Guard, h *hazard.Handle, size int) unsafe.Pointer {
	if size <= 0 {
		panic("blockpool: allocation size must be positive")
	}
	if ci := p.smallClass(size); ci >= 0 {
		p.usedBytes.Add(int64(p.cfg.SmallSizes[ci]))
		return p.small[ci].Alloc(w, h)
	}
	if ci := p.largeClass(size); ci >= 0 {
		p.usedBytes.Add(int64(p.cfg.LargeSizes[ci]))
		return p.allocLarge(ci, h)
	}
	return p.allocHuge(size)
}

// Free returns a block obtained from Alloc with the same size.
func (p *Pool) Free(w *worker.Guard, h *hazard.Handle, ptr unsafe.Pointer, size int) {
	if ci := p.smallClass(size); ci >= 0 {
		p.usedBytes.Add(-int64(p.cfg.SmallSizes[ci]))
		p.small[ci].Free(w, h, ptr)
		return
	}
	if ci := p.largeClass(size); ci >= 0 {
		p.usedBytes.Add(-int64(p.cfg.LargeSizes[ci]))
		p.large[ci].Push(h, ptr)
		return
	}
	p.freeHuge(ptr, size)
}

func (p *Pool) allocLarge(ci int, h *hazard.Handle) unsafe.Pointer {
	if ptr, ok := p.large[ci].Pop(h); ok {
		return ptr
	}
	size := p.cfg.LargeSizes[ci]
	base, raw := carveAligned(size)
	p.mu.Lock()
	p.largeSlabs[base] = raw
	p.mu.Unlock()
	p.largeBytes.Add(int64(size))
	return base
}

func (p *Pool) allocHuge(size int) unsafe.Pointer {
	base, raw := carveAligned(size)
	p.mu.Lock()
	p.hugeSlabs[base] = raw
	p.mu.Unlock()
	p.hugeBytes.Add(int64(size))
	p.usedBytes.Add(int64(size))
	return base
}

func (p *Pool) freeHuge(ptr unsafe.Pointer, size int) {
	p.mu.Lock()
	_, known := p.hugeSlabs[ptr]
	delete(p.hugeSlabs, ptr)
	p.mu.Unlock()
	if !known {
		panic("blockpool: free of unknown bypass allocation")
	}
	p.hugeBytes.Add(-int64(size))
	p.usedBytes.Add(-int64(size))
}

// carveAligned allocates size bytes aligned to maxAlign, returning the
// aligned base and the raw slab to retain.
func carveAligned(size int) (unsafe.Pointer, []byte) {
	raw := make([]byte, size+maxAlign)
	base := unsafe.Pointer(&raw[0])
	if off := uintptr(base) % maxAlign; off != 0 {
		base = unsafe.Add(base, maxAlign-off)
	}
	return base, raw
}

// Reserve carves at least bytes of memory into the largest small class's
// global stack ahead of demand.
func (p *Pool) Reserve(h *hazard.Handle, bytes int) {
	if len(p.small) == 0 {
		return
	}
	b := p.small[len(p.small)-1]
	blocks := (bytes + b.BlockSize() - 1) / b.BlockSize()
	b.Reserve(h, blocks)
}

// Stats reports bytes handed out and bytes cached across all tiers.
func (p *Pool) Stats() (used, free int64) {
	used = p.usedBytes.Load()
	var reserved int64
	for _, b := range p.small {
		u, f := b.Stats()
		reserved += (u + f) * int64(b.BlockSize())
	}
	reserved += p.largeBytes.Load()
	reserved += p.hugeBytes.Load()
	return used, reserved - used
}

// Clear releases all cached memory back to the garbage collector. Refused
// while any block is outstanding. Must not race with other operations.
func (p *Pool) Clear() bool {
	if p.usedBytes.Load() != 0 {
		return false
	}
	for _, b := range p.small {
		if !b.Clear() {
			return false
		}
	}
	for i := range p.large {
		p.large[i] = lfstack.New[unsafe.Pointer](p.dom)
	}
	p.mu.Lock()
	p.largeSlabs = make(map[unsafe.Pointer][]byte)
	p.mu.Unlock()
	p.largeBytes.Store(0)
	return true
}

// Close checks for leaked blocks at teardown. Outstanding bytes are a
// diagnostic by default and fatal under StrictLeaks.
func (p *Pool) Close() {
	if used := p.usedBytes.Load(); used != 0 {
		if p.cfg.StrictLeaks {
			panic("blockpool: blocks outstanding at close")
		}
		log.Printf("blockpool: %d bytes outstanding at close", used)
	}
}
