package blockpool

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"parlay/hazard"
	"parlay/lfstack"
	"parlay/worker"
)

const (
	// chunkTargetBytes sizes chunks so a local/global transfer moves
	// roughly this much memory at once.
	chunkTargetBytes = 256 << 10

	// maxAlign is the alignment of every block handed out.
	maxAlign = 64

	ptrSize = unsafe.Sizeof(uintptr(0))
)

func nextOf(p unsafe.Pointer) unsafe.Pointer { return *(*unsafe.Pointer)(p) }
func setNext(p, next unsafe.Pointer)         { *(*unsafe.Pointer)(p) = next }

// local is one worker's cache of free blocks for one block size. count is
// authoritative: links past the count-th node are never followed, so a
// list tail need not be nil-terminated.
type local struct {
	head  unsafe.Pointer
	mid   unsafe.Pointer
	count int
	_     cpu.CacheLinePad
}

// BlockAlloc serves blocks of one fixed size. A block's bytes alternate
// between user data and free-list link depending on allocation state.
type BlockAlloc struct {
	blockSize uintptr
	chunkLen  int

	// heads of pre-linked chunks of exactly chunkLen blocks
	global *lfstack.Stack[unsafe.Pointer]
	dom    *hazard.Domain

	locals atomic.Pointer[[]*local]

	mu    sync.Mutex
	slabs [][]byte // carved memory, retained so the GC never frees live blocks

	allocated atomic.Int64 // blocks carved
	used      atomic.Int64 // blocks handed out
}

// NewBlock creates an allocator for blocks of blockSize bytes, retiring
// contended stack nodes through dom. The size is rounded up so the
// in-place link is always aligned.
func NewBlock(dom *hazard.Domain, blockSize int) *BlockAlloc {
	bs := uintptr(blockSize)
	if bs < ptrSize {
		bs = ptrSize
	}
	bs = (bs + ptrSize - 1) &^ (ptrSize - 1)
	cl := int(chunkTargetBytes / bs)
	if cl < 2 {
		cl = 2
	}
	b := &BlockAlloc{
		blockSize: bs,
		chunkLen:  cl,
		global:    lfstack.New[unsafe.Pointer](dom),
		dom:       dom,
	}
	empty := make([]*local, 0)
	b.locals.Store(&empty)
	return b
}

// BlockSize returns the rounded size of every block served.
func (b *BlockAlloc) BlockSize() int { return int(b.blockSize) }

// ChunkLen returns the number of blocks per transfer chunk.
func (b *BlockAlloc) ChunkLen() int { return b.chunkLen }

// local returns the worker's free list, growing the copy-on-write index
// on first sight of a new worker ID. Existing local pointers are stable
// across growth, so other workers are unaffected.
func (b *BlockAlloc) local(id int) *local {
	for {
		cur := b.locals.Load()
		if id < len(*cur) {
			return (*cur)[id]
		}
		grown := make([]*local, id+1)
		copy(grown, *cur)
		for i := len(*cur); i < len(grown); i++ {
			grown[i] = &local{}
		}
		if b.locals.CompareAndSwap(cur, &grown) {
			return grown[id]
		}
	}
}

// Alloc returns one block. Local pop on the fast path; a whole chunk is
// pulled from the global stack, or carved fresh, only when the local list
// runs dry.
func (b *BlockAlloc) Alloc(w *worker.Guard, h *hazard.Handle) unsafe.Pointer {
	l := b.local(w.ID())
	if l.count == 0 {
		if chunk, ok := b.global.Pop(h); ok {
			l.head = chunk
		} else {
			l.head = b.carveChunk()
		}
		l.count = b.chunkLen
	}
	p := l.head
	l.head = nextOf(p)
	l.count--
	b.used.Add(1)
	return p
}

// Free returns one block to the worker's local list. When the list
// reaches twice the chunk length, the newer half is handed to the global
// stack as one pre-linked chunk; the cached midpoint makes the split O(1).
func (b *BlockAlloc) Free(w *worker.Guard, h *hazard.Handle, p unsafe.Pointer) {
	l := b.local(w.ID())
	setNext(p, l.head)
	l.head = p
	l.count++
	b.used.Add(-1)
	switch l.count {
	case b.chunkLen + 1:
		l.mid = p
	case 2 * b.chunkLen:
		chunk := l.head
		l.head = nextOf(l.mid)
		l.count = b.chunkLen
		b.global.Push(h, chunk)
	}
}

// Reserve carves at least n blocks and parks them on the global stack as
// ready chunks.
func (b *BlockAlloc) Reserve(h *hazard.Handle, n int) {
	for parked := 0; parked < n; parked += b.chunkLen {
		b.global.Push(h, b.carveChunk())
	}
}

// carveChunk allocates one chunk of fresh aligned memory and links its
// blocks, returning the head.
func (b *BlockAlloc) carveChunk() unsafe.Pointer {
	n := b.chunkLen
	raw := make([]byte, n*int(b.blockSize)+maxAlign)
	base := unsafe.Pointer(&raw[0])
	if off := uintptr(base) % maxAlign; off != 0 {
		base = unsafe.Add(base, maxAlign-off)
	}

	b.mu.Lock()
	b.slabs = append(b.slabs, raw)
	b.mu.Unlock()

	var head unsafe.Pointer
	for i := n - 1; i >= 0; i-- {
		p := unsafe.Add(base, uintptr(i)*b.blockSize)
		setNext(p, head)
		head = p
	}
	b.allocated.Add(int64(n))
	return head
}

// Stats reports blocks handed out and blocks cached locally or globally.
func (b *BlockAlloc) Stats() (used, free int64) {
	u := b.used.Load()
	return u, b.allocated.Load() - u
}

// Clear releases all cached memory back to the garbage collector. It is
// refused while any block is outstanding, and must not race with other
// operations on this allocator.
func (b *BlockAlloc) Clear() bool {
	if b.used.Load() != 0 {
		return false
	}
	empty := make([]*local, 0)
	b.locals.Store(&empty)
	b.global = lfstack.New[unsafe.Pointer](b.dom)
	b.mu.Lock()
	b.slabs = nil
	b.mu.Unlock()
	b.allocated.Store(0)
	return true
}
