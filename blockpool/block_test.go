package blockpool

import (
	"testing"
	"unsafe"

	"parlay/hazard"
	"parlay/worker"
)

func newTestEnv() (*worker.Guard, *hazard.Handle, *hazard.Domain) {
	ids := worker.NewPool()
	dom := hazard.New()
	return ids.Acquire(), dom.Acquire(), dom
}

func TestAllocFreeReuse(t *testing.T) {
	w, h, dom := newTestEnv()
	b := NewBlock(dom, 64)

	p := b.Alloc(w, h)
	if uintptr(p)%maxAlign != 0 {
		t.Errorf("block %p not %d-aligned", p, maxAlign)
	}
	// the block is writable user memory while allocated
	for i := 0; i < 64; i++ {
		*(*byte)(unsafe.Add(p, i)) = byte(i)
	}
	b.Free(w, h, p)
	if q := b.Alloc(w, h); q != p {
		t.Errorf("immediate realloc returned %p, want reused %p", q, p)
	}
}

func TestBlockSizeRounding(t *testing.T) {
	_, _, dom := newTestEnv()
	b := NewBlock(dom, 3)
	if b.BlockSize() < int(ptrSize) {
		t.Errorf("BlockSize() = %d, too small to hold the free link", b.BlockSize())
	}
	if b.BlockSize()%int(ptrSize) != 0 {
		t.Errorf("BlockSize() = %d, not link-aligned", b.BlockSize())
	}
}

func TestChunkHandoff(t *testing.T) {
	ids := worker.NewPool()
	dom := hazard.New()
	wa, ha := ids.Acquire(), dom.Acquire()
	wb, hb := ids.Acquire(), dom.Acquire()

	// 64KB blocks give a chunk length of 4, so 8 frees trigger a split
	b := NewBlock(dom, 64<<10)
	if b.ChunkLen() != 4 {
		t.Fatalf("ChunkLen() = %d, want 4", b.ChunkLen())
	}

	freed := make(map[unsafe.Pointer]bool)
	ptrs := make([]unsafe.Pointer, 0, 8)
	for i := 0; i < 8; i++ {
		ptrs = append(ptrs, b.Alloc(wa, ha))
	}
	for _, p := range ptrs {
		freed[p] = true
		b.Free(wa, ha, p)
	}

	// worker B must be served from the chunk A handed to the global stack
	p := b.Alloc(wb, hb)
	if !freed[p] {
		t.Errorf("worker B got %p, not a block recycled by worker A", p)
	}
	b.Free(wb, hb, p)
}

func TestBlockStatsAndClear(t *testing.T) {
	w, h, dom := newTestEnv()
	b := NewBlock(dom, 128)

	p := b.Alloc(w, h)
	used, free := b.Stats()
	if used != 1 {
		t.Errorf("used = %d, want 1", used)
	}
	if free != int64(b.ChunkLen()-1) {
		t.Errorf("free = %d, want %d", free, b.ChunkLen()-1)
	}
	if b.Clear() {
		t.Error("Clear succeeded with a block outstanding")
	}
	b.Free(w, h, p)
	if !b.Clear() {
		t.Error("Clear refused with no blocks outstanding")
	}
	if used, free = b.Stats(); used != 0 || free != 0 {
		t.Errorf("Stats() = (%d, %d) after Clear, want (0, 0)", used, free)
	}
}

func TestReserveParksChunks(t *testing.T) {
	_, h, dom := newTestEnv()
	b := NewBlock(dom, 256)
	b.Reserve(h, 2*b.ChunkLen())
	if _, free := b.Stats(); free < int64(2*b.ChunkLen()) {
		t.Errorf("free = %d after Reserve, want >= %d", free, 2*b.ChunkLen())
	}
}
