package bigatomic

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"parlay/hazard"
)

// triple is three words wide, well past what a single machine word can
// hold atomically.
type triple struct {
	A, B, C uint64
}

func filled(v uint64) triple { return triple{A: v, B: v, C: v} }

func TestRoundTrip(t *testing.T) {
	d := hazard.New()
	h := d.Acquire()
	b := New(d, filled(1))

	if got := b.Load(h); got != filled(1) {
		t.Fatalf("Load() = %+v, want initial %+v", got, filled(1))
	}
	for v := uint64(2); v < 10; v++ {
		b.Store(h, filled(v))
		if got := b.Load(h); got != filled(v) {
			t.Fatalf("Load() = %+v after Store(%d)", got, v)
		}
	}
}

func TestOddSizedValue(t *testing.T) {
	type odd struct {
		A uint64
		B [5]byte
	}
	d := hazard.New()
	h := d.Acquire()
	want := odd{A: 7, B: [5]byte{1, 2, 3, 4, 5}}
	b := New(d, odd{})
	b.Store(h, want)
	if got := b.Load(h); got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestCompareAndSwap(t *testing.T) {
	d := hazard.New()
	h := d.Acquire()
	b := New(d, filled(1))

	if b.CompareAndSwap(h, filled(2), filled(3)) {
		t.Error("CAS succeeded with a stale expected value")
	}
	if !b.CompareAndSwap(h, filled(1), filled(3)) {
		t.Error("CAS failed with the current expected value")
	}
	if got := b.Load(h); got != filled(3) {
		t.Errorf("Load() = %+v after CAS, want %+v", got, filled(3))
	}
}

func TestRejectsPointerTypes(t *testing.T) {
	d := hazard.New()
	defer func() {
		if recover() == nil {
			t.Error("New accepted a pointer-carrying type")
		}
	}()
	New(d, struct{ P *int }{})
}

func TestConcurrentStoresNeverTear(t *testing.T) {
	d := hazard.NewWithThreshold(64)
	b := New(d, filled(0))

	const writers = 4
	iters := 20000
	if testing.Short() {
		iters = 2000
	}

	var eg errgroup.Group
	for w := 0; w < writers; w++ {
		w := w
		eg.Go(func() error {
			h := d.Acquire()
			defer h.Close()
			for i := 0; i < iters; i++ {
				b.Store(h, filled(uint64(w*iters+i)))
			}
			return nil
		})
	}
	torn := make(chan triple, 1)
	for r := 0; r < 4; r++ {
		eg.Go(func() error {
			h := d.Acquire()
			defer h.Close()
			for i := 0; i < iters; i++ {
				v := b.Load(h)
				if v.A != v.B || v.B != v.C {
					select {
					case torn <- v:
					default:
					}
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-torn:
		t.Fatalf("load observed a torn value %+v", v)
	default:
	}
}

func BenchmarkLoad(b *testing.B) {
	d := hazard.New()
	h := d.Acquire()
	box := New(d, filled(1))
	for i := 0; i < b.N; i++ {
		box.Load(h)
	}
}

func BenchmarkStore(b *testing.B) {
	d := hazard.New()
	h := d.Acquire()
	box := New(d, filled(1))
	for i := 0; i < b.N; i++ {
		box.Store(h, filled(uint64(i)))
	}
}
