package lfstack

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"parlay/hazard"
)

func TestPushPopOrder(t *testing.T) {
	d := hazard.New()
	h := d.Acquire()
	s := New[int](d)

	for i := 1; i <= 3; i++ {
		s.Push(h, i)
		if got := s.Size(h); got != int64(i) {
			t.Fatalf("Size() = %d after %d pushes", got, i)
		}
	}
	for want := 3; want >= 1; want-- {
		v, ok := s.Pop(h)
		if !ok || v != want {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", v, ok, want)
		}
	}
	if _, ok := s.Pop(h); ok {
		t.Error("Pop on empty stack succeeded")
	}
	if s.Size(h) != 0 {
		t.Error("Size() != 0 on empty stack")
	}
}

func TestConcurrentConservation(t *testing.T) {
	d := hazard.NewWithThreshold(64)
	s := New[int](d)

	const workers = 8
	n := 10000
	if testing.Short() {
		n = 1000
	}

	popped := make([][]int, workers)
	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		eg.Go(func() error {
			h := d.Acquire()
			defer h.Close()
			for i := 0; i < n; i++ {
				s.Push(h, w*n+i)
				if v, ok := s.Pop(h); ok {
					popped[w] = append(popped[w], v)
				}
			}
			for {
				v, ok := s.Pop(h)
				if !ok {
					break
				}
				popped[w] = append(popped[w], v)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}

	seen := make(map[int]int)
	total := 0
	for _, vs := range popped {
		for _, v := range vs {
			seen[v]++
			total++
		}
	}
	if total != workers*n {
		t.Fatalf("popped %d values, pushed %d", total, workers*n)
	}
	for v, c := range seen {
		if c != 1 {
			t.Fatalf("value %d popped %d times", v, c)
		}
	}
}

func BenchmarkPushPop(b *testing.B) {
	d := hazard.New()
	s := New[int](d)
	b.RunParallel(func(pb *testing.PB) {
		h := d.Acquire()
		defer h.Close()
		for pb.Next() {
			s.Push(h, 1)
			s.Pop(h)
		}
	})
}

func BenchmarkPushPopUncontended(b *testing.B) {
	d := hazard.New()
	h := d.Acquire()
	s := New[int](d)
	var sink int
	for i := 0; i < b.N; i++ {
		s.Push(h, i)
		v, _ := s.Pop(h)
		sink += v
	}
	_ = sink
}
