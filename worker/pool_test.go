package worker

import (
	"sort"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestAcquireReuse(t *testing.T) {
	p := NewPool()
	g0 := p.Acquire()
	g1 := p.Acquire()
	if g0.ID() == g1.ID() {
		t.Fatal("duplicate IDs for live guards")
	}
	id := g1.ID()
	g1.Release()
	g2 := p.Acquire()
	if g2.ID() != id {
		t.Errorf("expected released ID %d to be reused, got %d", id, g2.ID())
	}
	if p.Count() != 2 {
		t.Errorf("Count() = %d, want 2", p.Count())
	}
}

func TestConcurrentAcquireDistinct(t *testing.T) {
	p := NewPool()
	const n = 64
	ids := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = p.Acquire().ID()
		}(i)
	}
	wg.Wait()
	sort.Ints(ids)
	for i := 1; i < n; i++ {
		if ids[i] == ids[i-1] {
			t.Fatalf("duplicate ID %d", ids[i])
		}
	}
	if p.Count() < n {
		t.Errorf("Count() = %d, want >= %d", p.Count(), n)
	}
}

func TestChurnKeepsIDsUnique(t *testing.T) {
	p := NewPool()
	const workers = 8
	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for i := 0; i < 1000; i++ {
				g := p.Acquire()
				g.Release()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	// after the churn, draining the pool must yield each ID at most once
	seen := make(map[int]bool)
	for i := 0; i < p.Count(); i++ {
		id := p.Acquire().ID()
		if seen[id] {
			t.Fatalf("ID %d issued twice", id)
		}
		seen[id] = true
	}
}
