package slab

import (
	"errors"
	"testing"

	gofuzz "github.com/google/gofuzz"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxItemBytes = 4096 // small pages keep these tests fast
	cfg.BaseItemOverhead = 48
	cfg.ChunkAlign = 8
	cfg.LimitBytes = 0
	cfg.Prealloc = false
	return cfg
}

func TestClassifyBoundaries(t *testing.T) {
	a := New(testConfig(), nil)

	if got := a.Classify(0); got != 0 {
		t.Fatalf("classify(0) = %d, want 0", got)
	}
	if got := a.Classify(a.cfg.MaxItemBytes); got != a.Largest() {
		t.Fatalf("classify(max_item_bytes) = %d, want %d", got, a.Largest())
	}
	if got := a.Classify(a.cfg.MaxItemBytes + 1); got != 0 {
		t.Fatalf("classify(max_item_bytes+1) = %d, want 0", got)
	}
}

func TestClassifyMonotone(t *testing.T) {
	a := New(testConfig(), nil)
	prev := a.Classify(1)
	for n := 2; n <= a.cfg.MaxItemBytes; n *= 2 {
		cur := a.Classify(n)
		if cur != 0 && prev != 0 && cur < prev {
			t.Fatalf("classify not monotone: classify(%d)=%d < classify(prev)=%d", n, cur, prev)
		}
		prev = cur
	}
}

func TestAllocOutOfRangeClass(t *testing.T) {
	a := New(testConfig(), nil)
	if _, err := a.Alloc(100, a.Largest()+1); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory for out-of-range class, got %v", err)
	}
	if _, err := a.Alloc(100, a.Smallest()-1); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory for out-of-range class, got %v", err)
	}
}

func TestAllocFreeRoundTrip(t *testing.T) {
	a := New(testConfig(), nil)
	i := a.Classify(100)

	before := a.classes[i].requestedBytes
	ch, err := a.Alloc(100, i)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	if ch.HasFlag(FlagSlabbed) {
		t.Fatalf("allocated chunk must not retain SLABBED")
	}

	ch.setClassID(0)
	a.Free(ch, 100, i)

	if a.classes[i].requestedBytes != before {
		t.Fatalf("requested_bytes not restored: got %d want %d", a.classes[i].requestedBytes, before)
	}
}

func TestFreeCountInvariant(t *testing.T) {
	a := New(testConfig(), nil)
	i := a.Classify(200)
	cls := a.classes[i]

	var held []*Chunk
	for k := 0; k < cls.perslab; k++ {
		ch, err := a.Alloc(200, i)
		if err != nil {
			t.Fatalf("alloc %d failed: %v", k, err)
		}
		held = append(held, ch)
	}
	if cls.freeCount != 0 {
		t.Fatalf("expected free_count 0 after draining one page, got %d", cls.freeCount)
	}
	for _, ch := range held {
		ch.setClassID(0)
		a.Free(ch, 200, i)
	}
	used := int64(cls.nPages()*cls.perslab) - cls.freeCount
	if used != 0 {
		t.Fatalf("free_count + used invariant violated: used=%d", used)
	}
}

// TestAllocFreeFuzz randomly interleaves alloc/free on one class and checks
// the quiescent-point invariant free_count + used == n_pages*perslab holds
// after every operation (spec.md §8).
func TestAllocFreeFuzz(t *testing.T) {
	a := New(testConfig(), nil)
	i := a.Classify(300)
	cls := a.classes[i]

	f := gofuzz.New().NilChance(0).NumElements(1, 1)
	var live []*Chunk
	for iter := 0; iter < 500; iter++ {
		var doAlloc bool
		f.Fuzz(&doAlloc)
		if doAlloc || len(live) == 0 {
			ch, err := a.Alloc(300, i)
			if err != nil {
				t.Fatalf("alloc failed at iter %d: %v", iter, err)
			}
			live = append(live, ch)
		} else {
			ch := live[len(live)-1]
			live = live[:len(live)-1]
			ch.setClassID(0)
			a.Free(ch, 300, i)
		}
		used := int64(cls.nPages()*cls.perslab) - cls.freeCount
		if used != int64(len(live)) {
			t.Fatalf("iter %d: used=%d want %d", iter, used, len(live))
		}
	}
}

func TestAdjustRequested(t *testing.T) {
	a := New(testConfig(), nil)
	i := a.Classify(100)
	before := a.classes[i].requestedBytes
	a.AdjustRequested(i, 100, 150)
	if a.classes[i].requestedBytes != before+50 {
		t.Fatalf("adjust_requested did not apply delta")
	}
}
