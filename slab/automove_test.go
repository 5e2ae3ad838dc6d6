package slab

import (
	"testing"

	"github.com/cachecore/slabcache/internal/testitems"
)

type recordingSink struct {
	decisions []Decision
}

func (s *recordingSink) Record(d Decision) { s.decisions = append(s.decisions, d) }

func newAutomoveTestAllocator(aggr int) (*Allocator, *testitems.Fake) {
	cfg := DefaultConfig()
	cfg.MaxItemBytes = 4096
	cfg.SlabAutomove = aggr
	hooks := testitems.New(64)
	a := New(cfg, hooks)
	return a, hooks
}

func TestAutomoveOffNeverDispatches(t *testing.T) {
	a, hooks := newAutomoveTestAllocator(AutomoveOff)
	sink := &recordingSink{}
	a.SetDecisionSink(sink)

	winner := a.Classify(64)
	for i := 0; i < 10; i++ {
		hooks.Evict(winner)
	}
	a.am.Tick()
	a.am.Tick()

	for _, d := range sink.decisions {
		if d.Dispatch {
			t.Fatalf("automove off must never dispatch, got %+v", d)
		}
	}
}

func TestAutomoveFirstTickOnlySeeds(t *testing.T) {
	a, _ := newAutomoveTestAllocator(AutomoveGentle)
	sink := &recordingSink{}
	a.SetDecisionSink(sink)

	a.am.Tick()
	if len(sink.decisions) != 0 {
		t.Fatalf("expected no decision recorded on the seeding tick, got %d", len(sink.decisions))
	}
}

func TestAutomoveGentleDispatchesToWinner(t *testing.T) {
	a, hooks := newAutomoveTestAllocator(AutomoveGentle)
	sink := &recordingSink{}
	a.SetDecisionSink(sink)

	winner := a.Classify(64)
	quiet := a.Classify(2048)
	if winner == quiet {
		t.Fatalf("test setup requires distinct classes")
	}
	mustNewPage(t, a, quiet)
	mustNewPage(t, a, quiet)
	mustNewPage(t, a, quiet) // zero_streak only counts classes with pages > 2

	a.am.Tick() // seed

	for tick := 0; tick < 4; tick++ {
		for i := 0; i < 5; i++ {
			hooks.Evict(winner)
		}
		a.am.Tick()
	}

	var dispatched bool
	for _, d := range sink.decisions {
		if d.Dispatch {
			dispatched = true
		}
	}
	if !dispatched {
		t.Fatalf("expected a dispatch once winner_streak reached 3, decisions=%+v", sink.decisions)
	}
}

func TestNumSlabsPureMoveIsOne(t *testing.T) {
	a, _ := newAutomoveTestAllocator(AutomoveGentle)
	n := a.am.numSlabs(100, 1000, 5, false)
	if n != 1 {
		t.Fatalf("num_slabs for a pure move must be 1 (spec open question 2), got %d", n)
	}
}

func TestNumSlabsShrinkClampedBySourcePages(t *testing.T) {
	a, _ := newAutomoveTestAllocator(AutomoveGentle)
	n := a.am.numSlabs(10*int64(a.cfg.MaxItemBytes), 0, 3, true)
	if n > 2 {
		t.Fatalf("num_slabs must be capped at source_pages-1=2, got %d", n)
	}
}
