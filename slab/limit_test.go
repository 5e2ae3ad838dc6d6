package slab

import (
	"errors"
	"testing"
	"time"

	"github.com/cachecore/slabcache/internal/testitems"
)

// TestShrinkExpandTooSmall covers spec.md §8 scenario 6's TOO_SMALL half:
// any newLimit under one page is rejected regardless of arena flexibility.
func TestShrinkExpandTooSmall(t *testing.T) {
	cfg := testConfig()
	a := New(cfg, nil)

	if _, err := a.ShrinkExpand(int64(cfg.MaxItemBytes) - 1); !errors.Is(err, ErrTooSmall) {
		t.Fatalf("expected ErrTooSmall, got %v", err)
	}
}

// TestShrinkExpandInflexibleWhenPreallocated covers spec.md §8 scenario 6:
// a preallocated arena rejects every shrink_expand, even a well-formed one
// that would otherwise succeed, since its region size was fixed at init.
func TestShrinkExpandInflexibleWhenPreallocated(t *testing.T) {
	cfg := testConfig()
	cfg.Prealloc = true
	cfg.LimitBytes = int64(cfg.MaxItemBytes) * 32 // room for one preallocated page per class
	a := New(cfg, nil)

	if !a.arena.Preallocated() {
		t.Fatalf("test setup requires a preallocated arena")
	}
	if _, err := a.ShrinkExpand(int64(cfg.MaxItemBytes) * 2); !errors.Is(err, ErrInflexible) {
		t.Fatalf("expected ErrInflexible for a well-formed request against a preallocated arena, got %v", err)
	}
	// Too-small still wins over inflexible: a nonsensical request is
	// rejected for the reason that would apply regardless of flexibility.
	if _, err := a.ShrinkExpand(1); !errors.Is(err, ErrTooSmall) {
		t.Fatalf("expected ErrTooSmall to take priority over ErrInflexible, got %v", err)
	}
}

// TestShrinkExpandGrowsLimit covers spec.md §8 scenario 2: raising the
// limit lets an allocation that previously failed under the old, tighter
// limit succeed.
func TestShrinkExpandGrowsLimit(t *testing.T) {
	cfg := testConfig()
	cfg.LimitBytes = int64(cfg.MaxItemBytes) // room for exactly one page
	a := New(cfg, nil)
	i := a.Classify(100)

	mustNewPage(t, a, i) // a class's first page is always permitted

	if err := tryNewPage(a, i); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory for a second page over the limit, got %v", err)
	}

	newLimit := int64(cfg.MaxItemBytes) * 3
	pages, err := a.ShrinkExpand(newLimit)
	if err != nil {
		t.Fatalf("ShrinkExpand(%d) failed: %v", newLimit, err)
	}
	if pages != 3 {
		t.Fatalf("advisory page count = %d, want 3", pages)
	}

	mustNewPage(t, a, i) // now affordable under the raised limit
}

// TestShrinkThenAutomoveFollowsThrough covers spec.md §8 scenario 1: after
// shrink_expand lowers the limit below what's currently malloced, the
// automover's next tick actually reclaims a page and slabs_shrunk
// advances, without the caller ever calling Reassign directly.
func TestShrinkThenAutomoveFollowsThrough(t *testing.T) {
	cfg := testConfig()
	cfg.SlabAutomove = AutomoveAggressive
	hooks := testitems.New(64)
	a := New(cfg, hooks)

	donor := a.Classify(2048)
	mustNewPage(t, a, donor)
	mustNewPage(t, a, donor)
	mustNewPage(t, a, donor)

	mallocedBefore := a.TotalMalloced()
	newLimit := mallocedBefore - int64(cfg.MaxItemBytes)
	pages, err := a.ShrinkExpand(newLimit)
	if err != nil {
		t.Fatalf("ShrinkExpand(%d) failed: %v", newLimit, err)
	}
	if pages < 1 {
		t.Fatalf("advisory page count = %d, want >= 1", pages)
	}

	a.reb.Start()
	defer a.reb.Stop()

	a.am.Tick() // seeding tick: no decision yet
	a.am.Tick() // totalMalloced now exceeds the new limit: must dispatch a shrink

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.slabsShrunk.Load() > 0 && a.TotalMalloced() < mallocedBefore {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("automove never followed through on the lowered limit: slabs_shrunk=%d malloced=%d (was %d)",
		a.slabsShrunk.Load(), a.TotalMalloced(), mallocedBefore)
}

func mustNewPage(t *testing.T, a *Allocator, i int) {
	t.Helper()
	if err := tryNewPage(a, i); err != nil {
		t.Fatalf("newpage(%d) failed: %v", i, err)
	}
}

func tryNewPage(a *Allocator, i int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.newpageLocked(i)
}
