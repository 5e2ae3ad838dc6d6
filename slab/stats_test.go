package slab

import (
	"strings"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

// TestSnapshotStableWhenIdle asserts Snapshot() is a pure read: calling it
// twice with no intervening allocator activity must yield byte-for-byte
// equal stats. pretty.Compare gives a readable field-level diff instead of
// a bare "not equal" on failure.
func TestSnapshotStableWhenIdle(t *testing.T) {
	a := New(testConfig(), nil)

	first := a.Snapshot()
	second := a.Snapshot()
	if diff := pretty.Compare(first, second); diff != "" {
		t.Fatalf("snapshot changed with no intervening activity:\n%s", diff)
	}
}

// TestSnapshotReflectsAlloc asserts an Alloc changes the snapshot for the
// class it touched.
func TestSnapshotReflectsAlloc(t *testing.T) {
	a := New(testConfig(), nil)
	i := a.Classify(100)

	before := a.Snapshot()
	if _, err := a.Alloc(100, i); err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	after := a.Snapshot()

	if diff := pretty.Compare(before, after); diff == "" {
		t.Fatalf("expected snapshot to change after an alloc, got no diff")
	}
}

// TestTextLinesRendersFullSurface asserts every field spec.md §6 names for
// the "STAT key value" wire format actually appears: the global
// slabs_moved/slabs_shrunk/slab_reassign_running lines, and each class's
// chunks_per_page, total_chunks, mem_requested and forwarded command
// counters.
func TestTextLinesRendersFullSurface(t *testing.T) {
	a := New(testConfig(), nil)
	i := a.Classify(100)
	if _, err := a.Alloc(100, i); err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	a.classes[i].IncCmd("get_hits", 3)

	lines := a.Snapshot().TextLines()
	joined := strings.Join(lines, "\n")

	for _, want := range []string{
		"STAT slabs_moved ",
		"STAT slabs_shrunk ",
		"STAT slab_reassign_running ",
		"chunks_per_page ",
		"total_chunks ",
		"mem_requested ",
		":get_hits 3",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected a line containing %q, got:\n%s", want, joined)
		}
	}
}
