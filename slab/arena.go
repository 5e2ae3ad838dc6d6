package slab

import (
	"sync"

	"go.uber.org/atomic"
)

// Arena owns the backing memory for every slab page: either one up-front
// allocation sub-divided by a bump pointer (prealloc mode) or a sequence of
// independent system allocations, one per page (on-demand mode).
//
// Grounded on the teacher repository's memsys.MMSA, but simplified: MMSA
// hands out variably-sized buffers from many rings and never needs a
// preallocated-vs-on-demand mode switch (it is always on-demand). Arena
// adds the bump-pointer preallocation mode spec.md requires and drops the
// SGL/ring machinery, which belongs to a different allocation shape.
type Arena struct {
	mu            sync.Mutex
	prealloc      bool
	region        []byte
	offset        int
	chunkAlign    int
	malloc        func(n int) []byte
	mallocedBytes atomic.Int64
}

func defaultMalloc(n int) []byte { return make([]byte, n) }

// NewArena constructs an Arena. When prealloc is true it attempts one
// allocation of limit bytes; on failure it logs and falls back to
// per-reserve allocation, matching spec.md §4.1's init() behavior. A
// non-positive limit always uses per-reserve allocation.
func NewArena(limit int64, prealloc bool, chunkAlign int, malloc func(int) []byte) *Arena {
	if malloc == nil {
		malloc = defaultMalloc
	}
	if chunkAlign <= 0 {
		chunkAlign = 1
	}
	a := &Arena{chunkAlign: chunkAlign, malloc: malloc}
	if prealloc && limit > 0 {
		region := malloc(int(limit))
		if region == nil {
			logWarningf("arena: preallocation of %d bytes failed, falling back to per-page allocation", limit)
		} else {
			a.region = region
			a.prealloc = true
		}
	}
	return a
}

// Preallocated reports whether this Arena is running the inflexible,
// single-allocation bump-pointer mode.
func (a *Arena) Preallocated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prealloc
}

// MallocedBytes is the running total of bytes the Arena has handed out via
// Reserve, used by Allocator.newpage to enforce the configured limit.
func (a *Arena) MallocedBytes() int64 { return a.mallocedBytes.Load() }

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

// Reserve hands out an n-byte region, bump-allocating from the
// preallocated arena when present, or else calling the system allocator.
func (a *Arena) Reserve(n int) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.prealloc {
		off := alignUp(a.offset, a.chunkAlign)
		if off+n > len(a.region) {
			return nil, false
		}
		region := a.region[off : off+n]
		a.offset = off + n
		a.mallocedBytes.Add(int64(n))
		return region, true
	}

	region := a.malloc(n)
	if region == nil {
		return nil, false
	}
	a.mallocedBytes.Add(int64(n))
	return region, true
}

// Release returns a region to the system allocator. It is only meaningful
// in non-preallocated mode; in preallocated mode it is a no-op and the
// bytes remain owned by the arena (spec.md §4.1, §9 "Preallocated-arena
// shrink").
func (a *Arena) Release(region []byte, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prealloc {
		return
	}
	a.mallocedBytes.Sub(int64(n))
}
