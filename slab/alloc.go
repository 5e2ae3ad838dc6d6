package slab

import (
	"sync"

	"github.com/golang/glog"
	"go.uber.org/atomic"
)

// Allocator is the slab-class table plus the arena it draws pages from: it
// implements the Allocator API of spec.md §4.3 (classify/alloc/free/
// adjust_requested/stats) and owns the single allocator lock every entry
// point takes for its whole body (spec.md §5).
type Allocator struct {
	mu sync.Mutex // the allocator lock

	cfg      Config
	arena    *Arena
	classes  []*Class // index 0 unused; classes[smallest..largest] populated
	smallest int
	largest  int

	limit atomic.Int64

	slabsMoved  atomic.Int64
	slabsShrunk atomic.Int64

	hooks Hooks

	reb *Rebalancer
	am  *Automover
}

// New builds an Allocator per spec.md §4.2: chunk sizes grow by
// cfg.GrowthFactor starting at cfg.BaseItemOverhead+cfg.InitialChunkExtra,
// aligned up to cfg.ChunkAlign, until reaching cfg.MaxItemBytes (the
// largest class, perslab=1).
//
// When cfg.Prealloc is set, New preallocates one page per class; if any
// such preallocation fails, New terminates the process via glog.Fatalf,
// matching spec.md §4.2's "initialization terminates the process (fatal
// configuration error)".
func New(cfg Config, hooks Hooks) *Allocator {
	if hooks == nil {
		hooks = NopHooks{}
	}
	pageBytes := cfg.MaxItemBytes

	a := &Allocator{cfg: cfg, hooks: hooks}
	a.arena = NewArena(cfg.LimitBytes, cfg.Prealloc, cfg.ChunkAlign, nil)
	if n, ok := initialMallocOverride(); ok {
		a.arena.mallocedBytes.Store(n)
	}
	a.limit.Store(cfg.LimitBytes)

	size := alignUp(cfg.BaseItemOverhead+cfg.InitialChunkExtra, cfg.ChunkAlign)
	a.smallest = 1
	id := uint32(1)
	a.classes = append(a.classes, nil) // index 0 sentinel: "too large"/invalid
	for size <= cfg.GrowthFactorFloor() {
		perslab := pageBytes / size
		a.classes = append(a.classes, newClass(id, size, perslab))
		id++
		size = alignUp(int(float64(size)*cfg.GrowthFactor), cfg.ChunkAlign)
	}
	a.classes = append(a.classes, newClass(id, pageBytes, 1))
	a.largest = int(id)

	if cfg.Prealloc {
		for i := a.smallest; i <= a.largest; i++ {
			if err := a.newpageLocked(i); err != nil {
				glog.Fatalf("slab: fatal: preallocation of class %d failed: %v", i, err)
			}
		}
	}

	a.reb = newRebalancer(a)
	a.am = newAutomover(a)
	return a
}

// GrowthFactorFloor exists only so New's loop condition reads naturally;
// growth_factor is always > 1 so this is just an int() of MaxItemBytes's
// scaling divisor used in the §4.2 "while" condition (size <=
// max_item_bytes/growth_factor).
func (cfg Config) GrowthFactorFloor() int {
	if cfg.GrowthFactor <= 1 {
		return cfg.MaxItemBytes
	}
	return int(float64(cfg.MaxItemBytes) / cfg.GrowthFactor)
}

// Smallest and Largest are the populated class-id bounds (spec.md §3).
func (a *Allocator) Smallest() int { return a.smallest }
func (a *Allocator) Largest() int  { return a.largest }

// Limit is the current configured memory cap (0 == unlimited).
func (a *Allocator) Limit() int64 { return a.limit.Load() }

// TotalMalloced is the arena's running allocation total.
func (a *Allocator) TotalMalloced() int64 { return a.arena.MallocedBytes() }

// Classify returns the smallest class id whose size is >= n, or 0 if n is
// larger than the largest class or exactly 0 (spec.md §4.3, §8 boundary
// behaviors).
func (a *Allocator) Classify(n int) int {
	if n == 0 {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.classifyLocked(n)
}

func (a *Allocator) classifyLocked(n int) int {
	for i := a.smallest; i <= a.largest; i++ {
		if a.classes[i].size >= n {
			return i
		}
	}
	return 0
}

// Alloc pops a free chunk from class i, growing the class by one page
// first if necessary (spec.md §4.3).
func (a *Allocator) Alloc(n, i int) (*Chunk, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < a.smallest || i > a.largest {
		return nil, ErrOutOfMemory
	}
	cls := a.classes[i]
	if cls.freeCount == 0 {
		if err := a.newpageLocked(i); err != nil {
			return nil, ErrOutOfMemory
		}
	}
	ch := cls.popFree()
	if ch == nil {
		return nil, ErrOutOfMemory
	}
	ch.clearFlag(FlagSlabbed)
	cls.requestedBytes += int64(n)
	return ch, nil
}

// Free returns a chunk to class i's freelist. The caller must have
// already cleared the chunk's class_id header field (spec.md §4.3); a
// violation is a fatal assertion, since it indicates the item subsystem
// broke its contract with the allocator (spec.md §7).
func (a *Allocator) Free(ch *Chunk, n, i int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch.ClassID() != 0 {
		glog.Fatalf("slab: fatal: free() of chunk with non-zero class_id %d", ch.ClassID())
	}
	cls := a.classes[i]
	cls.pushFree(ch)
	cls.requestedBytes -= int64(n)
}

// AdjustRequested updates class i's requested-bytes accounting when an
// existing item is resized in place (spec.md §4.3). An invalid class id
// is a fatal configuration error per spec.md §7.
func (a *Allocator) AdjustRequested(i int, oldSize, newSize int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < a.smallest || i > a.largest {
		glog.Fatalf("slab: fatal: adjust_requested on invalid class id %d", i)
	}
	a.classes[i].requestedBytes += int64(newSize - oldSize)
}

// newpageLocked implements spec.md §4.3's internal newpage(i); caller must
// hold a.mu.
func (a *Allocator) newpageLocked(i int) error {
	cls := a.classes[i]

	length := cls.size * cls.perslab
	if a.cfg.SlabReassign {
		length = a.cfg.MaxItemBytes // uniform PAGE_BYTES pages so they stay movable
	}

	limit := a.limit.Load()
	if limit > 0 && a.arena.MallocedBytes()+int64(length) > limit && cls.nPages() > 0 {
		return ErrOutOfMemory
	}

	if len(cls.pages) == cls.pagesCapacity {
		cls.growPagesCapacity()
	}

	region, ok := a.arena.Reserve(length)
	if !ok {
		return ErrOutOfMemory
	}
	for i := range region {
		region[i] = 0
	}
	page := newPage(region, cls.size)
	cls.pages = append(cls.pages, page)
	for _, ch := range page.chunks {
		cls.pushFree(ch)
	}
	return nil
}
