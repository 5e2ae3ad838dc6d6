// Package testitems is a minimal fake item subsystem implementing
// slab.Hooks, used by the allocator and rebalancer test suites so they can
// exercise the Rebalancer's drain/unlink path without a real hash table.
package testitems

import (
	"sync"

	"github.com/OneOfOne/xxhash"

	"github.com/cachecore/slabcache/slab"
)

// Fake is a slab.Hooks implementation backed by a plain map keyed on the
// item's key hash, with a per-class eviction counter the Automover can
// read via EvictionsSnapshot.
type Fake struct {
	mu        sync.Mutex
	linked    map[uint64]*slab.Chunk
	evictions []int64 // indexed by class id
}

// New returns a Fake sized for classIDLimit+1 classes.
func New(classIDLimit int) *Fake {
	return &Fake{
		linked:    make(map[uint64]*slab.Chunk),
		evictions: make([]int64, classIDLimit+1),
	}
}

func (f *Fake) Lock()   { f.mu.Lock() }
func (f *Fake) Unlock() { f.mu.Unlock() }

// Link records ch as present in the fake hash table, as a real item
// subsystem would upon a successful `set`. Caller must not hold the lock.
func (f *Fake) Link(ch *slab.Chunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linked[xxhash.Checksum64(ch.Key())] = ch
	ch.AddRef()
}

// UnlinkItem implements slab.Hooks: remove ch from the fake hash table.
// Caller (the Rebalancer) holds the lock already.
func (f *Fake) UnlinkItem(ch *slab.Chunk, keyHash uint64) {
	delete(f.linked, keyHash)
}

// EvictionsSnapshot implements slab.Hooks.
func (f *Fake) EvictionsSnapshot(out []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(out, f.evictions)
}

// Evict simulates class i evicting one item (used to drive the Automover
// in tests without a real LRU).
func (f *Fake) Evict(classID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if classID < len(f.evictions) {
		f.evictions[classID]++
	}
}
