package slab

// Hooks is the only way this package reaches the external item hash
// table / LRU subsystem (spec.md §1, "Out of scope: external
// collaborators"). It bundles the cache_lock the Rebalancer must acquire
// before the allocator lock (spec.md §5) together with the two calls
// spec.md §6 names explicitly.
type Hooks interface {
	// Lock/Unlock is the "cache_lock" spec.md §1 and §5 describe: a coarse
	// lock owned by the item subsystem, acquired by the Rebalancer before
	// the allocator lock in start/move/finish.
	Lock()
	Unlock()

	// UnlinkItem removes a linked, still-referenced item from the hash
	// table/LRU while the cache lock is held (spec.md §4.4, §6).
	UnlinkItem(c *Chunk, keyHash uint64)

	// EvictionsSnapshot fills out (indexed by class id, length
	// Allocator.Largest()+1) with each class's cumulative eviction count,
	// for the Automover's per-tick delta computation (spec.md §4.5, §6).
	EvictionsSnapshot(out []int64)
}

// NopHooks is a Hooks implementation that never has live items to unlink
// and reports no evictions — useful for exercising the allocator alone in
// tests that don't care about the rebalancer's item-draining behavior.
type NopHooks struct{}

func (NopHooks) Lock()                        {}
func (NopHooks) Unlock()                      {}
func (NopHooks) UnlinkItem(*Chunk, uint64)     {}
func (NopHooks) EvictionsSnapshot(out []int64) {}
