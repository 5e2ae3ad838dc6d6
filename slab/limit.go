package slab

import "github.com/cachecore/slabcache/cmn"

// ShrinkExpand changes the configured memory limit (spec.md §4.6). -1
// (ErrInflexible) and -2 (ErrTooSmall) are this call's own error returns,
// not sentinel inputs: a newLimit smaller than one page always yields
// ErrTooSmall, whatever the arena mode; any other newLimit against a
// preallocated (fixed-size) arena yields ErrInflexible. Any other newLimit
// is installed as the new limit (enforced by newpage from then on) and the
// page count it affords at the largest class's page size is returned.
func (a *Allocator) ShrinkExpand(newLimit int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pageBytes := int64(a.classes[a.largest].size)
	if newLimit < pageBytes {
		return 0, ErrTooSmall
	}
	if a.arena.Preallocated() {
		return 0, ErrInflexible
	}

	a.limit.Store(newLimit)
	return cmn.DivCeil(newLimit, pageBytes), nil
}
