package slab

import "github.com/pkg/errors"

// Error kinds returned at the Allocator/Rebalancer API boundary (spec.md
// §7). Each is a sentinel so callers can compare with errors.Is.
var (
	ErrOutOfMemory = errors.New("slab: out of memory")
	ErrBadClass    = errors.New("slab: class id out of range")
	ErrSrcDstSame  = errors.New("slab: src and dst classes are the same")
	ErrNoSpare     = errors.New("slab: source class has too few pages to spare")
	ErrKillFew     = errors.New("slab: num_slabs must be >= 1")
	ErrRunning     = errors.New("slab: a rebalance is already running")
	ErrInflexible  = errors.New("slab: arena is preallocated, limit is fixed")
	ErrTooSmall    = errors.New("slab: new limit is smaller than one page")
)
