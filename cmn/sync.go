// Adapted from the teacher repository's cmn.StopCh / cmn.DynSemaphore
// (cmn/sync.go), trimmed to the two primitives the allocator's background
// workers need.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import "sync"

type (
	// StopCh is a specialized channel for idempotently stopping a worker:
	// Close may be called more than once (e.g. by both stop_maintenance and
	// a panic-recovery path) without a double-close panic.
	StopCh struct {
		once sync.Once
		ch   chan struct{}
	}

	// DynSemaphore is a counting semaphore; its size is fixed by
	// NewDynSemaphore (this trimmed copy has no resize method). The
	// Rebalancer uses one of size 1 to admit at most one in-flight job
	// without blocking callers that lose the race.
	DynSemaphore struct {
		size int
		cur  int
		c    *sync.Cond
		mu   sync.Mutex
	}
)

func NewStopCh() *StopCh {
	return &StopCh{ch: make(chan struct{})}
}

func (sc *StopCh) Listen() <-chan struct{} { return sc.ch }

func (sc *StopCh) Close() {
	sc.once.Do(func() { close(sc.ch) })
}

func NewDynSemaphore(n int) *DynSemaphore {
	s := &DynSemaphore{size: n}
	s.c = sync.NewCond(&s.mu)
	return s
}

// TryAcquire acquires without blocking, returning false if the semaphore is
// currently fully occupied. Used by the rebalancer's non-blocking
// try-acquire admission (spec.md §5, "Rebalance lock").
func (s *DynSemaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur >= s.size {
		return false
	}
	s.cur++
	return true
}

func (s *DynSemaphore) Release() {
	s.mu.Lock()
	Assert(s.cur > 0)
	s.cur--
	s.c.Signal()
	s.mu.Unlock()
}
