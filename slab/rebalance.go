package slab

import (
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/cachecore/slabcache/cmn"
	"github.com/golang/glog"
)

// Rebalancer states (spec.md §4.4). REQUESTED never has an observable
// duration in this implementation: admission (class validation, the
// spare-page check, growing C[dst].pages) runs synchronously inside
// Reassign so that its error returns are immediate and non-blocking, as
// spec.md §8's boundary behaviors require ("NOSPARE returned
// immediately", "RUNNING does not block"). Once admitted, the job is hung
// off the Rebalancer and the background worker alone drives
// RUNNING->FINISH->IDLE.
const (
	rebIdle int32 = iota
	rebRunning
)

// job describes one admitted page-migration request. dst == 0 means
// shrink: reclaim the page to the arena instead of grafting it onto
// another class (spec.md §4.4).
type job struct {
	src, dst int
	numSlabs int
	moved    int
}

// Rebalancer implements spec.md §4.4: migrating whole pages between slab
// classes, or releasing them back to the arena, without ever returning
// preallocated-arena memory to the operating system. Only one job runs at
// a time (spec.md §5, "Rebalance lock").
//
// Grounded on the teacher repository's pattern of a dedicated background
// goroutine driven by a StopCh and guarded by its own state plus the
// allocator's lock for the data it touches (the shape memsys.MMSA's
// periodic GC goroutine and the hk-registered callbacks both follow);
// generalized here from buffer GC to page migration, which the teacher
// never does.
type Rebalancer struct {
	a *Allocator

	admit *cmn.DynSemaphore // size 1: at most one admitted job at a time
	stop  *cmn.StopCh
	wake  chan struct{} // signals the worker that a job was just admitted

	state int32 // rebIdle | rebRunning, allocator-lock protected
	cur   *job
}

func newRebalancer(a *Allocator) *Rebalancer {
	return &Rebalancer{
		a:     a,
		admit: cmn.NewDynSemaphore(1),
		stop:  cmn.NewStopCh(),
		wake:  make(chan struct{}, 1),
	}
}

// Reassign admits a page-migration or shrink request per spec.md §4.4/§8.
// dst == 0 requests a shrink (reclaim a page from src back to the arena).
// src == -1 means "pick any class other than dst with at least two pages"
// (spec.md §4.4, §6). Validation happens synchronously; the actual page
// move or release happens on the background worker.
func (r *Rebalancer) Reassign(src, dst, numSlabs int) error {
	a := r.a
	a.mu.Lock()

	if numSlabs < 1 {
		a.mu.Unlock()
		return ErrKillFew
	}
	if dst != 0 && (dst < a.smallest || dst > a.largest) {
		a.mu.Unlock()
		return ErrBadClass
	}
	if src == -1 {
		src = pickSpareSource(a, dst)
		if src == 0 {
			a.mu.Unlock()
			return ErrNoSpare
		}
	}
	if src < a.smallest || src > a.largest {
		a.mu.Unlock()
		return ErrBadClass
	}
	if src == dst {
		a.mu.Unlock()
		return ErrSrcDstSame
	}
	if a.classes[src].nPages() <= numSlabs {
		a.mu.Unlock()
		return ErrNoSpare
	}

	if !r.admit.TryAcquire() {
		a.mu.Unlock()
		return ErrRunning
	}

	r.cur = &job{src: src, dst: dst, numSlabs: numSlabs}
	r.state = rebRunning
	a.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

// pickSpareSource returns the first class other than dst with at least two
// pages, or 0 if none qualifies. Caller must hold a.mu.
func pickSpareSource(a *Allocator, dst int) int {
	for i := a.smallest; i <= a.largest; i++ {
		if i == dst {
			continue
		}
		if a.classes[i].nPages() >= 2 {
			return i
		}
	}
	return 0
}

// State reports the current Rebalancer state for the stats surface.
func (r *Rebalancer) State() int32 {
	r.a.mu.Lock()
	defer r.a.mu.Unlock()
	return r.state
}

// run is the background worker loop (spec.md §4.4's RUNNING state):
// migrate or shrink one page per iteration until the job's num_slabs
// pages have all been handled, then transition back to IDLE.
func (r *Rebalancer) run() {
	for {
		select {
		case <-r.stop.Listen():
			return
		case <-r.wake:
		}
		for {
			done, err := r.migrateOnePage()
			if err != nil {
				glog.Warningf("slab: rebalance page move failed: %v", err)
			}
			if done {
				break
			}
			select {
			case <-r.stop.Listen():
				return
			default:
			}
		}
	}
}

// migrateOnePage drains, reclaims and re-homes (or releases) a single page
// from job.src, returning done=true once the job's num_slabs pages have
// all been handled (spec.md §4.4 REQUESTED/RUNNING/FINISH).
func (r *Rebalancer) migrateOnePage() (bool, error) {
	a := r.a

	a.mu.Lock()
	j := r.cur
	if j == nil || j.moved >= j.numSlabs {
		r.finish()
		a.mu.Unlock()
		return true, nil
	}
	srcCls := a.classes[j.src]
	if srcCls.nPages() <= 1 {
		// Ran out of spare pages mid-job (a concurrent shrink/alloc raced
		// this one): stop short rather than drain the class to zero pages.
		r.finish()
		a.mu.Unlock()
		return true, nil
	}
	page := srcCls.pages[0]
	srcCls.killing = 1 // 1 + index of pages[0]
	a.mu.Unlock()

	r.drain(page, srcCls)

	a.mu.Lock()
	for _, ch := range page.chunks {
		ch.setClassID(DeadClassID)
	}
	srcCls.removePage(page)
	srcCls.killing = 0

	if j.dst == 0 {
		a.arena.Release(page.memory, len(page.memory))
		a.slabsShrunk.Inc()
	} else {
		dstCls := a.classes[j.dst]
		page.zero()
		page.resplit(dstCls.size)
		dstCls.appendPage(page)
		a.slabsMoved.Inc()
	}

	j.moved++
	done := j.moved >= j.numSlabs
	if done {
		r.finish()
	}
	a.mu.Unlock()
	return done, nil
}

// drain implements spec.md §4.4's per-chunk RUNNING state machine: wait out
// or unlink every item still live in page, looping the whole page again if
// any chunk was busy, backing off 50µs between passes. Up to cfg.BulkCheck
// chunks are processed per lock acquisition (spec.md §4.4 "advances
// cursor by up to BULK chunks per lock acquisition", §6 "bulk_check").
func (r *Rebalancer) drain(page *Page, srcCls *Class) {
	a := r.a
	hooks := a.hooks
	bulk := a.cfg.BulkCheck
	if bulk < 1 {
		bulk = 1
	}

	for {
		busySeen := 0
		for start := 0; start < len(page.chunks); start += bulk {
			end := start + bulk
			if end > len(page.chunks) {
				end = len(page.chunks)
			}

			hooks.Lock()
			a.mu.Lock()
			for _, ch := range page.chunks[start:end] {
				if ch.ClassID() == DeadClassID {
					continue
				}

				rc := ch.AddRef()
				done := false
				switch {
				case rc == 1 && ch.HasFlag(FlagSlabbed):
					srcCls.unlinkFree(ch)
					done = true
				case rc == 1 && !ch.HasFlag(FlagSlabbed):
					ch.DecRef()
					busySeen++
				case rc == 2 && ch.HasFlag(FlagLinked):
					hooks.UnlinkItem(ch, xxhash.Checksum64(ch.Key()))
					done = true
				default:
					ch.DecRef()
					busySeen++
				}
				if done {
					ch.setFlags(0)
					ch.setRefcount(0)
					ch.setClassID(DeadClassID)
				}
			}
			a.mu.Unlock()
			hooks.Unlock()
		}

		if busySeen == 0 {
			return
		}
		time.Sleep(50 * time.Microsecond)
	}
}

// finish transitions RUNNING -> IDLE and releases the admission slot.
// Caller must hold a.mu.
func (r *Rebalancer) finish() {
	r.state = rebIdle
	r.cur = nil
	r.admit.Release()
}

// Start launches the background worker; safe to call once per Rebalancer
// lifetime (spec.md §4.7/§5, maintenance lifecycle).
func (r *Rebalancer) Start() { go r.run() }

// Stop signals the worker to exit after completing any page move currently
// in flight; it never aborts mid-page-move (spec.md §5, "an in-flight
// rebalance completes its current page before the worker exits").
func (r *Rebalancer) Stop() { r.stop.Close() }
