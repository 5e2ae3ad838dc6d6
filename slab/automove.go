package slab

import (
	"time"

	"github.com/google/uuid"
)

// Decision records one automover tick's outcome, whether or not it
// dispatched a rebalance (spec.md §4.5). TraceID lets an external journal
// correlate a decision with the Reassign call it produced.
type Decision struct {
	TraceID  string
	Source   int
	Dest     int // 0 means the dispatch (if any) was a shrink
	NumSlabs int
	Dispatch bool
	Reason   string
}

// DecisionSink receives every automover Decision, dispatched or not. A nil
// sink is valid; Automover treats it as "record nothing" (spec.md §4.5
// makes persistence of the decision trace optional).
type DecisionSink interface {
	Record(Decision)
}

// Automover implements spec.md §4.5's policy loop: every decision interval
// it looks at each class's eviction delta since the previous tick and
// decides whether some class should give up a page to a thrashing class,
// or whether the allocator is over its configured limit and needs to
// shrink.
//
// Grounded on the teacher repository's hk-registered periodic-callback
// shape (the same pattern Rebalancer.run's wake-driven loop follows),
// generalized from "reclaim idle buffers" to "move or release a page
// based on eviction pressure and the memory limit".
type Automover struct {
	a   *Allocator
	reb *Rebalancer

	aggressiveness int
	sink           DecisionSink

	prevEvictions []int64
	zeroStreak    []int
	winner        int
	winnerStreak  int
}

func newAutomover(a *Allocator) *Automover {
	return &Automover{
		a:              a,
		reb:            a.reb,
		aggressiveness: a.cfg.SlabAutomove,
	}
}

// SetSink installs the decision journal (spec.md §4.5, §6).
func (am *Automover) SetSink(sink DecisionSink) { am.sink = sink }

// Tick runs one automover decision cycle (spec.md §4.5). It is meant to be
// invoked periodically by the housekeeping scheduler; the returned
// duration is the delay before the next tick (short in aggressive mode,
// long otherwise), matching the hk.Scheduler callback contract.
func (am *Automover) Tick() time.Duration {
	if am.aggressiveness == AutomoveOff {
		return am.a.cfg.DecisionSecondsLong
	}

	a := am.a
	n := a.largest + 1
	cur := make([]int64, n)
	a.hooks.EvictionsSnapshot(cur)

	if am.prevEvictions == nil {
		am.prevEvictions = make([]int64, n)
		am.zeroStreak = make([]int, n)
		copy(am.prevEvictions, cur)
		return am.interval()
	}

	a.mu.Lock()
	pages := make([]int, n)
	for i := a.smallest; i <= a.largest; i++ {
		pages[i] = a.classes[i].nPages()
	}
	totalMalloced := a.arena.MallocedBytes()
	limit := a.limit.Load()
	a.mu.Unlock()

	delta := make([]int64, n)
	source := 0
	var highest int
	var highestDelta int64
	for i := a.smallest; i <= a.largest; i++ {
		delta[i] = cur[i] - am.prevEvictions[i]
		if delta[i] < 0 {
			delta[i] = 0
		}
		if delta[i] == 0 && pages[i] > 2 {
			am.zeroStreak[i]++
			if source == 0 && am.zeroStreak[i] >= 3 {
				source = i
			}
		} else {
			am.zeroStreak[i] = 0
			if delta[i] > highestDelta {
				highestDelta = delta[i]
				highest = i
			}
		}
	}
	copy(am.prevEvictions, cur)

	if highest == am.winner {
		am.winnerStreak++
	} else {
		am.winnerStreak = 1
		am.winner = highest
	}

	shrinking := limit > 0 && totalMalloced > limit

	dest := 0
	if am.winnerStreak >= 3 && !shrinking && highest != 0 {
		dest = highest
	}

	if am.aggressiveness == AutomoveAggressive {
		if emergency := am.emergencySource(pages, delta); emergency != 0 && source == 0 {
			source = emergency
		}
	}

	d := Decision{TraceID: uuid.New().String()}

	if source == 0 {
		d.Reason = "no spare source class"
		am.record(d)
		return am.interval()
	}
	if source == dest {
		dest = 0
	}

	numSlabs := am.numSlabs(totalMalloced, limit, pages[source], shrinking)

	d.Source = source
	d.NumSlabs = numSlabs

	var err error
	if shrinking {
		err = am.reb.Reassign(source, 0, numSlabs)
	} else if dest != 0 {
		d.Dest = dest
		err = am.reb.Reassign(source, dest, 1)
	} else {
		d.Reason = "no destination class thrashing"
		am.record(d)
		return am.interval()
	}

	if err != nil {
		d.Reason = err.Error()
	} else {
		d.Dispatch = true
		d.Reason = "dispatched"
	}
	am.record(d)
	return am.interval()
}

func (am *Automover) record(d Decision) {
	if am.sink != nil {
		am.sink.Record(d)
	}
}

func (am *Automover) interval() time.Duration {
	if am.aggressiveness == AutomoveAggressive {
		return am.a.cfg.DecisionSecondsShort
	}
	return am.a.cfg.DecisionSecondsLong
}

// emergencySource picks the class with the smallest eviction delta among
// classes with at least two pages, tie-broken toward the larger page
// count (spec.md §4.5 step 4, aggressive mode only).
func (am *Automover) emergencySource(pages []int, delta []int64) int {
	a := am.a
	var best int
	bestDelta := int64(-1)
	bestPages := -1
	for i := a.smallest; i <= a.largest; i++ {
		if pages[i] < 2 {
			continue
		}
		if bestDelta < 0 || delta[i] < bestDelta || (delta[i] == bestDelta && pages[i] > bestPages) {
			best = i
			bestDelta = delta[i]
			bestPages = pages[i]
		}
	}
	return best
}

// numSlabs implements spec.md §4.5 step 5.
func (am *Automover) numSlabs(totalMalloced, limit int64, sourcePages int, shrinking bool) int {
	if !shrinking {
		return 1
	}
	pageBytes := int64(am.a.cfg.MaxItemBytes)
	gapBytes := totalMalloced - limit
	gapPages := (gapBytes + pageBytes - 1) / pageBytes
	if gapPages <= 1 {
		return clampNumSlabs(int(gapPages), sourcePages)
	}

	a := am.a
	a.mu.Lock()
	active := 0
	for i := a.smallest; i <= a.largest; i++ {
		if a.classes[i].nPages() > 1 {
			active++
		}
	}
	a.mu.Unlock()
	if active == 0 {
		active = 1
	}

	n := (int(gapPages) + active - 1) / active
	if int64(active*n) < gapPages {
		n++
	}
	return clampNumSlabs(n, sourcePages)
}

func clampNumSlabs(n, sourcePages int) int {
	if n < 1 {
		n = 1
	}
	if cap := sourcePages - 1; cap >= 1 && n > cap {
		n = cap
	}
	return n
}
