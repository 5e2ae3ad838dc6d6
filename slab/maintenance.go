package slab

import (
	"sync"

	"github.com/cachecore/slabcache/hk"
)

// Maintenance ties the Rebalancer's worker goroutine and the Automover's
// periodic tick together under one start/stop lifecycle, registered with a
// housekeeping scheduler (spec.md §5, "maintenance lifecycle").
type Maintenance struct {
	a    *Allocator
	sched *hk.Scheduler
	name  string

	once sync.Once
}

// StartMaintenance registers the automover's tick with sched (defaulting to
// hk.DefaultHK when sched is nil) and starts the rebalancer's background
// worker. name distinguishes multiple allocators sharing one scheduler.
func (a *Allocator) StartMaintenance(sched *hk.Scheduler, name string) *Maintenance {
	if sched == nil {
		sched = hk.DefaultHK
	}
	m := &Maintenance{a: a, sched: sched, name: name}
	a.reb.Start()
	sched.Reg(name+".automove", a.am.Tick, a.cfg.DecisionSecondsLong)
	return m
}

// Stop is idempotent: it unregisters the automover tick and signals the
// rebalancer worker to exit once its in-flight page move (if any)
// completes (spec.md §5).
func (m *Maintenance) Stop() {
	m.once.Do(func() {
		m.sched.Unreg(m.name + ".automove")
		m.a.reb.Stop()
	})
}

// SetDecisionSink installs the decision journal on the automover. The
// automover is built by New, so this may be called before or after
// StartMaintenance.
func (a *Allocator) SetDecisionSink(sink DecisionSink) { a.am.SetSink(sink) }

// Reassign is the public entry point onto the Rebalancer (spec.md §4.4/§6).
func (a *Allocator) Reassign(src, dst, numSlabs int) error {
	return a.reb.Reassign(src, dst, numSlabs)
}

// RebalancerState exposes the Rebalancer's current state for the stats
// surface without leaking the Rebalancer type itself outside the package.
func (a *Allocator) RebalancerState() int32 { return a.reb.State() }
