// Package bufpool recycles the fixed-size byte buffers the admin HTTP
// surface uses to render stats responses, so a busy /stats poller does not
// force a fresh allocation (and GC pressure) on every request.
//
// Adapted from the teacher repository's memsys.MMSA/Slab: that type is a
// full scatter-gather buffer manager with many concurrently-sized rings,
// SGL-backed io.Reader/Writer assembly, and memory-pressure-driven
// reduction. None of that machinery applies here — the admin surface only
// ever needs one buffer size — so this keeps just the ring shape (a
// get/put pair of slices behind two mutexes, grown on demand, reduced by a
// periodic housekeeping callback) and drops the SGL, multi-slab, and
// memory-pressure-sampling pieces entirely.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package bufpool

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/cachecore/slabcache/hk"
)

const (
	minDepth = 16
	maxDepth = 1024
)

// Pool is a ring of same-size byte buffers, grown on demand and reduced
// when idle. Safe for concurrent use.
type Pool struct {
	name     string
	bufSize  int
	muget    sync.Mutex
	muput    sync.Mutex
	get, put [][]byte
	pos      int
	minDepth atomic.Int64
	hits     atomic.Int64
	lastHits int64
}

// New constructs a Pool of bufSize-byte buffers and registers its idle
// reducer with sched (defaulting to hk.DefaultHK when sched is nil) under
// name+".bufpool.gc".
func New(sched *hk.Scheduler, name string, bufSize int, idleCheck time.Duration) *Pool {
	if sched == nil {
		sched = hk.DefaultHK
	}
	p := &Pool{name: name, bufSize: bufSize, get: make([][]byte, 0, minDepth), put: make([][]byte, 0, minDepth)}
	p.minDepth.Store(minDepth)
	sched.Reg(name+".bufpool.gc", func() time.Duration {
		p.reduceIfIdle()
		return idleCheck
	}, idleCheck)
	return p
}

// Alloc returns a bufSize-byte buffer from the pool, growing it first if
// empty.
func (p *Pool) Alloc() []byte {
	p.muget.Lock()
	defer p.muget.Unlock()

	if len(p.get) > p.pos {
		buf := p.get[p.pos]
		p.pos++
		p.hits.Inc()
		return buf
	}
	return p.allocSlow()
}

func (p *Pool) allocSlow() []byte {
	depth := int(p.minDepth.Load())
	if depth == 0 {
		depth = 1
	}

	p.muput.Lock()
	if cnt := depth - len(p.put); cnt > 0 {
		p.grow(cnt)
	}
	p.get, p.put = p.put, p.get
	p.put = p.put[:0]
	p.muput.Unlock()

	p.pos = 0
	buf := p.get[p.pos]
	p.pos++
	p.hits.Inc()
	return buf
}

func (p *Pool) grow(cnt int) {
	for ; cnt > 0; cnt-- {
		p.put = append(p.put, make([]byte, p.bufSize))
	}
}

// Free returns buf to the pool; buf must have been obtained from Alloc on
// this Pool. When the put-side cache is already saturated the buffer is
// simply dropped, matching the teacher's "don't hard-limit, just let the
// extra buffer be collected" policy.
func (p *Pool) Free(buf []byte) {
	p.muput.Lock()
	defer p.muput.Unlock()
	if len(p.put) < maxDepth {
		p.put = append(p.put, buf[:p.bufSize])
	}
}

// reduceIfIdle halves the pool's cached depth when no Alloc has landed
// since the previous check (spec.md's ambient-stack carry-over of the
// teacher's idle-slab reduction heuristic).
func (p *Pool) reduceIfIdle() {
	cur := p.hits.Load()
	idle := cur == p.lastHits
	p.lastHits = cur
	if !idle {
		return
	}

	p.muput.Lock()
	if n := len(p.put) / 2; n > 0 {
		for i := len(p.put) - 1; i >= len(p.put)-n; i-- {
			p.put[i] = nil
		}
		p.put = p.put[:len(p.put)-n]
	}
	p.muput.Unlock()
}

// Stop unregisters the idle reducer from its scheduler.
func (p *Pool) Stop(sched *hk.Scheduler) {
	if sched == nil {
		sched = hk.DefaultHK
	}
	sched.Unreg(p.name + ".bufpool.gc")
}
