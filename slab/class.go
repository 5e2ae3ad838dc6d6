package slab

// Class is one slab-class descriptor, `C[i]` in spec.md §3: a bucket of
// equal-size chunks, its owned pages, and its intrusive freelist.
type Class struct {
	id      uint32
	size    int
	perslab int

	pages         []*Page
	pagesCapacity int

	freeHead  *Chunk
	freeCount int64

	killing int // 0 idle; else 1+index into pages of the page being migrated

	requestedBytes int64

	// cmdCounters holds the per-class command counters the stats surface
	// forwards (spec.md §4.3, "stats(sink)"); the allocator itself never
	// increments these — an owning cache layer does via IncCmd.
	cmdCounters map[string]int64
}

func newClass(id uint32, size, perslab int) *Class {
	return &Class{id: id, size: size, perslab: perslab, cmdCounters: make(map[string]int64)}
}

func (c *Class) nPages() int { return len(c.pages) }

// IncCmd bumps a named per-class command counter (e.g. "get_hits"); the
// counter is purely a pass-through the stats surface renders, matching
// spec.md §4.3's "forwarded per-class command counters".
func (c *Class) IncCmd(name string, delta int64) { c.cmdCounters[name] += delta }

func (c *Class) pushFree(ch *Chunk) {
	ch.setFlags(FlagSlabbed)
	ch.setClassID(0)
	ch.prev = nil
	ch.next = c.freeHead
	if c.freeHead != nil {
		c.freeHead.prev = ch
	}
	c.freeHead = ch
	c.freeCount++
}

func (c *Class) popFree() *Chunk {
	ch := c.freeHead
	if ch == nil {
		return nil
	}
	c.freeHead = ch.next
	if c.freeHead != nil {
		c.freeHead.prev = nil
	}
	ch.prev, ch.next = nil, nil
	c.freeCount--
	return ch
}

// unlinkFree removes a specific chunk from the freelist — used by the
// Rebalancer when it finds a to-be-migrated chunk still sitting free
// (spec.md §4.4, "unlink from freelist, mark DONE").
func (c *Class) unlinkFree(ch *Chunk) {
	if ch.prev != nil {
		ch.prev.next = ch.next
	} else {
		c.freeHead = ch.next
	}
	if ch.next != nil {
		ch.next.prev = ch.prev
	}
	ch.prev, ch.next = nil, nil
	c.freeCount--
}

// growPagesCapacity doubles the pages slice's capacity (minimum 16),
// matching spec.md §4.3 newpage step 3.
func (c *Class) growPagesCapacity() {
	cap := c.pagesCapacity
	if cap == 0 {
		cap = 16
	} else {
		cap *= 2
	}
	grown := make([]*Page, len(c.pages), cap)
	copy(grown, c.pages)
	c.pages = grown
	c.pagesCapacity = cap
}

func (c *Class) appendPage(p *Page) {
	if len(c.pages) == c.pagesCapacity {
		c.growPagesCapacity()
	}
	c.pages = append(c.pages, p)
	for _, ch := range p.chunks {
		c.pushFree(ch)
	}
}

// removePage removes p from c.pages by swapping it with the last entry,
// per spec.md §4.4 FINISH. The pages slice's capacity is never contracted
// (spec.md §9, open question 1).
func (c *Class) removePage(p *Page) {
	idx := -1
	for i, pg := range c.pages {
		if pg == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic("slab: removePage on a page the class does not own")
	}
	last := len(c.pages) - 1
	c.pages[idx] = c.pages[last]
	c.pages[last] = nil
	c.pages = c.pages[:last]
}
