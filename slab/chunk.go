package slab

import "go.uber.org/atomic"

// Chunk flag bits (spec.md §3, item header "flags" field).
const (
	FlagSlabbed uint32 = 1 << iota // on the class's freelist
	FlagLinked                     // present in the external item subsystem's hash table
)

// DeadClassID is the sentinel spec.md §3/I7 requires: the Rebalancer
// writes it into a chunk's class_id once the chunk has been reclaimed, so
// that a concurrent reader still holding a stale pointer observes a dead
// item rather than silently corrupt memory.
const DeadClassID uint32 = 0xFF

// Chunk is a fixed-size slot within a Page and doubles as the item header
// spec.md §3 describes: class_id, flags, refcount and the freelist
// prev/next links all live here, addressable independently of the payload
// bytes. An external item-subsystem collaborator that obtained a *Chunk
// via Allocator.Alloc may keep that pointer and later dereference it even
// after the chunk has been reclaimed by the Rebalancer — IsDead reports
// that condition (design note in spec.md §9, "intrusive freelist via item
// header").
//
// classID, flags and refcount are atomics because the Rebalancer's move()
// step increments refcount without holding the allocator lock continuously
// across the whole check (spec.md §4.4): "increment the item's refcount
// atomically".
type Chunk struct {
	classID  atomic.Uint32
	flags    atomic.Uint32
	refcount atomic.Int32
	prev     *Chunk
	next     *Chunk

	page  *Page
	index int
	size  int

	// key is a placeholder for the item header's key/nkey fields (spec.md
	// §6, "External interfaces"): enough for a test item-subsystem to
	// compute a key hash for unlink_item without this package needing to
	// know anything about key semantics.
	key []byte
}

func (c *Chunk) ClassID() uint32      { return c.classID.Load() }
func (c *Chunk) setClassID(v uint32)  { c.classID.Store(v) }
func (c *Chunk) Flags() uint32        { return c.flags.Load() }
func (c *Chunk) HasFlag(f uint32) bool { return c.flags.Load()&f != 0 }
func (c *Chunk) setFlags(f uint32)    { c.flags.Store(f) }
func (c *Chunk) addFlag(f uint32)     { c.flags.Store(c.flags.Load() | f) }
func (c *Chunk) clearFlag(f uint32)   { c.flags.Store(c.flags.Load() &^ f) }

// Refcount returns the chunk's current reference count.
func (c *Chunk) Refcount() int32 { return c.refcount.Load() }

// AddRef atomically increments the refcount, as the Rebalancer's move()
// step and any item-subsystem reader do when inspecting a live chunk.
func (c *Chunk) AddRef() int32 { return c.refcount.Inc() }

// DecRef atomically decrements the refcount.
func (c *Chunk) DecRef() int32 { return c.refcount.Dec() }

func (c *Chunk) setRefcount(v int32) { c.refcount.Store(v) }

// IsDead reports the 0xFF sentinel (spec.md I7): true once the Rebalancer
// has reclaimed this chunk out from under whatever held it.
func (c *Chunk) IsDead() bool { return c.ClassID() == DeadClassID }

// Size is the chunk's class size in bytes.
func (c *Chunk) Size() int { return c.size }

// Bytes returns the payload region of the chunk, excluding nothing — the
// header fields above live beside the payload in Go, not inside its first
// bytes, since Go offers no safe way to alias a []byte prefix onto typed
// fields (spec.md §9 permits a side-table design as long as the
// observable invariants hold).
func (c *Chunk) Bytes() []byte {
	beg := c.index * c.size
	return c.page.memory[beg : beg+c.size]
}

// SetKey stores the item key placeholder used by test item-subsystems to
// compute a key hash for unlink_item.
func (c *Chunk) SetKey(key []byte) { c.key = append(c.key[:0], key...) }
func (c *Chunk) Key() []byte       { return c.key }

// Page is a PAGE_BYTES-sized region owned by exactly one slab class,
// sliced into perslab equal chunks (spec.md §3, "Slab page").
type Page struct {
	memory []byte
	chunks []*Chunk
}

func newPage(memory []byte, chunkSize int) *Page {
	perslab := len(memory) / chunkSize
	p := &Page{memory: memory, chunks: make([]*Chunk, perslab)}
	for i := range p.chunks {
		p.chunks[i] = &Chunk{page: p, index: i, size: chunkSize}
	}
	return p
}

// resplit re-slices an already-owned page's bytes into chunks of a new
// size, used when the Rebalancer reassigns a page to a different class
// (spec.md §4.4, "FINISH").
func (p *Page) resplit(chunkSize int) {
	perslab := len(p.memory) / chunkSize
	p.chunks = make([]*Chunk, perslab)
	for i := range p.chunks {
		p.chunks[i] = &Chunk{page: p, index: i, size: chunkSize}
	}
}

func (p *Page) zero() {
	for i := range p.memory {
		p.memory[i] = 0
	}
}
