package slab

import (
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/cachecore/slabcache/cmn"
)

// ClassStats is one class's row of the stats surface (spec.md §4.3,
// "stats(sink)"): chunk size, page count, free/used chunk counts, the
// forwarded per-class command counters, and the class's share of
// requested bytes.
type ClassStats struct {
	ClassID        uint32           `json:"class_id"`
	ChunkSize      int              `json:"chunk_size"`
	ChunksPerPage  int              `json:"chunks_per_page"`
	Pages          int              `json:"pages"`
	TotalChunks    int64            `json:"total_chunks"`
	FreeChunks     int64            `json:"free_chunks"`
	UsedChunks     int64            `json:"used_chunks"`
	RequestedBytes int64            `json:"requested_bytes"`
	Commands       map[string]int64 `json:"commands,omitempty"`
}

// Stats is the full allocator stats surface (spec.md §4.3, §4.6).
type Stats struct {
	LimitBytes    int64        `json:"limit_bytes"`
	TotalMalloced int64        `json:"total_malloced"`
	Preallocated  bool         `json:"preallocated"`
	SlabsMoved    int64        `json:"slabs_moved"`
	SlabsShrunk   int64        `json:"slabs_shrunk"`
	Rebalancing   bool         `json:"rebalancing"`
	Classes       []ClassStats `json:"classes"`
}

// Snapshot renders the current Stats (spec.md §4.3's stats(sink), with the
// sink fixed to "build a Stats value" here; JSON/text rendering are
// separate concerns handled by the admin surface).
func (a *Allocator) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		LimitBytes:    a.limit.Load(),
		TotalMalloced: a.arena.MallocedBytes(),
		Preallocated:  a.arena.Preallocated(),
		SlabsMoved:    a.slabsMoved.Load(),
		SlabsShrunk:   a.slabsShrunk.Load(),
		Rebalancing:   a.reb.state == rebRunning,
	}
	for i := a.smallest; i <= a.largest; i++ {
		c := a.classes[i]
		total := int64(c.perslab * c.nPages())
		used := total - c.freeCount
		cmds := make(map[string]int64, len(c.cmdCounters))
		for k, v := range c.cmdCounters {
			cmds[k] = v
		}
		s.Classes = append(s.Classes, ClassStats{
			ClassID:        c.id,
			ChunkSize:      c.size,
			ChunksPerPage:  c.perslab,
			Pages:          c.nPages(),
			TotalChunks:    total,
			FreeChunks:     c.freeCount,
			UsedChunks:     used,
			RequestedBytes: c.requestedBytes,
			Commands:       cmds,
		})
	}
	return s
}

// TextLines renders Stats as "STAT key value" lines, the wire format
// memcached's own stats command produces and that spec.md §6 names
// alongside JSON as an external interface.
func (s Stats) TextLines() []string {
	lines := []string{
		"STAT limit_bytes " + cmn.B2S(s.LimitBytes, 2),
		"STAT total_malloced " + cmn.B2S(s.TotalMalloced, 2),
		"STAT slabs_moved " + strconv.FormatInt(s.SlabsMoved, 10),
		"STAT slabs_shrunk " + strconv.FormatInt(s.SlabsShrunk, 10),
		"STAT slab_reassign_running " + strconv.FormatBool(s.Rebalancing),
	}
	for _, c := range s.Classes {
		prefix := "STAT class_" + strconv.FormatUint(uint64(c.ClassID), 10)
		lines = append(lines,
			prefix+":chunk_size "+strconv.Itoa(c.ChunkSize),
			prefix+":chunks_per_page "+strconv.Itoa(c.ChunksPerPage),
			prefix+":total_pages "+strconv.Itoa(c.Pages),
			prefix+":total_chunks "+strconv.FormatInt(c.TotalChunks, 10),
			prefix+":free_chunks "+strconv.FormatInt(c.FreeChunks, 10),
			prefix+":used_chunks "+strconv.FormatInt(c.UsedChunks, 10),
			prefix+":mem_requested "+strconv.FormatInt(c.RequestedBytes, 10),
		)
		for _, k := range sortedKeys(c.Commands) {
			lines = append(lines, prefix+":"+k+" "+strconv.FormatInt(c.Commands[k], 10))
		}
	}
	return lines
}

// sortedKeys returns m's keys in sorted order, so TextLines renders
// command-counter lines in a stable, deterministic sequence.
func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// JSON renders Stats as JSON via json-iterator, the faster drop-in
// encoding/json replacement the teacher repository's API layer uses for
// its own stats payloads.
func (s Stats) JSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(s)
}
