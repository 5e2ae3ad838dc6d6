// Package journal persists automover decisions to an embedded key/value
// store, so an operator can inspect why a rebalance did or didn't happen
// without having to catch it live in the stats surface.
package journal

import (
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/cachecore/slabcache/slab"
)

// Journal implements slab.DecisionSink on top of buntdb, an embedded,
// Redis-like key/value store the wider example corpus uses for exactly
// this kind of small, append-mostly local record-keeping.
type Journal struct {
	db  *buntdb.DB
	ttl time.Duration
}

// Open opens (creating if necessary) a buntdb database at path. ttl, if
// positive, expires journal entries after that duration so the database
// doesn't grow unbounded; 0 keeps entries forever.
func Open(path string, ttl time.Duration) (*Journal, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db, ttl: ttl}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

type record struct {
	TraceID  string `json:"trace_id"`
	Source   int    `json:"source"`
	Dest     int    `json:"dest"`
	NumSlabs int    `json:"num_slabs"`
	Dispatch bool   `json:"dispatch"`
	Reason   string `json:"reason"`
	AtUnix   int64  `json:"at_unix"`
}

// Record implements slab.DecisionSink (spec.md §4.5's optional decision
// trace, §6's buntdb-backed persistence).
func (j *Journal) Record(d slab.Decision) {
	rec := record{
		TraceID:  d.TraceID,
		Source:   d.Source,
		Dest:     d.Dest,
		NumSlabs: d.NumSlabs,
		Dispatch: d.Dispatch,
		Reason:   d.Reason,
		AtUnix:   time.Now().Unix(),
	}
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(rec)
	if err != nil {
		return
	}
	key := "decision:" + strconv.FormatInt(rec.AtUnix, 10) + ":" + rec.TraceID

	_ = j.db.Update(func(tx *buntdb.Tx) error {
		var opts *buntdb.SetOptions
		if j.ttl > 0 {
			opts = &buntdb.SetOptions{Expires: true, TTL: j.ttl}
		}
		_, _, err := tx.Set(key, string(b), opts)
		return err
	})
}

// Recent returns up to limit most-recently-recorded decisions, newest
// first.
func (j *Journal) Recent(limit int) ([]slab.Decision, error) {
	var out []slab.Decision
	err := j.db.View(func(tx *buntdb.Tx) error {
		return tx.DescendKeys("decision:*", func(key, value string) bool {
			var rec record
			if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(value, &rec); err == nil {
				out = append(out, slab.Decision{
					TraceID:  rec.TraceID,
					Source:   rec.Source,
					Dest:     rec.Dest,
					NumSlabs: rec.NumSlabs,
					Dispatch: rec.Dispatch,
					Reason:   rec.Reason,
				})
			}
			return limit <= 0 || len(out) < limit // false stops the scan once we have enough
		})
	})
	return out, err
}
