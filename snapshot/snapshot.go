// Package snapshot implements content-addressed prior-good-state
// storage consumed by the repair engine: a length-prefixed,
// gzip-compressed encoding of (BlockIndex, Block, BlockMetadata)
// triples, stored and retrieved through a storage.CAS backend.
package snapshot

import (
	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
)

// Entry is one (BlockIndex, Block, BlockMetadata) triple captured at
// snapshot time.
type Entry struct {
	Index    int
	Block    fsmodel.Block
	Metadata fsmodel.Metadata
}

// Snapshot is a content-addressed prior-good state: a full account of
// N blocks (used by rebuild-index) or a sparse subset (used by
// restore-block/rewrite-metadata, which only need the entries for the
// indices being restored).
type Snapshot struct {
	N         int
	Algorithm hash.Algorithm
	Entries   []Entry
}

// ByIndex returns the Entry for block index i, and whether it is
// present in the snapshot.
func (s *Snapshot) ByIndex(i int) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Index == i {
			return e, true
		}
	}
	return Entry{}, false
}

// Complete reports whether the snapshot carries an entry for every
// index in [0, N), as required by a rebuild-index repair.
func (s *Snapshot) Complete() bool {
	if len(s.Entries) != s.N {
		return false
	}
	seen := make(map[int]bool, s.N)
	for _, e := range s.Entries {
		if e.Index < 0 || e.Index >= s.N || seen[e.Index] {
			return false
		}
		seen[e.Index] = true
	}
	return true
}
