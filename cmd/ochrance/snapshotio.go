package main

import (
	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/snapshot"
	"github.com/hyperpolymath/ochrance/storage"
)

// putSnapshot encodes state as a full prior-good-state snapshot
// (every block and its metadata, not just the subset a later repair
// ends up needing) and stores it in cas, content-addressed by its own
// digest under algorithm. The returned digest is what attest records
// in @refs.snapshot_digest for a later repair to fetch back out.
func putSnapshot(cas storage.CAS, state *fsmodel.State, algorithm hash.Algorithm) (hash.Digest, error) {
	entries := make([]snapshot.Entry, state.N())
	for i := 0; i < state.N(); i++ {
		b, err := state.Block(i)
		if err != nil {
			return hash.Digest{}, err
		}
		m, err := state.Metadata(i)
		if err != nil {
			return hash.Digest{}, err
		}
		entries[i] = snapshot.Entry{Index: i, Block: b, Metadata: m}
	}
	payload, err := snapshot.Encode(&snapshot.Snapshot{N: state.N(), Algorithm: algorithm, Entries: entries})
	if err != nil {
		return hash.Digest{}, err
	}
	return cas.Put(payload)
}
