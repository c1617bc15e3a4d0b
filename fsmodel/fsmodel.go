// Package fsmodel defines the runtime block-and-metadata state
// (FSState) and the immutable integrity specification (FSManifest)
// that the verifier and repair engine operate on.
//
// Per spec.md §9's design note on dependent-type invariants: the
// source language carries "exactly n elements" as a type index. Here
// the length n is established once, at construction, by a private
// constructor (NewState/NewManifest); all other code treats indexing
// as checked only at the boundary (Block, Metadata accessors),
// following option (b) of that design note.
package fsmodel

import (
	"fmt"
	"time"

	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/merkle"
)

// BlockSize is the system constant block size in bytes.
const BlockSize = 4096

// Block is a unit of storage integrity: raw bytes plus their
// content-hash-oracle leaf digest.
type Block struct {
	Raw   []byte
	Leaf  hash.Digest
}

// NewBlock computes Leaf from raw under algorithm a.
func NewBlock(a hash.Algorithm, raw []byte) (Block, error) {
	d, err := hash.Sum(a, raw)
	if err != nil {
		return Block{}, err
	}
	return Block{Raw: raw, Leaf: d}, nil
}

// Metadata is a block's non-integrity-bearing metadata record. It
// never participates in integrity hashing unless a manifest
// explicitly incorporates it (this implementation does not).
type Metadata struct {
	ModifiedAt time.Time
	Owner      string
	ReadOnly   bool
}

// State is FSState(n): an ordered collection of exactly n blocks with
// matching metadata. The only way to construct one is NewState, which
// establishes n once and validates the length invariant; callers may
// mutate a State's blocks in place afterward (the repair engine does),
// but can never change its length.
type State struct {
	blocks   []Block
	metadata []Metadata
}

// NewState constructs a State, validating that blocks and metadata
// have equal length.
func NewState(blocks []Block, metadata []Metadata) (*State, error) {
	if len(blocks) != len(metadata) {
		return nil, fmt.Errorf("fsmodel: block vector length %d != metadata vector length %d", len(blocks), len(metadata))
	}
	return &State{blocks: blocks, metadata: metadata}, nil
}

// N returns the number of blocks in the state.
func (s *State) N() int { return len(s.blocks) }

// Block returns the block at index i, or an error if i is outside
// [0, N); this is the single checked boundary per the design note
// above.
func (s *State) Block(i int) (Block, error) {
	if i < 0 || i >= len(s.blocks) {
		return Block{}, fmt.Errorf("fsmodel: block index %d out of range [0,%d)", i, len(s.blocks))
	}
	return s.blocks[i], nil
}

// Metadata returns the metadata at index i.
func (s *State) Metadata(i int) (Metadata, error) {
	if i < 0 || i >= len(s.metadata) {
		return Metadata{}, fmt.Errorf("fsmodel: metadata index %d out of range [0,%d)", i, len(s.metadata))
	}
	return s.metadata[i], nil
}

// SetBlock replaces the block and metadata at index i. Used
// exclusively by the repair engine.
func (s *State) SetBlock(i int, b Block, m Metadata) error {
	if i < 0 || i >= len(s.blocks) {
		return fmt.Errorf("fsmodel: block index %d out of range [0,%d)", i, len(s.blocks))
	}
	s.blocks[i] = b
	s.metadata[i] = m
	return nil
}

// SetMetadata replaces only the metadata at index i, leaving the
// block's raw bytes and leaf digest untouched.
func (s *State) SetMetadata(i int, m Metadata) error {
	if i < 0 || i >= len(s.metadata) {
		return fmt.Errorf("fsmodel: metadata index %d out of range [0,%d)", i, len(s.metadata))
	}
	s.metadata[i] = m
	return nil
}

// Manifest is FSManifest(n): an immutable integrity specification
// produced by attestation and consumed by verification.
type Manifest struct {
	root          hash.Digest
	blockDigests  []hash.Digest
	formatVersion string
	algorithm     hash.Algorithm

	PreviousRoot hash.Digest
	HasPrevious  bool
	ChainLength  int
}

// NewManifest constructs a Manifest from a per-block digest vector,
// computing its Merkle root under algorithm a at creation time. The
// manifest is immutable once returned: there is no exported setter.
func NewManifest(a hash.Algorithm, blockDigests []hash.Digest, formatVersion string) (*Manifest, error) {
	if formatVersion == "" {
		return nil, fmt.Errorf("fsmodel: manifest format version is required")
	}
	root, err := merkle.Root(a, blockDigests)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		root:          root,
		blockDigests:  append([]hash.Digest(nil), blockDigests...),
		formatVersion: formatVersion,
		algorithm:     a,
	}, nil
}

// NewManifestFromParts reconstructs a Manifest from its already-
// serialized parts (e.g. an A2ML document read back off disk),
// trusting root as given rather than recomputing it from
// blockDigests. This is deliberately distinct from NewManifest: a
// manifest read from storage may have had its root field tampered
// independently of its digest vector, and Attested-mode verification
// (which recomputes the Merkle root from blockDigests and compares it
// against Root()) depends on this function keeping the two
// independent so that divergence is observable instead of silently
// repaired by reconstruction.
func NewManifestFromParts(a hash.Algorithm, root hash.Digest, blockDigests []hash.Digest, formatVersion string) *Manifest {
	return &Manifest{
		root:          root,
		blockDigests:  append([]hash.Digest(nil), blockDigests...),
		formatVersion: formatVersion,
		algorithm:     a,
	}
}

func (m *Manifest) N() int                    { return len(m.blockDigests) }
func (m *Manifest) Root() hash.Digest         { return m.root }
func (m *Manifest) Algorithm() hash.Algorithm { return m.algorithm }
func (m *Manifest) FormatVersion() string     { return m.formatVersion }

// BlockDigest returns the manifest's expected digest for block i.
func (m *Manifest) BlockDigest(i int) (hash.Digest, error) {
	if i < 0 || i >= len(m.blockDigests) {
		return hash.Digest{}, fmt.Errorf("fsmodel: block digest index %d out of range [0,%d)", i, len(m.blockDigests))
	}
	return m.blockDigests[i], nil
}

// BlockDigests returns a copy of the manifest's full digest vector.
func (m *Manifest) BlockDigests() []hash.Digest {
	return append([]hash.Digest(nil), m.blockDigests...)
}

// TreeDepth returns the Merkle tree depth implied by N() blocks under
// the duplicated-last promotion convention.
func (m *Manifest) TreeDepth() int {
	n := m.N()
	if n <= 1 {
		return 0
	}
	depth := 0
	for n > 1 {
		n = (n + 1) / 2
		depth++
	}
	return depth
}
