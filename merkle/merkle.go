// Package merkle builds a binary hash tree over a list of leaf
// digests and verifies inclusion proofs against it.
package merkle

import (
	"golang.org/x/sync/errgroup"

	"github.com/hyperpolymath/ochrance/hash"
)

// ParallelThreshold is the leaf count above which leaf-layer and
// first-internal-layer combination is parallelized via errgroup.
const ParallelThreshold = 1 << 14

// domain-separation prefixes, fixed per spec.md §9's open question:
// some distinct tag is required for internal vs. leaf hashing to
// prevent second-preimage attacks; the literal value is
// implementation-defined.
const (
	leafPrefix     byte = 0x00
	internalPrefix byte = 0x01
)

// Tree is a binary Merkle hash tree. The zero value is not usable;
// construct with Build.
type Tree struct {
	algorithm hash.Algorithm
	root      hash.Digest
	leaves    []hash.Digest
	// levels[0] holds the raw leaf digests; levels[1] holds their
	// domain-separated leaf hashes; levels[len-1] is {root}.
	levels [][]hash.Digest
}

// Root returns the tree's root digest.
func (t *Tree) Root() hash.Digest { return t.root }

// Depth returns the tree's depth: the number of combine steps from a
// leaf to the root. A single-leaf tree has depth 0.
func (t *Tree) Depth() int {
	if len(t.levels) < 2 {
		return 0
	}
	return len(t.levels) - 2
}

// LeafCount returns the number of leaves the tree was built from.
func (t *Tree) LeafCount() int { return len(t.leaves) }

func combine(a hash.Algorithm, left, right hash.Digest) hash.Digest {
	buf := make([]byte, 1+len(left.Bytes)+len(right.Bytes))
	buf[0] = internalPrefix
	n := copy(buf[1:], left.Bytes)
	copy(buf[1+n:], right.Bytes)
	return hash.MustSum(a, buf)
}

func leafDigest(a hash.Algorithm, leaf hash.Digest) hash.Digest {
	// Leaf digests already come from the content-hash oracle (the
	// caller supplies per-block digests); the domain-separated leaf
	// hashing step re-hashes them under the leaf prefix so that a
	// leaf digest can never be mistaken for, or substituted as, an
	// internal node's digest of the same bytes.
	buf := make([]byte, 1+len(leaf.Bytes))
	buf[0] = leafPrefix
	copy(buf[1:], leaf.Bytes)
	return hash.MustSum(a, buf)
}

// Build constructs a Merkle tree over leaves under algorithm a.
// An empty leaf list yields a tree whose root is the well-known
// zero digest for a. A singleton yields a single-leaf tree. Odd
// counts at any level duplicate the trailing element before
// combining (the "duplicated-last" convention); this choice is
// deterministic and stable across builds of the same leaf sequence.
func Build(a hash.Algorithm, leaves []hash.Digest) (*Tree, error) {
	if !a.Valid() {
		return nil, errInvalidAlgorithm(a)
	}
	if len(leaves) == 0 {
		return &Tree{algorithm: a, root: hash.ZeroDigest(a)}, nil
	}

	level := make([]hash.Digest, len(leaves))
	if len(leaves) >= ParallelThreshold {
		var g errgroup.Group
		for i := range leaves {
			i := i
			g.Go(func() error {
				level[i] = leafDigest(a, leaves[i])
				return nil
			})
		}
		_ = g.Wait() // leafDigest never errors
	} else {
		for i := range leaves {
			level[i] = leafDigest(a, leaves[i])
		}
	}

	levels := [][]hash.Digest{append([]hash.Digest(nil), leaves...)}
	cur := level
	levels = append(levels, cur)
	for len(cur) > 1 {
		next := combineLevel(a, cur)
		levels = append(levels, next)
		cur = next
	}

	return &Tree{algorithm: a, root: cur[0], leaves: leaves, levels: levels}, nil
}

func combineLevel(a hash.Algorithm, level []hash.Digest) []hash.Digest {
	n := len(level)
	outLen := (n + 1) / 2
	out := make([]hash.Digest, outLen)

	work := func(i int) {
		left := level[2*i]
		var right hash.Digest
		if 2*i+1 < n {
			right = level[2*i+1]
		} else {
			right = left // duplicated-last promotion
		}
		out[i] = combine(a, left, right)
	}

	if n >= ParallelThreshold {
		var g errgroup.Group
		for i := 0; i < outLen; i++ {
			i := i
			g.Go(func() error { work(i); return nil })
		}
		_ = g.Wait()
	} else {
		for i := 0; i < outLen; i++ {
			work(i)
		}
	}
	return out
}

type invalidAlgorithmError struct{ a hash.Algorithm }

func (e invalidAlgorithmError) Error() string {
	return "merkle: invalid algorithm: " + string(e.a)
}

func errInvalidAlgorithm(a hash.Algorithm) error { return invalidAlgorithmError{a} }

// Root computes just the root digest over leaves, without retaining
// the full tree. Equivalent to Build(a, leaves).Root() but avoids
// keeping intermediate levels alive.
func Root(a hash.Algorithm, leaves []hash.Digest) (hash.Digest, error) {
	t, err := Build(a, leaves)
	if err != nil {
		return hash.Digest{}, err
	}
	return t.Root(), nil
}
