package policy

import (
	"fmt"

	"github.com/hyperpolymath/ochrance/fsmodel"
)

// BlockCountMatches checks that state carries exactly want.N() blocks.
func BlockCountMatches(want *fsmodel.Manifest) Predicate {
	return Predicate{
		ID: "block-count-matches",
		Apply: func(s *fsmodel.State) Verdict {
			if s.N() != want.N() {
				return Violation(fmt.Sprintf("state has %d blocks, manifest expects %d", s.N(), want.N()))
			}
			return Ok(fmt.Sprintf("state has %d blocks, matching the manifest", s.N()))
		},
	}
}

// NoBlockOwnerEmpty checks that every block's metadata carries a
// non-empty Owner.
func NoBlockOwnerEmpty() Predicate {
	return Predicate{
		ID: "no-block-owner-empty",
		Apply: func(s *fsmodel.State) Verdict {
			for i := 0; i < s.N(); i++ {
				m, err := s.Metadata(i)
				if err != nil {
					return Violation(err.Error())
				}
				if m.Owner == "" {
					return Violation(fmt.Sprintf("block %d has no owner", i))
				}
			}
			return Ok("every block has an owner")
		},
	}
}

// NoReadOnlyBlockModifiedAfter checks that no block marked ReadOnly
// changed since the manifest was produced, by comparing digests: if the
// manifest's recorded digest no longer matches the current block
// digest for a read-only block, the read-only invariant was violated.
// Metadata timestamps (ModifiedAt) are not consulted.
func NoReadOnlyBlockModifiedAfter(manifest *fsmodel.Manifest) Predicate {
	return Predicate{
		ID: "no-readonly-block-modified",
		Apply: func(s *fsmodel.State) Verdict {
			n := s.N()
			if manifest.N() < n {
				n = manifest.N()
			}
			for i := 0; i < n; i++ {
				m, err := s.Metadata(i)
				if err != nil {
					return Violation(err.Error())
				}
				if !m.ReadOnly {
					continue
				}
				b, err := s.Block(i)
				if err != nil {
					return Violation(err.Error())
				}
				want, err := manifest.BlockDigest(i)
				if err != nil {
					return Violation(err.Error())
				}
				if !b.Leaf.Equal(want) {
					return Violation(fmt.Sprintf("read-only block %d was modified", i))
				}
			}
			return Ok("no read-only block was modified")
		},
	}
}
