package policy

import (
	"testing"
	"time"

	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
)

func buildState(t *testing.T, n int, owner string, readOnly bool) *fsmodel.State {
	t.Helper()
	blocks := make([]fsmodel.Block, n)
	metas := make([]fsmodel.Metadata, n)
	for i := range blocks {
		b, err := fsmodel.NewBlock(hash.SHA256, []byte{byte(i)})
		if err != nil {
			t.Fatalf("NewBlock: %v", err)
		}
		blocks[i] = b
		metas[i] = fsmodel.Metadata{ModifiedAt: time.Unix(0, 0), Owner: owner, ReadOnly: readOnly}
	}
	s, err := fsmodel.NewState(blocks, metas)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func manifestFor(t *testing.T, s *fsmodel.State) *fsmodel.Manifest {
	t.Helper()
	digests := make([]hash.Digest, s.N())
	for i := 0; i < s.N(); i++ {
		b, err := s.Block(i)
		if err != nil {
			t.Fatalf("Block: %v", err)
		}
		digests[i] = b.Leaf
	}
	m, err := fsmodel.NewManifest(hash.SHA256, digests, "1.0")
	if err != nil {
		t.Fatalf("NewManifest: %v", err)
	}
	return m
}

func TestAllOfShortCircuits(t *testing.T) {
	s := buildState(t, 3, "", false)
	calls := 0
	predicates := []Predicate{
		NoBlockOwnerEmpty(),
		{ID: "never-reached", Apply: func(*fsmodel.State) Verdict {
			calls++
			return Ok("")
		}},
	}
	v := AllOf(s, predicates)
	if v.OK {
		t.Fatal("expected a Violation from NoBlockOwnerEmpty")
	}
	if calls != 0 {
		t.Fatal("AllOf must short-circuit on the first violation")
	}
}

func TestAnyOf(t *testing.T) {
	s := buildState(t, 2, "alice", false)
	predicates := []Predicate{
		{ID: "always-fails", Apply: func(*fsmodel.State) Verdict { return Violation("no") }},
		NoBlockOwnerEmpty(),
	}
	v := AnyOf(s, predicates)
	if !v.OK {
		t.Fatalf("expected AnyOf to find the passing predicate, got %+v", v)
	}
}

func TestNot(t *testing.T) {
	s := buildState(t, 1, "alice", false)
	inverted := Not(NoBlockOwnerEmpty())
	v := inverted.Apply(s)
	if v.OK {
		t.Fatal("expected Not to invert a passing predicate into a violation")
	}
}

func TestEvaluateAllAccumulates(t *testing.T) {
	s := buildState(t, 2, "", false)
	predicates := []Predicate{
		NoBlockOwnerEmpty(),
		{ID: "also-fails", Apply: func(*fsmodel.State) Verdict { return Violation("also bad") }},
		{ID: "passes", Apply: func(*fsmodel.State) Verdict { return Ok("fine") }},
	}
	counters, violations := EvaluateAll(s, predicates)
	if counters.Passed != 1 || counters.Failed != 2 {
		t.Fatalf("got %+v, want Passed=1 Failed=2", counters)
	}
	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2", len(violations))
	}
	if counters.Total() != len(predicates) {
		t.Fatalf("Total() = %d, want %d", counters.Total(), len(predicates))
	}
}

func TestBlockCountMatches(t *testing.T) {
	s := buildState(t, 4, "alice", false)
	m := manifestFor(t, s)
	v := BlockCountMatches(m).Apply(s)
	if !v.OK {
		t.Fatalf("expected matching block counts to pass, got %+v", v)
	}

	shorter := buildState(t, 2, "alice", false)
	v = BlockCountMatches(m).Apply(shorter)
	if v.OK {
		t.Fatal("expected mismatched block counts to violate")
	}
}

func TestNoReadOnlyBlockModified(t *testing.T) {
	s := buildState(t, 2, "alice", true)
	m := manifestFor(t, s)

	v := NoReadOnlyBlockModifiedAfter(m).Apply(s)
	if !v.OK {
		t.Fatalf("expected untouched read-only blocks to pass, got %+v", v)
	}

	tampered, err := fsmodel.NewBlock(hash.SHA256, []byte("tampered"))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if err := s.SetBlock(0, tampered, fsmodel.Metadata{Owner: "alice", ReadOnly: true}); err != nil {
		t.Fatalf("SetBlock: %v", err)
	}
	v = NoReadOnlyBlockModifiedAfter(m).Apply(s)
	if v.OK {
		t.Fatal("expected a modified read-only block to violate")
	}
}
