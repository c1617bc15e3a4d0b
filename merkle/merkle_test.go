package merkle

import (
	"testing"

	"github.com/hyperpolymath/ochrance/hash"
)

func leavesOf(t *testing.T, data ...string) []hash.Digest {
	t.Helper()
	out := make([]hash.Digest, len(data))
	for i, s := range data {
		d, err := hash.Sum(hash.SHA256, []byte(s))
		if err != nil {
			t.Fatalf("sum: %v", err)
		}
		out[i] = d
	}
	return out
}

func TestBuildEmptyYieldsZeroRoot(t *testing.T) {
	tr, err := Build(hash.SHA256, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !tr.Root().Equal(hash.ZeroDigest(hash.SHA256)) {
		t.Fatal("empty tree root must be the well-known zero digest")
	}
}

func TestBuildDeterministic(t *testing.T) {
	leaves := leavesOf(t, "a", "b", "c", "d", "e")
	t1, err := Build(hash.SHA256, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t2, err := Build(hash.SHA256, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !t1.Root().Equal(t2.Root()) {
		t.Fatal("identical leaf sequences must yield identical roots")
	}
}

func TestInclusionSoundness(t *testing.T) {
	leaves := leavesOf(t, "a", "b", "c", "d", "e", "f", "g")
	tr, err := Build(hash.SHA256, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := range leaves {
		proof, err := tr.Prove(i)
		if err != nil {
			t.Fatalf("prove %d: %v", i, err)
		}
		if !VerifyInclusion(hash.SHA256, proof, tr.Root()) {
			t.Fatalf("leaf %d: proof did not verify against the tree root", i)
		}
	}
}

func TestInclusionRejectsTamperedLeaf(t *testing.T) {
	leaves := leavesOf(t, "a", "b", "c")
	tr, _ := Build(hash.SHA256, leaves)
	proof, _ := tr.Prove(1)
	other, _ := hash.Sum(hash.SHA256, []byte("tampered"))
	proof.Leaf = other
	if VerifyInclusion(hash.SHA256, proof, tr.Root()) {
		t.Fatal("proof must not verify with a substituted leaf digest")
	}
}

func TestInclusionRejectsTamperedPath(t *testing.T) {
	leaves := leavesOf(t, "a", "b", "c", "d")
	tr, _ := Build(hash.SHA256, leaves)
	proof, _ := tr.Prove(0)
	if len(proof.Path) == 0 {
		t.Fatal("expected a non-empty path")
	}
	tampered := append([]byte(nil), proof.Path[0].Sibling.Bytes...)
	tampered[0] ^= 0xff
	proof.Path[0].Sibling.Bytes = tampered
	if VerifyInclusion(hash.SHA256, proof, tr.Root()) {
		t.Fatal("proof must not verify after flipping a sibling byte")
	}
}

func TestOddCountDuplicatedLast(t *testing.T) {
	leaves := leavesOf(t, "a", "b", "c")
	tr, err := Build(hash.SHA256, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proof, err := tr.Prove(2)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if !VerifyInclusion(hash.SHA256, proof, tr.Root()) {
		t.Fatal("trailing odd leaf must still produce a valid inclusion proof")
	}
}

func TestDepthAndLeafCount(t *testing.T) {
	leaves := leavesOf(t, "a", "b", "c", "d")
	tr, _ := Build(hash.SHA256, leaves)
	if tr.LeafCount() != 4 {
		t.Fatalf("leaf count = %d, want 4", tr.LeafCount())
	}
	if tr.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", tr.Depth())
	}
}
