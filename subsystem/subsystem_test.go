package subsystem

import (
	"testing"
	"time"

	"github.com/hyperpolymath/ochrance/diagnostic"
	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/snapshot"
	"github.com/hyperpolymath/ochrance/verifymode"
)

func buildGoodManifestAndState(t *testing.T, n int) (*fsmodel.State, *fsmodel.Manifest) {
	t.Helper()
	blocks := make([]fsmodel.Block, n)
	metas := make([]fsmodel.Metadata, n)
	digests := make([]hash.Digest, n)
	for i := range blocks {
		b, err := fsmodel.NewBlock(hash.SHA256, []byte{byte(i), byte(i + 1)})
		if err != nil {
			t.Fatalf("NewBlock: %v", err)
		}
		blocks[i] = b
		metas[i] = fsmodel.Metadata{Owner: "alice"}
		digests[i] = b.Leaf
	}
	state, err := fsmodel.NewState(blocks, metas)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	manifest, err := fsmodel.NewManifest(hash.SHA256, digests, "1.0")
	if err != nil {
		t.Fatalf("NewManifest: %v", err)
	}
	return state, manifest
}

func TestVerifyAttestedHappyPath(t *testing.T) {
	state, manifest := buildGoodManifestAndState(t, 4)
	w, diag := Verify(verifymode.Attested, state, manifest)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %v", diag)
	}
	if w.Tier().String() != "attested" {
		t.Fatalf("got tier %s, want attested", w.Tier())
	}
}

func TestVerifyHashMismatch(t *testing.T) {
	state, manifest := buildGoodManifestAndState(t, 4)
	corrupted, err := fsmodel.NewBlock(hash.SHA256, []byte("corrupted"))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if err := state.SetBlock(2, corrupted, fsmodel.Metadata{Owner: "alice"}); err != nil {
		t.Fatalf("SetBlock: %v", err)
	}
	_, diag := Verify(verifymode.Checked, state, manifest)
	if diag == nil {
		t.Fatal("expected a hash-mismatch diagnostic")
	}
	if diag.Zone.Path != "block:2" {
		t.Fatalf("got zone %q, want block:2", diag.Zone.Path)
	}
}

func TestVerifyOrRepairRestoresAndReverifies(t *testing.T) {
	state, manifest := buildGoodManifestAndState(t, 4)
	good2, err := state.Block(2)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	corrupted, err := fsmodel.NewBlock(hash.SHA256, []byte("corrupted block"))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if err := state.SetBlock(2, corrupted, fsmodel.Metadata{Owner: "alice"}); err != nil {
		t.Fatalf("SetBlock: %v", err)
	}

	snap := &snapshot.Snapshot{
		N:         4,
		Algorithm: hash.SHA256,
		Entries: []snapshot.Entry{
			{Index: 2, Block: good2, Metadata: fsmodel.Metadata{Owner: "alice", ModifiedAt: time.Now()}},
		},
	}
	payload, err := snapshot.Encode(snap)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	sub := New(nil, hash.SHA256)
	w, diag := sub.VerifyOrRepair(verifymode.Checked, state, manifest, payload)
	if diag != nil {
		t.Fatalf("expected successful verify-or-repair, got diagnostic: %v", diag)
	}
	if w.Tier().String() != "hash-match" {
		t.Fatalf("got tier %s, want hash-match", w.Tier())
	}
	if len(sub.Log.Entries) < 3 {
		t.Fatalf("expected at least 3 audit entries (fail, repair-ok, verify-ok), got %d", len(sub.Log.Entries))
	}
	if !sub.Log.Verify() {
		t.Fatal("expected audit log chain to verify")
	}
}

func TestVerifyOrRepairDoesNotRetryNonBlockFailures(t *testing.T) {
	state, _ := buildGoodManifestAndState(t, 2)
	_, mismatchedManifest := buildGoodManifestAndState(t, 3)
	sub := New(nil, hash.SHA256)

	_, diag := sub.VerifyOrRepair(verifymode.Lax, state, mismatchedManifest, nil)
	if diag == nil {
		t.Fatal("expected a block-count mismatch diagnostic")
	}
	if diag.Query.Code != diagnostic.MissingStructure || diag.Query.Name != "block-count" {
		t.Fatalf("got %+v, want missing-structure naming block-count", diag.Query)
	}
}

func TestMapErrno(t *testing.T) {
	cases := map[int]string{
		-2:  "bad-descriptor",
		-5:  "io-failure",
		-22: "invalid-argument",
		-13: "permission-denied",
		-30: "read-only-device",
	}
	for code, want := range cases {
		if got := MapErrno(code); got != want {
			t.Errorf("MapErrno(%d) = %q, want %q", code, got, want)
		}
	}
}
