package repair

import (
	"testing"
	"time"

	"github.com/hyperpolymath/ochrance/diagnostic"
	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/snapshot"
)

func buildCorruptState(t *testing.T) (*fsmodel.State, []byte, fsmodel.Block) {
	t.Helper()
	good2, err := fsmodel.NewBlock(hash.SHA256, []byte("good block 2"))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	bad2, err := fsmodel.NewBlock(hash.SHA256, []byte("corrupted block 2"))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	b0, _ := fsmodel.NewBlock(hash.SHA256, []byte("block 0"))
	b1, _ := fsmodel.NewBlock(hash.SHA256, []byte("block 1"))

	blocks := []fsmodel.Block{b0, b1, bad2}
	metas := []fsmodel.Metadata{{Owner: "a"}, {Owner: "a"}, {Owner: "a"}}
	state, err := fsmodel.NewState(blocks, metas)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	snap := &snapshot.Snapshot{
		N:         3,
		Algorithm: hash.SHA256,
		Entries: []snapshot.Entry{
			{Index: 2, Block: good2, Metadata: fsmodel.Metadata{Owner: "a", ModifiedAt: time.Unix(1, 0)}},
		},
	}
	payload, err := snapshot.Encode(snap)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return state, payload, good2
}

func TestApplyRestoreBlock(t *testing.T) {
	state, payload, good2 := buildCorruptState(t)
	tok := Issue(Action{Kind: RestoreBlock, Index: 2})

	result := Apply(state, payload, tok)
	if !result.OK || result.BlocksRestored != 1 {
		t.Fatalf("expected repair-ok(1), got %+v", result)
	}
	b, err := state.Block(2)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !b.Leaf.Equal(good2.Leaf) {
		t.Fatal("block 2 was not restored to the snapshot's good content")
	}
	if !tok.Consumed() {
		t.Fatal("token must be marked consumed after Apply")
	}
}

func TestApplyDoubleConsumePanics(t *testing.T) {
	tok := Issue(Action{Kind: RestoreBlock, Index: 0})
	tok.Consume()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic on double-consumption")
		}
	}()
	tok.Consume()
}

func TestApplySnapshotIncompatible(t *testing.T) {
	state, _, _ := buildCorruptState(t)
	wrongSnap := &snapshot.Snapshot{N: 99, Algorithm: hash.SHA256}
	payload, err := snapshot.Encode(wrongSnap)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tok := Issue(Action{Kind: RestoreBlock, Index: 2})
	result := Apply(state, payload, tok)
	if result.OK || result.Reason != diagnostic.SnapshotIncompatible {
		t.Fatalf("expected snapshot-incompatible, got %+v", result)
	}
}

func TestApplySnapshotCorrupt(t *testing.T) {
	state, _, _ := buildCorruptState(t)
	tok := Issue(Action{Kind: RestoreBlock, Index: 2})
	result := Apply(state, []byte("not a snapshot"), tok)
	if result.OK || result.Reason != diagnostic.SnapshotCorrupt {
		t.Fatalf("expected snapshot-corrupt, got %+v", result)
	}
}

func TestApplyQuarantine(t *testing.T) {
	state, payload, _ := buildCorruptState(t)
	tok := Issue(Action{Kind: QuarantineFile, Index: 2, Path: "/corrupt/file"})
	result := Apply(state, payload, tok)
	if !result.OK {
		t.Fatalf("expected repair-ok, got %+v", result)
	}
	m, err := state.Metadata(2)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if !m.ReadOnly {
		t.Fatal("expected quarantined block to be marked read-only")
	}
	b, err := state.Block(2)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !b.Leaf.Equal(hash.ZeroDigest(hash.SHA256)) {
		t.Fatal("expected quarantined block's leaf digest to be zeroed")
	}
}

func TestStateMachineHappyPath(t *testing.T) {
	m := NewMachine()
	m.Verified(Remediable)
	m.TokenIssued()
	m.Applied(true)
	m.Verified(AttestedOK)
	if m.Phase() != AttestedOK || !m.Phase().Terminal() {
		t.Fatalf("expected terminal AttestedOK, got %s", m.Phase())
	}
}

func TestStateMachineRepairFailureGoesFatal(t *testing.T) {
	m := NewMachine()
	m.Verified(Remediable)
	m.TokenIssued()
	m.Applied(false)
	if m.Phase() != Fatal || !m.Phase().Terminal() {
		t.Fatalf("expected terminal Fatal, got %s", m.Phase())
	}
}

func TestStateMachineIllegalTransitionPanics(t *testing.T) {
	m := NewMachine()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic issuing a token outside Remediable")
		}
	}()
	m.TokenIssued()
}

func TestStateMachineReverifyCannotYieldRemediable(t *testing.T) {
	m := NewMachine()
	m.Verified(Remediable)
	m.TokenIssued()
	m.Applied(true)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic re-verifying into remediable from Repaired")
		}
	}()
	m.Verified(Remediable)
}
