package snapshot

import (
	"testing"
	"time"

	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b0, err := fsmodel.NewBlock(hash.SHA256, []byte("block zero"))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	b1, err := fsmodel.NewBlock(hash.SHA256, []byte("block one"))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}

	s := &Snapshot{
		N:         2,
		Algorithm: hash.SHA256,
		Entries: []Entry{
			{Index: 0, Block: b0, Metadata: fsmodel.Metadata{ModifiedAt: time.Unix(1000, 0).UTC(), Owner: "alice", ReadOnly: true}},
			{Index: 1, Block: b1, Metadata: fsmodel.Metadata{ModifiedAt: time.Unix(2000, 0).UTC(), Owner: "bob", ReadOnly: false}},
		},
	}

	payload, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.N != s.N || got.Algorithm != s.Algorithm || len(got.Entries) != len(s.Entries) {
		t.Fatalf("decoded snapshot shape mismatch: %+v", got)
	}
	for i, e := range got.Entries {
		want := s.Entries[i]
		if e.Index != want.Index || string(e.Block.Raw) != string(want.Block.Raw) {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, e, want)
		}
		if !e.Block.Leaf.Equal(want.Block.Leaf) {
			t.Fatalf("entry %d leaf digest mismatch", i)
		}
		if e.Metadata.Owner != want.Metadata.Owner || e.Metadata.ReadOnly != want.Metadata.ReadOnly {
			t.Fatalf("entry %d metadata mismatch: got %+v want %+v", i, e.Metadata, want.Metadata)
		}
	}

	if !got.Complete() {
		t.Fatal("expected a full two-entry snapshot for N=2 to be Complete")
	}
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := Decode([]byte("not a gzip stream"))
	if err == nil {
		t.Fatal("expected an error decoding garbage input")
	}
}

func TestByIndexAndIncomplete(t *testing.T) {
	b0, err := fsmodel.NewBlock(hash.SHA256, []byte("only block"))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	s := &Snapshot{N: 3, Algorithm: hash.SHA256, Entries: []Entry{{Index: 1, Block: b0, Metadata: fsmodel.Metadata{}}}}

	if s.Complete() {
		t.Fatal("a sparse snapshot with N=3 and one entry must not be Complete")
	}
	if _, ok := s.ByIndex(0); ok {
		t.Fatal("index 0 should not be present")
	}
	e, ok := s.ByIndex(1)
	if !ok || string(e.Block.Raw) != "only block" {
		t.Fatalf("expected to find entry for index 1, got %+v ok=%v", e, ok)
	}
}
