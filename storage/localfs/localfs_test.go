package localfs

import (
	"os"
	"testing"

	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/storage"
	"github.com/hyperpolymath/ochrance/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, hash.SHA256, func(t *testing.T) storage.CAS {
		t.Helper()
		dir := t.TempDir()
		cas, err := New(dir, hash.SHA256)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return cas
	})
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	dir := t.TempDir()
	cas, err := New(dir, hash.SHA256)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	orig := []byte("original")
	id, err := cas.Put(orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path := cas.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err = cas.Get(id)
	if err != storage.ErrDigestMismatch {
		t.Fatalf("Get mismatch: got %v want %v", err, storage.ErrDigestMismatch)
	}

	_, err = cas.Put(orig)
	if err != storage.ErrImmutable {
		t.Fatalf("Put after corruption: got %v want %v", err, storage.ErrImmutable)
	}

	wantID, err := hash.Sum(hash.SHA256, orig)
	if err != nil {
		t.Fatalf("hash.Sum failed: %v", err)
	}
	if !id.Equal(wantID) {
		t.Fatalf("unexpected digest: got %s want %s", id, wantID)
	}
}
