package testkit

import (
	"bytes"
	"testing"

	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

// RunCASConformance exercises any storage.CAS implementation against
// the common contract (idempotent Put, digest-derived addressing,
// ErrNotFound on a miss), digesting test fixtures under algorithm so
// the expectations match whatever algorithm newCAS was built with.
func RunCASConformance(t *testing.T, algorithm hash.Algorithm, newCAS NewCAS) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte("hello, ochrance storage")

		id, err := cas.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := hash.Sum(algorithm, want)
		if err != nil {
			t.Fatalf("hash.Sum failed: %v", err)
		}
		if !id.Equal(wantID) {
			t.Fatalf("Put digest mismatch: got %s want %s", id, wantID)
		}

		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}

		gotID, err := hash.Sum(algorithm, got)
		if err != nil {
			t.Fatalf("hash.Sum(got) failed: %v", err)
		}
		if !gotID.Equal(id) {
			t.Fatalf("Get returned bytes not matching requested digest")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("same bytes")

		id1, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if !id1.Equal(id2) {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, err := hash.Sum(algorithm, b)
		if err != nil {
			t.Fatalf("hash.Sum failed: %v", err)
		}

		if cas.Has(id) {
			t.Fatalf("Has returned true for missing digest")
		}
		_, err = cas.Get(id)
		if !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		_, err = cas.Put(b)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !cas.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectZeroDigest", func(t *testing.T) {
		cas := newCAS(t)
		var zero hash.Digest
		if cas.Has(zero) {
			t.Fatalf("Has should be false for the zero-value digest")
		}
		if _, err := cas.Get(zero); err == nil {
			t.Fatalf("Get should fail for the zero-value digest")
		}
	})
}
