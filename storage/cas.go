package storage

import "github.com/hyperpolymath/ochrance/hash"

// CAS is a minimal content-addressable storage interface, keyed by
// hash.Digest rather than a multiformats CID: Ochránce's snapshot
// payloads are addressed by the same digest algorithm the rest of the
// subsystem already uses for blocks and manifests.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - Digests MUST be derived from the bytes written under the store's
//   configured algorithm (callers are responsible for supplying
//   canonical bytes).
// - Get MUST return ErrNotFound when the digest is absent.
type CAS interface {
	Put(bytes []byte) (hash.Digest, error)
	Get(id hash.Digest) ([]byte, error)
	Has(id hash.Digest) bool
}
