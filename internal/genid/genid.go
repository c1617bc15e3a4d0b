// Package genid generates the opaque identifiers Ochránce attaches to
// manifests and audit artifacts (the @manifest section's "id" field),
// kept behind its own small package rather than folded into a2ml or
// fsmodel.
package genid

import "github.com/google/uuid"

// New returns a fresh random identifier string.
func New() string {
	return uuid.NewString()
}

// NewDeterministic returns an identifier derived deterministically
// from seed, for reproducible fixtures (tests, conformance vectors)
// where a random New() would make golden output non-reproducible.
func NewDeterministic(seed []byte) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, seed).String()
}
