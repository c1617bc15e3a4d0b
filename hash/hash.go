// Package hash implements Ochránce's content-hash oracle: a pure,
// opaque mapping from byte sequences to fixed-size digests under one
// of four supported algorithms.
package hash

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"lukechampine.com/blake3"
)

// Algorithm identifies a supported digest function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
	BLAKE3 Algorithm = "blake3"
)

// Len returns the fixed digest length, in bytes, for a.
func (a Algorithm) Len() int {
	switch a {
	case SHA256, BLAKE3:
		return 32
	case SHA384:
		return 48
	case SHA512:
		return 64
	default:
		return 0
	}
}

// Valid reports whether a is one of the four supported algorithms.
func (a Algorithm) Valid() bool {
	return a.Len() > 0
}

// ParseAlgorithm parses an algorithm tag, accepting either case.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("hash: unknown algorithm %q", s)
	}
	return a, nil
}

// Digest is a (algorithm-tag, byte-sequence) pair.
type Digest struct {
	Algorithm Algorithm
	Bytes     []byte
}

// Sum computes the digest of data under algorithm a.
func Sum(a Algorithm, data []byte) (Digest, error) {
	if !a.Valid() {
		return Digest{}, fmt.Errorf("hash: unknown algorithm %q", a)
	}
	var out []byte
	switch a {
	case SHA256:
		s := sha256.Sum256(data)
		out = s[:]
	case SHA384:
		s := sha512.Sum384(data)
		out = s[:]
	case SHA512:
		s := sha512.Sum512(data)
		out = s[:]
	case BLAKE3:
		s := blake3.Sum256(data)
		out = s[:]
	}
	return Digest{Algorithm: a, Bytes: out}, nil
}

// MustSum is Sum but panics on an invalid algorithm; for call sites
// that have already validated the algorithm.
func MustSum(a Algorithm, data []byte) Digest {
	d, err := Sum(a, data)
	if err != nil {
		panic(err)
	}
	return d
}

// Valid reports whether d's byte length matches its algorithm's fixed
// digest length.
func (d Digest) Valid() bool {
	return d.Algorithm.Valid() && len(d.Bytes) == d.Algorithm.Len()
}

// String renders the A2ML hash-literal wire form: "algorithm:hexdigest".
func (d Digest) String() string {
	return fmt.Sprintf("%s:%s", d.Algorithm, hex.EncodeToString(d.Bytes))
}

// Hex returns the lowercase hex encoding of the digest bytes alone.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.Bytes)
}

// ParseDigest parses the "algorithm:hexdigest" wire form, accepting
// either hex case.
func ParseDigest(s string) (Digest, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Digest{}, fmt.Errorf("hash: malformed digest %q", s)
	}
	a, err := ParseAlgorithm(parts[0])
	if err != nil {
		return Digest{}, err
	}
	b, err := hex.DecodeString(strings.ToLower(parts[1]))
	if err != nil {
		return Digest{}, fmt.Errorf("hash: malformed hex in digest %q: %w", s, err)
	}
	if len(b) != a.Len() {
		return Digest{}, fmt.Errorf("hash: digest %q has length %d, want %d for %s", s, len(b), a.Len(), a)
	}
	return Digest{Algorithm: a, Bytes: b}, nil
}

// Equal reports whether d and other carry the same algorithm and the
// same bytes, compared in constant time. Digests compared here may
// originate from adversary-controlled input (an attacker-supplied
// manifest or block), so this never short-circuits on a byte
// mismatch before the full comparison completes.
func (d Digest) Equal(other Digest) bool {
	if d.Algorithm != other.Algorithm {
		return false
	}
	if len(d.Bytes) != len(other.Bytes) {
		return false
	}
	return subtle.ConstantTimeCompare(d.Bytes, other.Bytes) == 1
}

// ZeroDigest returns the well-known empty-root sentinel for a: a
// digest of the same length as a's normal output, but all zero bytes.
// Used by the Merkle engine as the root of an empty leaf list.
func ZeroDigest(a Algorithm) Digest {
	return Digest{Algorithm: a, Bytes: make([]byte, a.Len())}
}
