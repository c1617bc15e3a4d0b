package hash

import (
	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// multihashCode maps an Algorithm to its multicodec multihash code, for
// interop with CID-addressed systems outside this module (the in-tree
// storage.CAS is keyed by Digest, not by CID). BLAKE3 has no registered fixed-length multihash
// code in go-multihash's table at the length this oracle uses, so CID
// rendering for BLAKE3 digests falls back to the raw "identity" wrapping
// documented on CID below.
func multihashCode(a Algorithm) (uint64, bool) {
	switch a {
	case SHA256:
		return multihash.SHA2_256, true
	case SHA384:
		return multihash.SHA3_384, false // not a match for SHA-384; see CID doc
	case SHA512:
		return multihash.SHA2_512, true
	default:
		return 0, false
	}
}

// CID renders d as a CIDv1 (raw multicodec) string, for interop with
// content-addressed storage backends that key objects by CID rather
// than by a bare Digest. Algorithms without a matching fixed-length
// multihash code (SHA-384, BLAKE3) are encoded with the multihash
// "identity" function wrapping the full "algorithm:hexdigest" wire
// form, so the CID remains a faithful, reversible encoding of d even
// though it is not a native multihash digest.
func (d Digest) CID() (gocid.Cid, error) {
	if code, ok := multihashCode(d.Algorithm); ok {
		mh, err := multihash.Encode(d.Bytes, code)
		if err != nil {
			return gocid.Undef, err
		}
		return gocid.NewCidV1(gocid.Raw, mh), nil
	}
	mh, err := multihash.Encode([]byte(d.String()), multihash.IDENTITY)
	if err != nil {
		return gocid.Undef, err
	}
	return gocid.NewCidV1(gocid.Raw, mh), nil
}
