package main

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hyperpolymath/ochrance/a2ml"
	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/internal/genid"
)

// manifestMeta carries the @manifest/@refs descriptive fields that
// surround a fsmodel.Manifest's bare integrity vector in an A2ML
// document.
type manifestMeta struct {
	ID             string
	Producer       string
	ProducedAt     time.Time
	SubsystemName  string
	Device         string
	SnapshotDigest *hash.Digest
}

// attestationSig is the optional signed proof-witness blob attached
// to an attested manifest's @attestation section. Signature is the
// raw signature bytes; it is carried through A2ML as a VBlob.
type attestationSig struct {
	Signer    string
	Algorithm string
	Signature []byte
}

// buildDocument assembles the A2ML document for manifest, carrying
// its full per-block digest vector as a nested sequential-key list
// under @manifest so a later verify can reconstruct the manifest
// exactly (spec's @refs section only ever holds the root-level
// summary fields, not the vector itself).
func buildDocument(meta manifestMeta, manifest *fsmodel.Manifest, sig *attestationSig) *a2ml.Document {
	digestEntries := make([]a2ml.Entry, manifest.N())
	for i, d := range manifest.BlockDigests() {
		digestEntries[i] = a2ml.Entry{Key: strconv.Itoa(i), Value: a2ml.HashValue(d)}
	}

	manifestEntries := []a2ml.Entry{
		{Key: "id", Value: a2ml.StringValue(meta.ID)},
		{Key: "version", Value: a2ml.StringValue(manifest.FormatVersion())},
		{Key: "producer", Value: a2ml.StringValue(meta.Producer)},
		{Key: "produced_at", Value: a2ml.TimestampValue(meta.ProducedAt)},
		{Key: "subsystem", Value: a2ml.StringValue(meta.SubsystemName)},
		{Key: "root_hash", Value: a2ml.HashValue(manifest.Root())},
		{Key: "tree_depth", Value: a2ml.IntegerValue(int64(manifest.TreeDepth()))},
		{Key: "block_digests", Nested: digestEntries},
	}
	if meta.Device != "" {
		manifestEntries = append(manifestEntries, a2ml.Entry{Key: "device", Value: a2ml.StringValue(meta.Device)})
	}

	refsEntries := []a2ml.Entry{
		{Key: "merkle_root", Value: a2ml.HashValue(manifest.Root())},
		{Key: "algorithm", Value: a2ml.IdentifierValue(string(manifest.Algorithm()))},
		{Key: "block_count", Value: a2ml.IntegerValue(int64(manifest.N()))},
		{Key: "tree_depth", Value: a2ml.IntegerValue(int64(manifest.TreeDepth()))},
		{Key: "leaf_size", Value: a2ml.IntegerValue(int64(fsmodel.BlockSize))},
	}
	if meta.SnapshotDigest != nil {
		refsEntries = append(refsEntries, a2ml.Entry{Key: "snapshot_digest", Value: a2ml.HashValue(*meta.SnapshotDigest)})
	}

	sections := map[string]a2ml.Section{
		"manifest": {Tag: "manifest", Entries: manifestEntries},
		"refs":     {Tag: "refs", Entries: refsEntries},
	}

	if sig != nil {
		sections["attestation"] = a2ml.Section{Tag: "attestation", Entries: []a2ml.Entry{
			{Key: "type", Value: a2ml.IdentifierValue("ed25519-sha256")},
			{Key: "signer", Value: a2ml.StringValue(sig.Signer)},
			{Key: "algorithm", Value: a2ml.IdentifierValue(sig.Algorithm)},
			{Key: "signature", Value: a2ml.BlobValue(sig.Signature)},
			{Key: "verified_at", Value: a2ml.TimestampValue(meta.ProducedAt)},
		}}
	}

	return &a2ml.Document{Version: a2ml.CurrentVersion, Sections: sections}
}

// manifestFromDocument reconstructs a fsmodel.Manifest from a parsed,
// validated A2ML document. The root_hash field is carried over as
// written, not recomputed here, so a root_hash that disagrees with the
// block-digest vector reaches the verifier intact and surfaces there
// as a merkle-root hash-mismatch in attested mode.
func manifestFromDocument(doc *a2ml.Document) (*fsmodel.Manifest, error) {
	sec, ok := doc.Sections["manifest"]
	if !ok {
		return nil, fmt.Errorf("ochrance: document has no @manifest section")
	}
	digestsEntry, ok := sec.Get("block_digests")
	if !ok {
		return nil, fmt.Errorf("ochrance: @manifest missing block_digests")
	}

	// A parsed-from-text document collapses the sequential-key nested
	// block into a VList (a2ml's asList convention); a document built
	// directly in-process (never round-tripped through Render) keeps
	// it as a nested block of leaves. Accept either shape.
	var values []a2ml.Value
	switch {
	case digestsEntry.Value.Kind == a2ml.VList:
		values = digestsEntry.Value.List
	case digestsEntry.IsNested():
		values = make([]a2ml.Value, len(digestsEntry.Nested))
		for i, e := range digestsEntry.Nested {
			values[i] = e.Value
		}
	default:
		return nil, fmt.Errorf("ochrance: block_digests is neither a list nor a nested block")
	}

	digests := make([]hash.Digest, len(values))
	var algorithm hash.Algorithm
	for i, v := range values {
		if v.Kind != a2ml.VHash {
			return nil, fmt.Errorf("ochrance: block_digests[%d] is not a hash", i)
		}
		digests[i] = v.Hash
		if i == 0 {
			algorithm = v.Hash.Algorithm
		}
	}

	formatVersion := sec.String("version")

	rootEntry, ok := sec.Get("root_hash")
	if !ok || rootEntry.Value.Kind != a2ml.VHash {
		return nil, fmt.Errorf("ochrance: @manifest missing root_hash")
	}

	return fsmodel.NewManifestFromParts(algorithm, rootEntry.Value.Hash, digests, formatVersion), nil
}

// validateAndWriteDocument runs doc through a2ml's accumulating
// validator before writing it, so attest never produces a manifest
// its own verify command would reject.
func validateAndWriteDocument(doc *a2ml.Document, path string) error {
	if err := a2ml.Validate(doc); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(a2ml.Render(doc)), 0o644)
}

// parseManifestDocument reads, parses, and validates the A2ML document
// at path, without decoding it into a Manifest. Used by callers (repair)
// that also need fields outside the bare integrity vector, such as
// @refs.snapshot_digest.
func parseManifestDocument(path string) (*a2ml.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := a2ml.ParseDocument(string(raw))
	if err != nil {
		return nil, err
	}
	if err := a2ml.Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// readManifestFile reads, parses, validates, and decodes the A2ML
// manifest at path.
func readManifestFile(path string) (*fsmodel.Manifest, error) {
	doc, err := parseManifestDocument(path)
	if err != nil {
		return nil, err
	}
	return manifestFromDocument(doc)
}

// readSnapshotDigest extracts @refs.snapshot_digest from doc, the
// content address under which cmdAttest stored this manifest's
// prior-good-state snapshot in the CAS, if it recorded one.
func readSnapshotDigest(doc *a2ml.Document) (hash.Digest, bool) {
	sec, ok := doc.Sections["refs"]
	if !ok {
		return hash.Digest{}, false
	}
	e, ok := sec.Get("snapshot_digest")
	if !ok || e.Value.Kind != a2ml.VHash {
		return hash.Digest{}, false
	}
	return e.Value.Hash, true
}

// ed25519PrivateKeyFromSeed expands a raw 32-byte seed into a full
// ed25519 private key, the same derivation keys.GenerateIssuerKeyFromSeed
// uses.
func ed25519PrivateKeyFromSeed(seed []byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(seed)
}

func newManifestMeta(producer, subsystemName, device string, id string) manifestMeta {
	if id == "" {
		id = genid.New()
	}
	return manifestMeta{
		ID:            id,
		Producer:      producer,
		ProducedAt:    time.Now().UTC(),
		SubsystemName: subsystemName,
		Device:        device,
	}
}
