// Package subsystem implements the VerifiedSubsystem façade: the
// verify/repair/attest capability bundle spec §4.7 requires, plus the
// BlockIOPort external collaborator interface and its errno mapping.
package subsystem

import (
	"time"

	"github.com/hyperpolymath/ochrance/diagnostic"
	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/merkle"
	"github.com/hyperpolymath/ochrance/verifymode"
	"github.com/hyperpolymath/ochrance/witness"
)

// Verify runs the filesystem verifier at mode against state and
// manifest, returning a tier-appropriate witness on success or a
// diagnostic on failure. It is pure: it performs no I/O and mutates
// neither state nor manifest.
func Verify(mode verifymode.Mode, state *fsmodel.State, manifest *fsmodel.Manifest) (witness.Witness, *diagnostic.Diagnostic) {
	w, diag := verifyLax(state, manifest)
	if diag != nil {
		return witness.Witness{}, diag
	}
	if mode == verifymode.Lax {
		return w, nil
	}

	w, diag = verifyHashMatch(w, state, manifest)
	if diag != nil {
		return witness.Witness{}, diag
	}
	if mode == verifymode.Checked {
		return w, nil
	}

	return verifyAttested(w, manifest)
}

func verifyLax(state *fsmodel.State, manifest *fsmodel.Manifest) (witness.Witness, *diagnostic.Diagnostic) {
	if state.N() != manifest.N() {
		d := diagnostic.New(
			diagnostic.Query{Code: diagnostic.MissingStructure, Name: "block-count"},
			diagnostic.Critical,
			diagnostic.FullSubsystem("filesystem"),
		)
		return witness.Witness{}, &d
	}
	if manifest.FormatVersion() == "" {
		d := diagnostic.New(
			diagnostic.Query{Code: diagnostic.VersionMismatch},
			diagnostic.Critical,
			diagnostic.FullSubsystem("filesystem"),
		)
		return witness.Witness{}, &d
	}
	return witness.NewStructural(), nil
}

func verifyHashMatch(w witness.Witness, state *fsmodel.State, manifest *fsmodel.Manifest) (witness.Witness, *diagnostic.Diagnostic) {
	for i := 0; i < state.N(); i++ {
		b, err := state.Block(i)
		if err != nil {
			d := diagnostic.New(diagnostic.Query{Code: diagnostic.InvariantViolation}, diagnostic.Critical, diagnostic.SingleBlock(i))
			return witness.Witness{}, &d
		}
		expected, err := manifest.BlockDigest(i)
		if err != nil {
			d := diagnostic.New(diagnostic.Query{Code: diagnostic.InvariantViolation}, diagnostic.Critical, diagnostic.SingleBlock(i))
			return witness.Witness{}, &d
		}
		if !b.Leaf.Equal(expected) {
			d := diagnostic.New(
				diagnostic.Query{Code: diagnostic.HashMismatch, Field: "blocks", Expected: expected.String(), Actual: b.Leaf.String()},
				diagnostic.Error,
				diagnostic.SingleBlock(i),
			)
			return witness.Witness{}, &d
		}
	}
	promoted, ok := witness.PromoteToHashMatch(w, true)
	if !ok {
		d := diagnostic.New(diagnostic.Query{Code: diagnostic.InvariantViolation}, diagnostic.Critical, diagnostic.FullSubsystem("filesystem"))
		return witness.Witness{}, &d
	}
	return promoted, nil
}

func verifyAttested(w witness.Witness, manifest *fsmodel.Manifest) (witness.Witness, *diagnostic.Diagnostic) {
	root, err := merkle.Root(manifest.Algorithm(), manifest.BlockDigests())
	if err != nil {
		d := diagnostic.New(diagnostic.Query{Code: diagnostic.InvariantViolation}, diagnostic.Critical, diagnostic.FullSubsystem("filesystem"))
		return witness.Witness{}, &d
	}
	if !root.Equal(manifest.Root()) {
		d := diagnostic.New(
			diagnostic.Query{Code: diagnostic.HashMismatch, Field: "merkle-root", Expected: manifest.Root().String(), Actual: root.String()},
			diagnostic.Error,
			diagnostic.FullSubsystem("filesystem"),
		)
		return witness.Witness{}, &d
	}
	promoted, ok := witness.PromoteToAttested(w, time.Now().UTC(), true)
	if !ok {
		d := diagnostic.New(diagnostic.Query{Code: diagnostic.InvariantViolation}, diagnostic.Critical, diagnostic.FullSubsystem("filesystem"))
		return witness.Witness{}, &d
	}
	return promoted, nil
}
