package subsystem

import (
	"fmt"

	"github.com/hyperpolymath/ochrance/audit"
	"github.com/hyperpolymath/ochrance/diagnostic"
	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/repair"
	"github.com/hyperpolymath/ochrance/verifymode"
	"github.com/hyperpolymath/ochrance/witness"
)

// VerifiedSubsystem bundles the verify/repair/attest capability set
// spec §4.7 requires. Every Verify and Repair call appends its outcome
// to Log, giving the hash-chained audit trail spec §4.5's ordering
// guarantee requires; Attest does not append to Log.
type VerifiedSubsystem struct {
	Port      BlockIOPort
	Algorithm hash.Algorithm
	Log       *audit.Log
}

// New constructs a VerifiedSubsystem with a fresh audit log under the
// given hash algorithm.
func New(port BlockIOPort, algorithm hash.Algorithm) *VerifiedSubsystem {
	return &VerifiedSubsystem{Port: port, Algorithm: algorithm, Log: audit.NewLog(algorithm)}
}

// Verify runs the pure filesystem verifier and records the outcome
// (success or failure) in the audit log.
func (v *VerifiedSubsystem) Verify(mode verifymode.Mode, state *fsmodel.State, manifest *fsmodel.Manifest) (witness.Witness, *diagnostic.Diagnostic) {
	w, diag := Verify(mode, state, manifest)
	if diag != nil {
		v.Log.Append(*diag)
		return witness.Witness{}, diag
	}
	v.Log.Append(diagnostic.New(diagnostic.Query{Code: diagnostic.VerifyOK}, diagnostic.Info, diagnostic.FullSubsystem("filesystem")))
	return w, nil
}

// Repair issues a fresh token for action, applies it against state
// using snapshotPayload, and appends the outcome to the audit log.
func (v *VerifiedSubsystem) Repair(state *fsmodel.State, snapshotPayload []byte, action repair.Action) repair.Result {
	tok := repair.Issue(action)
	result := repair.Apply(state, snapshotPayload, tok)
	if result.OK {
		v.Log.Append(diagnostic.New(
			diagnostic.Query{Code: diagnostic.RepairOK, Name: fmt.Sprintf("blocks-restored=%d", result.BlocksRestored)},
			diagnostic.Info,
			diagnostic.FullSubsystem("filesystem"),
		))
	} else {
		v.Log.Append(diagnostic.New(diagnostic.Query{Code: result.Reason}, diagnostic.Error, diagnostic.FullSubsystem("filesystem")))
	}
	return result
}

// Attest computes a fresh manifest from state's current block
// digests.
func (v *VerifiedSubsystem) Attest(state *fsmodel.State, formatVersion string) (*fsmodel.Manifest, error) {
	digests := make([]hash.Digest, state.N())
	for i := 0; i < state.N(); i++ {
		b, err := state.Block(i)
		if err != nil {
			return nil, err
		}
		digests[i] = b.Leaf
	}
	return fsmodel.NewManifest(v.Algorithm, digests, formatVersion)
}

// VerifyOrRepair attempts verification; on a remediable single-block
// hash-mismatch it performs exactly one repair cycle using
// snapshotPayload, then re-verifies at the same mode. Any other
// failure (including a second failure after repair) is returned as-is
// — fatal diagnostics never trigger a second automatic repair.
func (v *VerifiedSubsystem) VerifyOrRepair(mode verifymode.Mode, state *fsmodel.State, manifest *fsmodel.Manifest, snapshotPayload []byte) (witness.Witness, *diagnostic.Diagnostic) {
	w, diag := v.Verify(mode, state, manifest)
	if diag == nil {
		return w, nil
	}
	index, remediable := remediableBlockIndex(diag)
	if !remediable {
		return witness.Witness{}, diag
	}

	result := v.Repair(state, snapshotPayload, repair.Action{Kind: repair.RestoreBlock, Index: index})
	if !result.OK {
		d := diagnostic.New(diagnostic.Query{Code: result.Reason}, diagnostic.Critical, diagnostic.FullSubsystem("filesystem"))
		return witness.Witness{}, &d
	}
	return v.Verify(mode, state, manifest)
}

// ReadState reads blockCount fixed-size blocks from devicePath through
// v.Port, computing each block's leaf digest under v.Algorithm. This
// is the CLI's entry point onto the BlockIOPort external collaborator
// — Verify/Repair/Attest above stay pure and operate on the resulting
// *fsmodel.State, never touching Port themselves.
func (v *VerifiedSubsystem) ReadState(devicePath string, blockCount, blockSize int) (*fsmodel.State, error) {
	blocks := make([]fsmodel.Block, blockCount)
	metas := make([]fsmodel.Metadata, blockCount)
	for i := 0; i < blockCount; i++ {
		raw, err := v.Port.ReadBlock(devicePath, uint64(i), blockSize)
		if err != nil {
			return nil, err
		}
		b, err := fsmodel.NewBlock(v.Algorithm, raw)
		if err != nil {
			return nil, err
		}
		blocks[i] = b
		metas[i] = fsmodel.Metadata{}
	}
	return fsmodel.NewState(blocks, metas)
}

// WriteState writes every block of state back to devicePath through
// v.Port, in index order. Used after a successful repair to persist
// the restored state to its backing device.
func (v *VerifiedSubsystem) WriteState(devicePath string, state *fsmodel.State) error {
	for i := 0; i < state.N(); i++ {
		b, err := state.Block(i)
		if err != nil {
			return err
		}
		if err := v.Port.WriteBlock(devicePath, uint64(i), b.Raw); err != nil {
			return err
		}
	}
	return nil
}

// remediableBlockIndex reports whether diag describes the one class
// of failure spec §9 names as remediable at this layer (a single
// block's hash-mismatch), and if so, which block index.
func remediableBlockIndex(diag *diagnostic.Diagnostic) (int, bool) {
	if diag.Query.Code != diagnostic.HashMismatch || diag.Query.Field != "blocks" {
		return 0, false
	}
	var index int
	if _, err := fmt.Sscanf(diag.Zone.Path, "block:%d", &index); err != nil {
		return 0, false
	}
	return index, true
}
