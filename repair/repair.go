package repair

import (
	"github.com/hyperpolymath/ochrance/diagnostic"
	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/snapshot"
)

// Result is the outcome of one repair attempt: either
// repair-ok(blocks-restored) or repair-failed(reason), per spec §4.6
// step 5.
type Result struct {
	OK             bool
	BlocksRestored int
	Reason         diagnostic.QueryCode
}

// Apply consumes token and performs steps 1-3 of the repair procedure
// against state: decoding payload, checking block-count agreement,
// and applying the token's action. It does not re-verify (step 4) —
// that is the caller's responsibility, since only the caller (the
// subsystem façade) knows which verification mode the original
// failure was detected under.
//
// For RewriteMetadata and QuarantineFile, Action.Index is assumed
// already resolved from Action.Path by the caller; path-to-index
// resolution is a filesystem-specific concern this package does not
// implement (spec's "no on-disk filesystem implementation"
// non-goal). Path is retained on the Action only for audit/diagnostic
// zone reporting.
func Apply(state *fsmodel.State, payload []byte, token *Token) Result {
	action := token.Consume()

	snap, err := snapshot.Decode(payload)
	if err != nil {
		return Result{Reason: diagnostic.SnapshotCorrupt}
	}
	if snap.N != state.N() {
		return Result{Reason: diagnostic.SnapshotIncompatible}
	}

	switch action.Kind {
	case RestoreBlock:
		return applyRestoreBlock(state, snap, action.Index)
	case RewriteMetadata:
		return applyRewriteMetadata(state, snap, action.Index)
	case QuarantineFile:
		return applyQuarantine(state, action.Index)
	case RebuildIndex:
		return applyRebuildIndex(state, snap)
	default:
		return Result{Reason: diagnostic.InvariantViolation}
	}
}

func applyRestoreBlock(state *fsmodel.State, snap *snapshot.Snapshot, index int) Result {
	e, ok := snap.ByIndex(index)
	if !ok {
		return Result{Reason: diagnostic.SnapshotIncompatible}
	}
	if err := state.SetBlock(index, e.Block, e.Metadata); err != nil {
		return Result{Reason: diagnostic.InvariantViolation}
	}
	return Result{OK: true, BlocksRestored: 1}
}

func applyRewriteMetadata(state *fsmodel.State, snap *snapshot.Snapshot, index int) Result {
	e, ok := snap.ByIndex(index)
	if !ok {
		return Result{Reason: diagnostic.SnapshotIncompatible}
	}
	if err := state.SetMetadata(index, e.Metadata); err != nil {
		return Result{Reason: diagnostic.InvariantViolation}
	}
	return Result{OK: true, BlocksRestored: 0}
}

func applyQuarantine(state *fsmodel.State, index int) Result {
	b, err := state.Block(index)
	if err != nil {
		return Result{Reason: diagnostic.InvariantViolation}
	}
	m, err := state.Metadata(index)
	if err != nil {
		return Result{Reason: diagnostic.InvariantViolation}
	}
	b.Leaf = hash.ZeroDigest(b.Leaf.Algorithm)
	m.ReadOnly = true
	if err := state.SetBlock(index, b, m); err != nil {
		return Result{Reason: diagnostic.InvariantViolation}
	}
	return Result{OK: true, BlocksRestored: 0}
}

func applyRebuildIndex(state *fsmodel.State, snap *snapshot.Snapshot) Result {
	if !snap.Complete() {
		return Result{Reason: diagnostic.SnapshotIncompatible}
	}
	for i := 0; i < snap.N; i++ {
		e, _ := snap.ByIndex(i)
		if err := state.SetBlock(i, e.Block, e.Metadata); err != nil {
			return Result{Reason: diagnostic.InvariantViolation}
		}
	}
	return Result{OK: true, BlocksRestored: snap.N}
}
