// Package repair implements the Ephapax single-use repair permit and
// the five-step repair procedure that consumes it.
package repair

import (
	"runtime"
	"sync/atomic"
)

// Action is the enumerated remediation a Token authorizes.
type Action struct {
	Kind  ActionKind
	Index int    // restore-block(index)
	Path  string // rewrite-metadata(path), quarantine-file(path)
}

type ActionKind int

const (
	RestoreBlock ActionKind = iota
	RewriteMetadata
	QuarantineFile
	RebuildIndex
)

func (k ActionKind) String() string {
	switch k {
	case RestoreBlock:
		return "restore-block"
	case RewriteMetadata:
		return "rewrite-metadata"
	case QuarantineFile:
		return "quarantine-file"
	case RebuildIndex:
		return "rebuild-index"
	default:
		return "unknown-action"
	}
}

// Token is a move-only, single-use repair permit. A Token may only be
// constructed by Issue (called by the verifier on detecting a
// remediable failure) and may only be spent once by Consume; a second
// Consume call panics, and a Token dropped without ever being consumed
// is reported by the finalizer-based leak detector installed in
// Issue (only in builds with the tokenleakcheck tag; see
// token_leakcheck_debug.go and token_leakcheck_prod.go).
type Token struct {
	action   Action
	consumed *atomic.Bool
}

// Issue mints a new Token for the given action. Exactly one Issue
// call corresponds to exactly one remediable verification failure.
func Issue(a Action) *Token {
	t := &Token{action: a, consumed: new(atomic.Bool)}
	installLeakCheck(t)
	return t
}

// Action returns the action this token authorizes, without consuming
// it.
func (t *Token) Action() Action { return t.action }

// Consume spends the token exactly once, returning its action. A
// second call panics: double-consumption is a programmer error the
// token discipline requires to fail loudly rather than silently repair
// twice.
func (t *Token) Consume() Action {
	if !t.consumed.CompareAndSwap(false, true) {
		panic("repair: token consumed more than once")
	}
	runtime.SetFinalizer(t, nil)
	return t.action
}

// Consumed reports whether the token has already been spent.
func (t *Token) Consumed() bool {
	return t.consumed.Load()
}
