// Package audit implements Ochránce's append-only diagnostic log: a
// hash-chained sequence of entries that lets a consumer prove that one
// log is a prefix of another without re-validating every entry.
package audit

import (
	"github.com/hyperpolymath/ochrance/diagnostic"
	"github.com/hyperpolymath/ochrance/hash"
)

// Entry is one chained log record. Previous is the hash of the prior
// entry's Digest() in the same Log, or hash.ZeroDigest(Algorithm) for
// the first entry.
type Entry struct {
	Seq        uint64
	Diagnostic diagnostic.Diagnostic
	Previous   hash.Digest
}

// Digest computes the entry's own chain digest under a, folding in
// Previous so that altering any earlier entry changes every digest
// that follows it.
func (e Entry) Digest(a hash.Algorithm) hash.Digest {
	buf := append([]byte(nil), e.Previous.Bytes...)
	buf = append(buf, []byte(e.Diagnostic.String())...)
	return hash.MustSum(a, buf)
}

// Log is an append-only sequence of Entry records for one subsystem.
type Log struct {
	Algorithm hash.Algorithm
	Entries   []Entry
}

// NewLog constructs an empty log under the given hash algorithm.
func NewLog(a hash.Algorithm) *Log {
	return &Log{Algorithm: a}
}

// Append adds d as the next entry, chaining it to the previous
// entry's digest (or the zero digest if the log is empty).
func (l *Log) Append(d diagnostic.Diagnostic) Entry {
	var prev hash.Digest
	if n := len(l.Entries); n > 0 {
		prev = l.Entries[n-1].Digest(l.Algorithm)
	} else {
		prev = hash.ZeroDigest(l.Algorithm)
	}
	e := Entry{Seq: uint64(len(l.Entries)), Diagnostic: d, Previous: prev}
	l.Entries = append(l.Entries, e)
	return e
}

// Verify walks the chain and reports whether every entry's Previous
// field matches the digest actually produced by its predecessor.
func (l *Log) Verify() bool {
	var want hash.Digest
	for i, e := range l.Entries {
		if i == 0 {
			want = hash.ZeroDigest(l.Algorithm)
		}
		if e.Seq != uint64(i) || !e.Previous.Equal(want) {
			return false
		}
		want = e.Digest(l.Algorithm)
	}
	return true
}

// IsPrefixOf reports whether l's entries are an exact, in-order prefix
// of other's entries: the same Seq, Diagnostic, and Previous for every
// entry l holds. A log that has been rewritten, reordered, or spliced
// fails this check even if both logs independently pass Verify.
func (l *Log) IsPrefixOf(other *Log) bool {
	if l.Algorithm != other.Algorithm {
		return false
	}
	if len(l.Entries) > len(other.Entries) {
		return false
	}
	for i, e := range l.Entries {
		o := other.Entries[i]
		if e.Seq != o.Seq || !e.Previous.Equal(o.Previous) || e.Diagnostic.String() != o.Diagnostic.String() {
			return false
		}
	}
	return true
}
