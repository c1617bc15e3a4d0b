package audit

import (
	"testing"

	"github.com/hyperpolymath/ochrance/diagnostic"
	"github.com/hyperpolymath/ochrance/hash"
)

func sampleDiagnostic(code diagnostic.QueryCode) diagnostic.Diagnostic {
	return diagnostic.New(
		diagnostic.Query{Code: code},
		diagnostic.Warn,
		diagnostic.SingleBlock(3),
	)
}

func TestLogVerify(t *testing.T) {
	l := NewLog(hash.SHA256)
	l.Append(sampleDiagnostic(diagnostic.HashMismatch))
	l.Append(sampleDiagnostic(diagnostic.MissingSection))
	l.Append(sampleDiagnostic(diagnostic.ParseFailure))

	if !l.Verify() {
		t.Fatal("expected a freshly built log to verify")
	}
}

func TestLogVerifyDetectsTampering(t *testing.T) {
	l := NewLog(hash.SHA256)
	l.Append(sampleDiagnostic(diagnostic.HashMismatch))
	l.Append(sampleDiagnostic(diagnostic.MissingSection))

	l.Entries[0].Diagnostic = sampleDiagnostic(diagnostic.IOFailure)
	if l.Verify() {
		t.Fatal("expected tampering to break the chain")
	}
}

func TestIsPrefixOf(t *testing.T) {
	full := NewLog(hash.SHA256)
	full.Append(sampleDiagnostic(diagnostic.HashMismatch))
	full.Append(sampleDiagnostic(diagnostic.MissingSection))
	full.Append(sampleDiagnostic(diagnostic.ParseFailure))

	prefix := NewLog(hash.SHA256)
	prefix.Entries = append(prefix.Entries, full.Entries[0], full.Entries[1])

	if !prefix.IsPrefixOf(full) {
		t.Fatal("expected prefix to be a prefix of full")
	}
	if full.IsPrefixOf(prefix) && len(full.Entries) > len(prefix.Entries) {
		t.Fatal("longer log cannot be a prefix of a shorter one")
	}
}

func TestIsPrefixOfRejectsDivergence(t *testing.T) {
	a := NewLog(hash.SHA256)
	a.Append(sampleDiagnostic(diagnostic.HashMismatch))

	b := NewLog(hash.SHA256)
	b.Append(sampleDiagnostic(diagnostic.IOFailure))

	if a.IsPrefixOf(b) {
		t.Fatal("logs that diverge at entry 0 cannot be prefixes of one another")
	}
}
