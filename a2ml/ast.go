package a2ml

import (
	"time"

	"github.com/hyperpolymath/ochrance/hash"
)

// MaxNestingDepth caps nested-block depth (spec §4.1).
const MaxNestingDepth = 8

// MaxFieldsPerSection caps the field count within one section.
const MaxFieldsPerSection = 1024

// MaxListLength caps the number of elements in a list value.
const MaxListLength = 65536

// ValueKind enumerates the A2ML value sum type.
type ValueKind int

const (
	VString ValueKind = iota
	VHash
	VInteger
	VTimestamp
	VList
	VBlob
	VBoolean
	VIdentifier
)

// Value is a tagged union over the eight A2ML value kinds.
type Value struct {
	Kind  ValueKind
	Str   string      // VString, VIdentifier
	Hash  hash.Digest  // VHash
	Int   int64       // VInteger
	Time  time.Time   // VTimestamp
	List  []Value     // VList
	Blob  []byte      // VBlob
	Bool  bool        // VBoolean
}

func StringValue(s string) Value     { return Value{Kind: VString, Str: s} }
func IdentifierValue(s string) Value { return Value{Kind: VIdentifier, Str: s} }
func HashValue(d hash.Digest) Value  { return Value{Kind: VHash, Hash: d} }
func IntegerValue(i int64) Value     { return Value{Kind: VInteger, Int: i} }
func TimestampValue(t time.Time) Value {
	return Value{Kind: VTimestamp, Time: t.UTC()}
}
func ListValue(vs []Value) Value  { return Value{Kind: VList, List: vs} }
func BlobValue(b []byte) Value    { return Value{Kind: VBlob, Blob: b} }
func BooleanValue(b bool) Value   { return Value{Kind: VBoolean, Bool: b} }

// Entry is one field within a section: either a leaf value or a
// nested block of further entries (never both).
type Entry struct {
	Key    string
	Value  Value
	Nested []Entry // non-nil for nested blocks; Value is then zero

	Line, Column int
}

func (e Entry) IsNested() bool { return e.Nested != nil }

// Section is one `@tag { ... }` block. Entries preserves field order
// as it appeared in the source (affects serialization, not semantics).
type Section struct {
	Tag     string
	Entries []Entry
}

// Get returns the first top-level entry with the given key.
func (s Section) Get(key string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// String returns the string/identifier content of a named entry, or
// "" if absent or not a string-like value.
func (s Section) String(key string) string {
	e, ok := s.Get(key)
	if !ok {
		return ""
	}
	switch e.Value.Kind {
	case VString, VIdentifier:
		return e.Value.Str
	default:
		return ""
	}
}

// SectionOrder is the canonical, semantically-insignificant section
// ordering used when normalizing a Document for round-trip comparison
// and canonical serialization.
var SectionOrder = []string{"manifest", "refs", "attestation", "policy"}

// Document is the top-level A2ML AST: a version string plus a mapping
// of section tag to Section.
type Document struct {
	Version  string
	Sections map[string]Section
}

// HasSection reports whether tag is present.
func (d Document) HasSection(tag string) bool {
	_, ok := d.Sections[tag]
	return ok
}
