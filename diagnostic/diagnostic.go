// Package diagnostic implements Ochránce's q/p/z diagnostic triple:
// the structural cause (query), severity (priority), and blast radius
// (zone) every failing operation surfaces.
package diagnostic

import "fmt"

// Priority is a total-ordered severity.
type Priority int

const (
	Info Priority = iota
	Warn
	Error
	Critical
)

func (p Priority) String() string {
	switch p {
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// QueryCode is the structural cause of a diagnostic, a stable,
// grep-able identifier.
type QueryCode string

const (
	MissingStructure    QueryCode = "missing-structure"
	HashMismatch        QueryCode = "hash-mismatch"
	MissingSection      QueryCode = "missing-section"
	VersionMismatch     QueryCode = "version-mismatch"
	InvariantViolation  QueryCode = "invariant-violation"
	ParseFailure        QueryCode = "parse-failure"
	IOFailure           QueryCode = "io-failure"
	SnapshotCorrupt     QueryCode = "snapshot-corrupt"
	SnapshotIncompatible QueryCode = "snapshot-incompatible"
	MissingRequired     QueryCode = "missing-required"
	DuplicateSection    QueryCode = "duplicate-section"
	NestingExceeded     QueryCode = "nesting-exceeded"
	UnknownAlgorithm    QueryCode = "unknown-algorithm"
	VerifyOK            QueryCode = "verify-ok"
	RepairOK            QueryCode = "repair-ok"
)

// Query is the "what" axis: a structural cause plus any fields
// specific to that cause.
type Query struct {
	Code QueryCode

	// Used by HashMismatch.
	Field    string
	Expected string
	Actual   string

	// Used by MissingRequired, MissingSection, DuplicateSection,
	// UnknownAlgorithm.
	Name string

	// Used by ParseFailure.
	Line   int
	Column int
}

func (q Query) String() string {
	switch q.Code {
	case HashMismatch:
		return fmt.Sprintf("hash-mismatch on %s: expected %s, got %s", q.Field, q.Expected, q.Actual)
	case ParseFailure:
		return fmt.Sprintf("parse-failure at %d:%d", q.Line, q.Column)
	case MissingRequired, MissingSection, DuplicateSection, UnknownAlgorithm:
		if q.Name != "" {
			return fmt.Sprintf("%s(%q)", q.Code, q.Name)
		}
		return string(q.Code)
	default:
		return string(q.Code)
	}
}

// ZoneKind identifies the shape of blast radius a Zone describes.
type ZoneKind int

const (
	ZoneSingleBlock ZoneKind = iota
	ZoneSubtree
	ZoneFullSubsystem
	ZoneCrossCutting
)

// Zone is the "where" axis: the affected scope of a diagnostic.
type Zone struct {
	Kind ZoneKind

	// ZoneSingleBlock.
	Path string

	// ZoneSubtree.
	Root  string
	Depth int

	// ZoneFullSubsystem.
	Name string

	// ZoneCrossCutting.
	List []string
}

func SingleBlock(index int) Zone {
	return Zone{Kind: ZoneSingleBlock, Path: fmt.Sprintf("block:%d", index)}
}

func Subtree(root string, depth int) Zone {
	return Zone{Kind: ZoneSubtree, Root: root, Depth: depth}
}

func FullSubsystem(name string) Zone {
	return Zone{Kind: ZoneFullSubsystem, Name: name}
}

func CrossCutting(items ...string) Zone {
	return Zone{Kind: ZoneCrossCutting, List: items}
}

func (z Zone) String() string {
	switch z.Kind {
	case ZoneSingleBlock:
		return z.Path
	case ZoneSubtree:
		return fmt.Sprintf("subtree:%s@%d", z.Root, z.Depth)
	case ZoneFullSubsystem:
		return fmt.Sprintf("subsystem:%s", z.Name)
	case ZoneCrossCutting:
		return fmt.Sprintf("cross-cutting:%v", z.List)
	default:
		return "unknown-zone"
	}
}

// Diagnostic is the q/p/z triple every failing operation produces.
type Diagnostic struct {
	Query    Query
	Priority Priority
	Zone     Zone
}

// New constructs a Diagnostic.
func New(q Query, p Priority, z Zone) Diagnostic {
	return Diagnostic{Query: q, Priority: p, Zone: z}
}

// Error implements the error interface so Diagnostic can flow through
// ordinary Go error handling while still carrying structured fields.
func (d Diagnostic) Error() string {
	return d.String()
}

// String renders the single-line user-visible form from spec §7:
// "[PRIORITY] query | zone".
func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s | %s", d.Priority, d.Query, d.Zone)
}
