package a2ml

import (
	"fmt"
	"time"

	"github.com/hyperpolymath/ochrance/hash"
)

// Rule is one accumulating validation rule.
type Rule struct {
	ID    string
	Apply func(*Document) []error
}

// ValidateRulesAll runs every rule against doc, collecting every
// violation rather than stopping at the first, since manifest authors
// benefit from seeing all defects in one pass rather than fixing them
// one at a time.
func ValidateRulesAll(doc *Document, rules []Rule) []error {
	var errs []error
	for _, r := range rules {
		errs = append(errs, r.Apply(doc)...)
	}
	return errs
}

// DefaultRules is the standard rule set Validate runs.
var DefaultRules = []Rule{
	{ID: "A2ML-VAL-100", Apply: ruleManifestRequiredFields},
	{ID: "A2ML-VAL-110", Apply: ruleManifestRootHash},
	{ID: "A2ML-VAL-120", Apply: ruleRefsWellFormed},
	{ID: "A2ML-VAL-130", Apply: rulePolicyCounters},
	{ID: "A2ML-VAL-135", Apply: rulePolicyModeString},
	{ID: "A2ML-VAL-140", Apply: ruleAttestationShape},
	{ID: "A2ML-VAL-150", Apply: ruleAuditTimestampsMonotonic},
}

// Validate runs DefaultRules and returns a single combined error, or
// nil if doc is well-formed.
func Validate(doc *Document) error {
	errs := ValidateRulesAll(doc, DefaultRules)
	if len(errs) == 0 {
		return nil
	}
	return &ValidationErrors{Errors: errs}
}

// ValidationErrors aggregates every rule violation found in one pass.
type ValidationErrors struct {
	Errors []error
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors, first: %s", len(v.Errors), v.Errors[0])
}

func (v *ValidationErrors) Unwrap() []error { return v.Errors }

// ruleManifestRequiredFields enforces @manifest's non-empty id,
// version, producer, subsystem, and a produced_at that parses as
// ISO-8601 with a Z offset. The parser already classifies any string
// literal that parses that way as VTimestamp (see classifyStringValue
// in parser.go), so a produced_at that survived parsing as anything
// else has already failed the ISO-8601-with-Z test.
func ruleManifestRequiredFields(doc *Document) []error {
	sec, ok := doc.Sections["manifest"]
	if !ok {
		return []error{newErr(KindValidation, "A2ML-VAL-100", "missing @manifest section")}
	}
	var errs []error
	for _, key := range []string{"root_hash", "tree_depth"} {
		if _, ok := sec.Get(key); !ok {
			errs = append(errs, newErr(KindValidation, "A2ML-VAL-101", fmt.Sprintf("@manifest missing required field %q", key)))
		}
	}
	for _, key := range []string{"id", "version", "producer", "subsystem"} {
		e, ok := sec.Get(key)
		if !ok {
			errs = append(errs, newErr(KindValidation, "A2ML-VAL-101", fmt.Sprintf("@manifest missing required field %q", key)))
			continue
		}
		if (e.Value.Kind != VString && e.Value.Kind != VIdentifier) || e.Value.Str == "" {
			errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-102", e.Line, e.Column, fmt.Sprintf("@manifest field %q must be non-empty", key)))
		}
	}
	producedAt, ok := sec.Get("produced_at")
	if !ok {
		errs = append(errs, newErr(KindValidation, "A2ML-VAL-101", `@manifest missing required field "produced_at"`))
	} else if producedAt.Value.Kind != VTimestamp {
		errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-103", producedAt.Line, producedAt.Column, "produced_at must parse as ISO-8601 with a Z offset"))
	}
	return errs
}

func ruleManifestRootHash(doc *Document) []error {
	sec, ok := doc.Sections["manifest"]
	if !ok {
		return nil
	}
	e, ok := sec.Get("root_hash")
	if !ok {
		return nil // already reported by ruleManifestRequiredFields
	}
	if e.Value.Kind != VHash {
		return []error{newErrAt(KindValidation, "A2ML-VAL-110", e.Line, e.Column, "root_hash must be a hash literal")}
	}
	if !e.Value.Hash.Valid() {
		return []error{newErrAt(KindValidation, "A2ML-VAL-111", e.Line, e.Column, "root_hash digest length does not match its algorithm")}
	}
	depthE, ok := sec.Get("tree_depth")
	if ok && depthE.Value.Kind != VInteger {
		return []error{newErrAt(KindValidation, "A2ML-VAL-112", depthE.Line, depthE.Column, "tree_depth must be an integer")}
	}
	if ok && depthE.Value.Int < 0 {
		return []error{newErrAt(KindValidation, "A2ML-VAL-113", depthE.Line, depthE.Column, "tree_depth cannot be negative")}
	}
	return nil
}

// refsHashFields and refsIntegerFields name the @refs fields whose
// kind is fixed by what they hold (a root digest or a count), per the
// section's description; any other field is a string/identifier
// reference (a path, an algorithm tag) and is accepted as either.
var refsHashFields = map[string]bool{"merkle_root": true, "previous_root": true, "snapshot_digest": true}
var refsIntegerFields = map[string]bool{"block_count": true, "tree_depth": true, "leaf_size": true, "chain_length": true}

// merkleTreeDepth mirrors fsmodel.Manifest.TreeDepth's duplicated-last
// promotion formula. Kept local rather than imported: a2ml sits below
// fsmodel in the import graph.
func merkleTreeDepth(n int) int {
	if n <= 1 {
		return 0
	}
	depth := 0
	for n > 1 {
		n = (n + 1) / 2
		depth++
	}
	return depth
}

// ruleRefsWellFormed checks @refs field types and signs, then its
// cross-field invariants: algorithm is one of the four supported
// digest algorithms, merkle_root's own algorithm tag agrees with the
// declared algorithm field, and tree_depth is consistent with
// block_count under duplicated-last promotion.
func ruleRefsWellFormed(doc *Document) []error {
	sec, ok := doc.Sections["refs"]
	if !ok {
		return nil // @refs is optional
	}
	var errs []error
	for _, e := range sec.Entries {
		if e.IsNested() {
			continue
		}
		switch {
		case refsHashFields[e.Key]:
			if e.Value.Kind != VHash {
				errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-120", e.Line, e.Column, fmt.Sprintf("@refs field %q must be a hash", e.Key)))
			} else if !e.Value.Hash.Valid() {
				errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-126", e.Line, e.Column, fmt.Sprintf("@refs field %q digest length does not match its algorithm", e.Key)))
			}
		case refsIntegerFields[e.Key]:
			if e.Value.Kind != VInteger {
				errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-121", e.Line, e.Column, fmt.Sprintf("@refs field %q must be an integer", e.Key)))
			} else if e.Value.Int < 0 {
				errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-122", e.Line, e.Column, fmt.Sprintf("@refs field %q cannot be negative", e.Key)))
			}
		case e.Key == "algorithm":
			if e.Value.Kind != VIdentifier && e.Value.Kind != VString {
				errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-120", e.Line, e.Column, `@refs field "algorithm" must be an identifier or string`))
			} else if _, err := hash.ParseAlgorithm(e.Value.Str); err != nil {
				errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-123", e.Line, e.Column, "@refs field \"algorithm\" must be one of sha256, sha384, sha512, blake3"))
			}
		default:
			if e.Value.Kind != VHash && e.Value.Kind != VString && e.Value.Kind != VIdentifier {
				errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-120", e.Line, e.Column, fmt.Sprintf("@refs field %q must be a hash or path string", e.Key)))
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if algoE, ok := sec.Get("algorithm"); ok {
		if algo, err := hash.ParseAlgorithm(algoE.Value.Str); err == nil {
			if rootE, ok := sec.Get("merkle_root"); ok && rootE.Value.Kind == VHash && rootE.Value.Hash.Algorithm != algo {
				errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-124", rootE.Line, rootE.Column, "merkle_root algorithm does not match @refs.algorithm"))
			}
		}
	}

	depthE, depthOK := sec.Get("tree_depth")
	countE, countOK := sec.Get("block_count")
	if depthOK && countOK && depthE.Value.Kind == VInteger && countE.Value.Kind == VInteger {
		if want := merkleTreeDepth(int(countE.Value.Int)); int(depthE.Value.Int) != want {
			errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-125", depthE.Line, depthE.Column, "tree_depth is inconsistent with block_count under duplicated-last promotion"))
		}
	}

	return errs
}

// violationCount returns the element count of a @policy.violations
// entry, whether it parsed as a list value or stayed a nested block of
// sequential-key leaves.
func violationCount(e Entry) int {
	if e.Value.Kind == VList {
		return len(e.Value.List)
	}
	if e.IsNested() {
		return len(e.Nested)
	}
	return 0
}

// rulePolicyCounters enforces @policy's counter invariant: passed,
// failed, and skipped must sum to total_policies, and the optional
// violations list must not exceed failed in length.
func rulePolicyCounters(doc *Document) []error {
	sec, ok := doc.Sections["policy"]
	if !ok {
		return nil
	}
	required := []string{"passed", "failed", "skipped", "total_policies"}
	fields := make(map[string]Entry, len(required))
	var errs []error
	for _, key := range required {
		e, ok := sec.Get(key)
		if !ok {
			errs = append(errs, newErr(KindValidation, "A2ML-VAL-130", fmt.Sprintf("@policy missing required field %q", key)))
			continue
		}
		if e.Value.Kind != VInteger {
			errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-130", e.Line, e.Column, fmt.Sprintf("@policy field %q must be an integer", key)))
			continue
		}
		if e.Value.Int < 0 {
			errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-132", e.Line, e.Column, fmt.Sprintf("@policy field %q cannot be negative", key)))
			continue
		}
		fields[key] = e
	}
	if len(errs) > 0 {
		return errs
	}

	passed, failed, skipped, total := fields["passed"], fields["failed"], fields["skipped"], fields["total_policies"]
	if passed.Value.Int+failed.Value.Int+skipped.Value.Int != total.Value.Int {
		errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-131", total.Line, total.Column, "passed+failed+skipped must equal total_policies"))
	}

	if violationsE, ok := sec.Get("violations"); ok {
		if n := int64(violationCount(violationsE)); n > failed.Value.Int {
			errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-134", violationsE.Line, violationsE.Column, "@policy violations count exceeds failed"))
		}
	}
	return errs
}

var validPolicyModes = map[string]bool{"lax": true, "checked": true, "attested": true}

// rulePolicyModeString enforces that @policy.mode, when present, draws
// from the closed set {lax, checked, attested}.
func rulePolicyModeString(doc *Document) []error {
	sec, ok := doc.Sections["policy"]
	if !ok {
		return nil
	}
	e, ok := sec.Get("mode")
	if !ok {
		return nil
	}
	if (e.Value.Kind != VIdentifier && e.Value.Kind != VString) || !validPolicyModes[e.Value.Str] {
		return []error{newErrAt(KindValidation, "A2ML-VAL-135", e.Line, e.Column, "@policy.mode must be one of lax, checked, attested")}
	}
	return nil
}

func ruleAttestationShape(doc *Document) []error {
	sec, ok := doc.Sections["attestation"]
	if !ok {
		return nil // @attestation is optional; Lax mode needs none
	}
	var errs []error
	for _, key := range []string{"signer", "signature", "algorithm"} {
		if _, ok := sec.Get(key); !ok {
			errs = append(errs, newErr(KindValidation, "A2ML-VAL-140", fmt.Sprintf("@attestation missing required field %q", key)))
		}
	}
	if sigE, ok := sec.Get("signature"); ok && sigE.Value.Kind != VBlob && sigE.Value.Kind != VString {
		errs = append(errs, newErrAt(KindValidation, "A2ML-VAL-141", sigE.Line, sigE.Column, "signature must be a blob or string"))
	}
	return errs
}

// ruleAuditTimestampsMonotonic enforces that @audit's ordered log
// entries carry non-decreasing timestamps. @audit is not one of the
// lexer's four section keywords, so it never arrives by parsing literal
// source text; a Document assembled in-process may still carry one in
// its Sections map, and this rule checks it when present.
func ruleAuditTimestampsMonotonic(doc *Document) []error {
	sec, ok := doc.Sections["audit"]
	if !ok {
		return nil
	}
	var prev time.Time
	var havePrev bool
	for _, e := range sec.Entries {
		if !e.IsNested() {
			continue
		}
		tsE, ok := getNestedEntry(e.Nested, "timestamp")
		if !ok || tsE.Value.Kind != VTimestamp {
			continue
		}
		if havePrev && tsE.Value.Time.Before(prev) {
			return []error{newErrAt(KindValidation, "A2ML-VAL-150", tsE.Line, tsE.Column, "@audit timestamps must be monotonically non-decreasing")}
		}
		prev = tsE.Value.Time
		havePrev = true
	}
	return nil
}

func getNestedEntry(entries []Entry, key string) (Entry, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}
