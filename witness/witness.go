// Package witness implements the three-tier proof witness algebra:
// Structural, HashMatch, and Attested, each a strict strengthening of
// the previous, with promotion constructors and weakening projections.
//
// There is deliberately no exported zero-value constructor for any
// tier beyond Structural: a Witness can only come to exist by having
// actually demonstrated the evidence its tier asserts.
package witness

import "time"

// Tier names a witness's strictness level.
type Tier int

const (
	Structural Tier = iota
	HashMatch
	Attested
)

func (t Tier) String() string {
	switch t {
	case Structural:
		return "structural"
	case HashMatch:
		return "hash-match"
	case Attested:
		return "attested"
	default:
		return "unknown"
	}
}

// hashEvidence is the evidence a HashMatch witness carries: proof
// that a computed digest equalled an expected one.
type hashEvidence struct {
	computedEqualsExpected bool
}

// attestedEvidence is the additional evidence an Attested witness
// carries over HashMatch: a timestamp and an invariant-satisfaction
// flag.
type attestedEvidence struct {
	timestamp          time.Time
	invariantsSatisfied bool
}

// Witness is a tagged sum over the three tiers. Consumers that
// require tier T accept witnesses of tier T or stricter (see
// Satisfies).
type Witness struct {
	tier     Tier
	hash     hashEvidence
	attested attestedEvidence
}

// Tier returns w's strictness tier.
func (w Witness) Tier() Tier { return w.tier }

// Satisfies reports whether w's tier is at least as strict as min.
func (w Witness) Satisfies(min Tier) bool { return w.tier >= min }

// NewStructural constructs the weakest witness tier: proof that an
// FSState/FSManifest pair passed structural sanity checks only.
func NewStructural() Witness {
	return Witness{tier: Structural}
}

// PromoteToHashMatch strengthens a Structural witness to HashMatch,
// given evidence that a computed digest equalled its expected value.
// It is the caller's responsibility to have actually performed that
// comparison; this constructor only records that it happened.
func PromoteToHashMatch(w Witness, computedEqualsExpected bool) (Witness, bool) {
	if w.tier != Structural || !computedEqualsExpected {
		return Witness{}, false
	}
	w.tier = HashMatch
	w.hash = hashEvidence{computedEqualsExpected: true}
	return w, true
}

// PromoteToAttested strengthens a HashMatch witness to Attested,
// given a timestamp and whether the subsystem's invariants held at
// that time.
func PromoteToAttested(w Witness, at time.Time, invariantsSatisfied bool) (Witness, bool) {
	if w.tier != HashMatch || !invariantsSatisfied {
		return Witness{}, false
	}
	w.tier = Attested
	w.attested = attestedEvidence{timestamp: at, invariantsSatisfied: true}
	return w, true
}

// WeakenToHashMatch projects an Attested witness down to HashMatch,
// discarding the attestation metadata. It is a no-op (identity) on a
// witness already at or below HashMatch tier.
func (w Witness) WeakenToHashMatch() Witness {
	if w.tier < HashMatch {
		return w
	}
	return Witness{tier: HashMatch, hash: w.hash}
}

// WeakenToStructural projects any witness down to Structural,
// discarding all hash-match and attestation evidence.
func (w Witness) WeakenToStructural() Witness {
	return Witness{tier: Structural}
}

// AttestedAt returns the timestamp recorded on an Attested witness,
// and false if w is not Attested.
func (w Witness) AttestedAt() (time.Time, bool) {
	if w.tier != Attested {
		return time.Time{}, false
	}
	return w.attested.timestamp, true
}
