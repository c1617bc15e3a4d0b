// Package verifymode defines the three filesystem verification
// strictness modes and their total order.
package verifymode

import (
	"fmt"
	"strings"

	"github.com/hyperpolymath/ochrance/witness"
)

// Mode is a verification strictness level.
type Mode int

const (
	Lax Mode = iota
	Checked
	Attested
)

func (m Mode) String() string {
	switch m {
	case Lax:
		return "lax"
	case Checked:
		return "checked"
	case Attested:
		return "attested"
	default:
		return "unknown"
	}
}

// Parse parses a mode string from the closed set {lax, checked,
// attested}, case-insensitively.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lax":
		return Lax, nil
	case "checked":
		return Checked, nil
	case "attested":
		return Attested, nil
	default:
		return 0, fmt.Errorf("verifymode: unknown mode %q", s)
	}
}

// RequiredTier maps a mode to the witness tier a verifier must
// produce to satisfy it.
func (m Mode) RequiredTier() witness.Tier {
	switch m {
	case Lax:
		return witness.Structural
	case Checked:
		return witness.HashMatch
	case Attested:
		return witness.Attested
	default:
		return witness.Attested
	}
}

// SatisfiesMinimum reports whether actual meets or exceeds threshold
// in the strictness order Lax < Checked < Attested.
func SatisfiesMinimum(threshold, actual Mode) bool {
	return actual >= threshold
}
