// Package policy evaluates decidable predicates over filesystem state,
// with a fail-fast AllOf/AnyOf and an accumulating EvaluateAll.
package policy

import "github.com/hyperpolymath/ochrance/fsmodel"

// Verdict is the result of evaluating one Predicate: either it held
// (Ok, with optional supporting evidence), or it didn't (a Violation
// carrying a counter-example).
type Verdict struct {
	OK          bool
	Evidence    string
	CounterExample string
}

func Ok(evidence string) Verdict { return Verdict{OK: true, Evidence: evidence} }

func Violation(counterExample string) Verdict {
	return Verdict{OK: false, CounterExample: counterExample}
}

// Predicate is a decidable check over filesystem state.
type Predicate struct {
	ID    string
	Apply func(*fsmodel.State) Verdict
}

// AllOf evaluates predicates in order and short-circuits on the first
// Violation.
func AllOf(state *fsmodel.State, predicates []Predicate) Verdict {
	for _, p := range predicates {
		if v := p.Apply(state); !v.OK {
			return v
		}
	}
	return Ok("all predicates held")
}

// AnyOf evaluates predicates in order and returns the first Ok
// verdict, or the last Violation if none held.
func AnyOf(state *fsmodel.State, predicates []Predicate) Verdict {
	var last Verdict
	for _, p := range predicates {
		v := p.Apply(state)
		if v.OK {
			return v
		}
		last = v
	}
	if len(predicates) == 0 {
		return Violation("no predicates supplied")
	}
	return last
}

// Not inverts a predicate's verdict, discarding its evidence/counter-
// example text (the inverted verdict's polarity is all that remains
// meaningful).
func Not(p Predicate) Predicate {
	return Predicate{
		ID: "not(" + p.ID + ")",
		Apply: func(s *fsmodel.State) Verdict {
			v := p.Apply(s)
			if v.OK {
				return Violation("predicate " + p.ID + " held, expected it not to")
			}
			return Ok("predicate " + p.ID + " did not hold, as required")
		},
	}
}

// Counters are the @policy section's passed/failed/skipped tally.
type Counters struct {
	Passed  int
	Failed  int
	Skipped int
}

// Total returns Passed + Failed + Skipped.
func (c Counters) Total() int { return c.Passed + c.Failed + c.Skipped }

// EvaluateAll evaluates every predicate against state, never stopping
// early, and returns both the Counters tally and the Violation
// verdicts in evaluation order. This is the accumulating counterpart
// to AllOf.
func EvaluateAll(state *fsmodel.State, predicates []Predicate) (Counters, []Verdict) {
	var c Counters
	var violations []Verdict
	for _, p := range predicates {
		v := p.Apply(state)
		if v.OK {
			c.Passed++
			continue
		}
		c.Failed++
		violations = append(violations, v)
	}
	return c, violations
}
