package witness

import (
	"testing"
	"time"
)

func TestPromotionLattice(t *testing.T) {
	s := NewStructural()
	if s.Tier() != Structural {
		t.Fatalf("tier = %v, want Structural", s.Tier())
	}

	hm, ok := PromoteToHashMatch(s, true)
	if !ok {
		t.Fatal("expected successful promotion to HashMatch")
	}
	if hm.Tier() != HashMatch {
		t.Fatalf("tier = %v, want HashMatch", hm.Tier())
	}

	at, ok := PromoteToAttested(hm, time.Unix(0, 0), true)
	if !ok {
		t.Fatal("expected successful promotion to Attested")
	}
	if at.Tier() != Attested {
		t.Fatalf("tier = %v, want Attested", at.Tier())
	}
}

func TestPromotionRejectsWrongStartingTier(t *testing.T) {
	s := NewStructural()
	if _, ok := PromoteToAttested(s, time.Now(), true); ok {
		t.Fatal("promoting Structural directly to Attested must fail")
	}
}

func TestPromotionRequiresEvidence(t *testing.T) {
	s := NewStructural()
	if _, ok := PromoteToHashMatch(s, false); ok {
		t.Fatal("promotion without matching evidence must fail")
	}
}

func TestWeakeningProjectsBack(t *testing.T) {
	s := NewStructural()
	hm, _ := PromoteToHashMatch(s, true)
	at, _ := PromoteToAttested(hm, time.Unix(1700000000, 0), true)

	backToHM := at.WeakenToHashMatch()
	if backToHM.Tier() != HashMatch {
		t.Fatalf("weakened tier = %v, want HashMatch", backToHM.Tier())
	}

	backToStruct := backToHM.WeakenToStructural()
	if backToStruct.Tier() != Structural {
		t.Fatalf("weakened tier = %v, want Structural", backToStruct.Tier())
	}
}

func TestSatisfiesMinimum(t *testing.T) {
	s := NewStructural()
	hm, _ := PromoteToHashMatch(s, true)
	if !hm.Satisfies(Structural) {
		t.Fatal("HashMatch must satisfy a Structural requirement")
	}
	if hm.Satisfies(Attested) {
		t.Fatal("HashMatch must not satisfy an Attested requirement")
	}
}

func TestAttestedAtOnlyOnAttestedTier(t *testing.T) {
	s := NewStructural()
	if _, ok := s.AttestedAt(); ok {
		t.Fatal("Structural witness must not carry a timestamp")
	}
}
