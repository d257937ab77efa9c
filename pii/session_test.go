package pii

import (
	"testing"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

func TestSessionPseudonymsAreStable(t *testing.T) {
	s := NewSession()
	jean := model.NewEntity(model.TypePerson, "Jean Dupont", 0, 11, 0.9, model.SourceML)
	marie := model.NewEntity(model.TypePerson, "Marie Curie", 20, 31, 0.9, model.SourceML)

	if got := s.Pseudonym(jean); got != "PER_1" {
		t.Errorf("first person = %q, want PER_1", got)
	}
	if got := s.Pseudonym(marie); got != "PER_2" {
		t.Errorf("second person = %q, want PER_2", got)
	}
	// Repeated mention resolves to the same pseudonym.
	if got := s.Pseudonym(jean); got != "PER_1" {
		t.Errorf("repeat = %q, want PER_1", got)
	}
}

func TestSessionCountersArePerPrefix(t *testing.T) {
	s := NewSession()
	person := model.NewEntity(model.TypePerson, "Jean Dupont", 0, 11, 0.9, model.SourceML)
	email := model.NewEntity(model.TypeEmail, "jean@mail.ch", 15, 27, 0.95, model.SourceRule)

	if got := s.Pseudonym(person); got != "PER_1" {
		t.Errorf("person = %q, want PER_1", got)
	}
	if got := s.Pseudonym(email); got != "EMAIL_1" {
		t.Errorf("email = %q, want EMAIL_1", got)
	}
}

func TestSessionFormattingVariantsShareIdentity(t *testing.T) {
	s := NewSession()
	dotted := model.NewEntity(model.TypeSwissAVS, "756.9217.0769.85", 0, 16, 0.9, model.SourceRule)
	spaced := model.NewEntity(model.TypeSwissAVS, "756 9217 0769 85", 30, 46, 0.9, model.SourceRule)

	if a, b := s.Pseudonym(dotted), s.Pseudonym(spaced); a != b {
		t.Errorf("variants got %q and %q, want one pseudonym", a, b)
	}

	// Both literal texts appear in the mapping, against the one pseudonym.
	m := s.EntityMappings()
	if m["756.9217.0769.85"] != "AVS_1" || m["756 9217 0769 85"] != "AVS_1" {
		t.Errorf("mappings = %v, want both variants mapped to AVS_1", m)
	}
}

func TestSessionLogicalIDOverridesText(t *testing.T) {
	s := NewSession()
	a := model.NewEntity(model.TypePerson, "Jean Dupont", 0, 11, 0.9, model.SourceML)
	b := model.NewEntity(model.TypePerson, "J. Dupont", 30, 39, 0.9, model.SourceML)
	a.LogicalID, b.LogicalID = "person-1", "person-1"

	if x, y := s.Pseudonym(a), s.Pseudonym(b); x != y {
		t.Errorf("shared logical identity got %q and %q", x, y)
	}
}

func TestSessionIsolation(t *testing.T) {
	jean := model.NewEntity(model.TypePerson, "Jean Dupont", 0, 11, 0.9, model.SourceML)
	marie := model.NewEntity(model.TypePerson, "Marie Curie", 20, 31, 0.9, model.SourceML)

	s1 := NewSession()
	s1.Pseudonym(jean)
	s1.Pseudonym(marie)

	// A fresh session restarts its counters; nothing carries over.
	s2 := NewSession()
	if got := s2.Pseudonym(marie); got != "PER_1" {
		t.Errorf("fresh session = %q, want PER_1", got)
	}
}

func TestSessionGroupedAddresses(t *testing.T) {
	s := NewSession()
	addr := model.NewEntity(model.TypeSwissAddress, "Rue de Lausanne 12, 1000 Lausanne", 0, 33, 0.95, model.SourceRule)
	addr.Components = []model.AddressComponent{
		{Kind: model.ComponentStreet, Text: "Rue de Lausanne", StartPos: 0, EndPos: 15},
		{Kind: model.ComponentPostalCode, Text: "1000", StartPos: 20, EndPos: 24},
		{Kind: model.ComponentCity, Text: "Lausanne", StartPos: 25, EndPos: 33},
	}

	got := s.RegisterGroupedAddress(addr, addr.Text)
	if got != "[ADDR_1]" {
		t.Errorf("placeholder = %q, want [ADDR_1]", got)
	}
	if again := s.RegisterGroupedAddress(addr, addr.Text); again != "[ADDR_1]" {
		t.Errorf("repeat registration = %q, want [ADDR_1]", again)
	}

	entries := s.AddressEntries()
	if len(entries) != 1 {
		t.Fatalf("got %d address entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Placeholder != "[ADDR_1]" || e.Original != addr.Text {
		t.Errorf("entry = %+v", e)
	}
	if e.Breakdown.Street != "Rue de Lausanne" || e.Breakdown.PostalCode != "1000" || e.Breakdown.City != "Lausanne" {
		t.Errorf("breakdown = %+v", e.Breakdown)
	}
}

func TestSessionRangeTracking(t *testing.T) {
	s := NewSession()
	s.MarkRange(10, 20)
	if !s.IsRangeAnonymized(15, 25) {
		t.Error("overlapping range should report anonymized")
	}
	if s.IsRangeAnonymized(20, 30) {
		t.Error("adjacent range should not report anonymized")
	}
}

func TestSessionEntityMappings(t *testing.T) {
	s := NewSession()
	email := model.NewEntity(model.TypeEmail, "jean.dupont@mail.ch", 0, 19, 0.95, model.SourceRule)
	s.Pseudonym(email)

	m := s.EntityMappings()
	if m["jean.dupont@mail.ch"] != "EMAIL_1" {
		t.Errorf("mappings = %v, want jean.dupont@mail.ch -> EMAIL_1", m)
	}
}
