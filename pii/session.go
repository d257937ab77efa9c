// Package pii is the anonymization core: the pipeline that runs the
// detection passes, the per-document session that owns pseudonym state, and
// the replacement engine that rewrites the original text.
package pii

import (
	"fmt"
	"strings"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// Session holds all pseudonym state for exactly one document. Two documents
// processed with separate sessions can never leak pseudonyms into each other;
// within one session the same value always resolves to the same pseudonym.
type Session struct {
	counters   map[string]int
	byIdentity map[string]string
	entities   map[string]string
	addresses  []model.AddressEntry
	spans      [][2]int
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		counters:   make(map[string]int),
		byIdentity: make(map[string]string),
		entities:   make(map[string]string),
	}
}

// Pseudonym returns the stable pseudonym for e, allocating the next
// per-prefix counter value on first sight. Repeated mentions of the same
// value, and mentions sharing a logical identity, resolve to one pseudonym.
func (s *Session) Pseudonym(e model.Entity) string {
	key := identityKey(e)
	if p, ok := s.byIdentity[key]; ok {
		// A new text variant of a known identity: the mapping artifact
		// must list every literal text that was replaced.
		s.entities[e.Text] = p
		return p
	}
	prefix := e.Type.PseudonymPrefix()
	s.counters[prefix]++
	p := fmt.Sprintf("%s_%d", prefix, s.counters[prefix])
	s.byIdentity[key] = p
	s.entities[e.Text] = p
	return p
}

// RegisterGroupedAddress returns the bracketed placeholder for a grouped
// address, allocating it on first sight and recording the structured entry
// for the mapping artifact. original is the address text as it appears in
// the original document.
func (s *Session) RegisterGroupedAddress(e model.Entity, original string) string {
	key := identityKey(e)
	if p, ok := s.byIdentity[key]; ok {
		return p
	}
	s.counters["ADDR"]++
	p := fmt.Sprintf("[ADDR_%d]", s.counters["ADDR"])
	s.byIdentity[key] = p
	s.addresses = append(s.addresses, model.AddressEntry{
		Placeholder: p,
		Original:    original,
		Breakdown:   breakdownFromComponents(e.Components),
		Confidence:  e.Confidence,
	})
	return p
}

// MarkRange records a replaced span of the original text.
func (s *Session) MarkRange(start, end int) {
	s.spans = append(s.spans, [2]int{start, end})
}

// IsRangeAnonymized reports whether [start, end) intersects an already
// replaced span.
func (s *Session) IsRangeAnonymized(start, end int) bool {
	for _, sp := range s.spans {
		if start < sp[1] && sp[0] < end {
			return true
		}
	}
	return false
}

// EntityMappings returns the text-to-pseudonym map for non-address entities.
func (s *Session) EntityMappings() map[string]string {
	out := make(map[string]string, len(s.entities))
	for text, p := range s.entities {
		out[text] = p
	}
	return out
}

// AddressEntries returns the structured grouped-address records in
// allocation order.
func (s *Session) AddressEntries() []model.AddressEntry {
	return s.addresses
}

// identityKey collapses an entity to its session identity: the logical ID
// when consolidation assigned one, otherwise type plus separator-folded text.
func identityKey(e model.Entity) string {
	if e.LogicalID != "" {
		return string(e.Type) + "\x00id:" + e.LogicalID
	}
	return string(e.Type) + "\x00" + foldText(e.Text)
}

// foldText lowercases and strips separator noise so formatting variants of
// one value share a pseudonym.
func foldText(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch r {
		case ' ', '.', '-', '\t', '\n':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func breakdownFromComponents(components []model.AddressComponent) model.AddressBreakdown {
	var b model.AddressBreakdown
	for _, c := range components {
		switch c.Kind {
		case model.ComponentStreet:
			if b.Street == "" {
				b.Street = c.Text
			}
		case model.ComponentNumber:
			if b.Number == "" {
				b.Number = c.Text
			}
		case model.ComponentPostalCode:
			if b.PostalCode == "" {
				b.PostalCode = c.Text
			}
		case model.ComponentCity:
			if b.City == "" {
				b.City = c.Text
			}
		case model.ComponentCountry:
			if b.Country == "" {
				b.Country = c.Text
			}
		case model.ComponentRegion:
			if b.Region == "" {
				b.Region = c.Text
			}
		}
	}
	return b
}
