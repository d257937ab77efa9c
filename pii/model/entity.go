package model

import (
	"sort"

	"github.com/google/uuid"
)

// EntityType classifies a detected PII candidate.
type EntityType string

// Supported entity types.
const (
	TypePerson        EntityType = "PERSON"
	TypeOrganization  EntityType = "ORGANIZATION"
	TypeLocation      EntityType = "LOCATION"
	TypeAddress       EntityType = "ADDRESS"
	TypeSwissAddress  EntityType = "SWISS_ADDRESS"
	TypeEUAddress     EntityType = "EU_ADDRESS"
	TypeSwissAVS      EntityType = "SWISS_AVS"
	TypeIBAN          EntityType = "IBAN"
	TypePhone         EntityType = "PHONE"
	TypeEmail         EntityType = "EMAIL"
	TypeDate          EntityType = "DATE"
	TypeAmount        EntityType = "AMOUNT"
	TypeVATNumber     EntityType = "VAT_NUMBER"
	TypeInvoiceNumber EntityType = "INVOICE_NUMBER"
	TypePaymentRef    EntityType = "PAYMENT_REF"
	TypeSalutation    EntityType = "SALUTATION"
	TypeSignature     EntityType = "SIGNATURE"
	TypeReferenceLine EntityType = "REFERENCE_LINE"
	TypeContractParty EntityType = "CONTRACT_PARTY"
	TypeUnknown       EntityType = "UNKNOWN"
)

// IsAddressFamily reports whether t is one of the grouped-address types.
func (t EntityType) IsAddressFamily() bool {
	return t == TypeAddress || t == TypeSwissAddress || t == TypeEUAddress
}

// IsLocationRelated reports whether an entity of this type is subsumed by an
// overlapping grouped address.
func (t EntityType) IsLocationRelated() bool {
	return t.IsAddressFamily() || t == TypeLocation
}

// PseudonymPrefix returns the counter prefix used for pseudonyms of this type.
func (t EntityType) PseudonymPrefix() string {
	switch t {
	case TypePerson:
		return "PER"
	case TypeOrganization:
		return "ORG"
	case TypeLocation:
		return "LOC"
	case TypeAddress, TypeSwissAddress, TypeEUAddress:
		return "ADDR"
	case TypeSwissAVS:
		return "AVS"
	case TypeIBAN:
		return "IBAN"
	case TypePhone:
		return "PHONE"
	case TypeEmail:
		return "EMAIL"
	case TypeDate:
		return "DATE"
	case TypeAmount:
		return "AMOUNT"
	case TypeVATNumber:
		return "VAT"
	case TypeInvoiceNumber:
		return "INV"
	case TypePaymentRef:
		return "REF"
	case TypeSalutation:
		return "SAL"
	case TypeSignature:
		return "SIG"
	case TypeReferenceLine:
		return "REFLINE"
	case TypeContractParty:
		return "PARTY"
	}
	return "PII"
}

// Source identifies which detector family produced an entity.
type Source string

// Entity sources.
const (
	SourceML           Source = "ML"
	SourceRule         Source = "RULE"
	SourceBoth         Source = "BOTH"
	SourceConsolidated Source = "CONSOLIDATED"
	SourceManual       Source = "MANUAL"
)

// ValidationStatus is the outcome of the format validation pass.
type ValidationStatus string

// Validation outcomes.
const (
	ValidationUnchecked ValidationStatus = "unchecked"
	ValidationValid     ValidationStatus = "valid"
	ValidationInvalid   ValidationStatus = "invalid"
)

// ValidationInfo records the format validation result for an entity.
type ValidationInfo struct {
	Status ValidationStatus `json:"status"`
	Reason string           `json:"reason,omitempty"`
}

// ContextInfo records the context scoring result for an entity.
type ContextInfo struct {
	Score   float64  `json:"score"`
	Factors []string `json:"factors,omitempty"`
}

// AddressComponent is one classified piece of a grouped address.
type AddressComponent struct {
	Kind     ComponentKind `json:"kind"`
	Text     string        `json:"text"`
	StartPos int           `json:"start_pos"`
	EndPos   int           `json:"end_pos"`
}

// ComponentKind classifies an address component.
type ComponentKind string

// Address component kinds.
const (
	ComponentStreet     ComponentKind = "street"
	ComponentNumber     ComponentKind = "number"
	ComponentPostalCode ComponentKind = "postal_code"
	ComponentCity       ComponentKind = "city"
	ComponentCountry    ComponentKind = "country"
	ComponentRegion     ComponentKind = "region"
)

// Entity is one detected PII candidate. Spans are half-open byte ranges
// [StartPos, EndPos) into the normalized document text.
type Entity struct {
	ID               string             `json:"id"`
	Type             EntityType         `json:"type"`
	Text             string             `json:"text"`
	StartPos         int                `json:"start_pos"`
	EndPos           int                `json:"end_pos"`
	Confidence       float64            `json:"confidence"`
	Source           Source             `json:"source"`
	LogicalID        string             `json:"logical_id,omitempty"`
	Components       []AddressComponent `json:"components,omitempty"`
	Validation       *ValidationInfo    `json:"validation,omitempty"`
	Context          *ContextInfo       `json:"context,omitempty"`
	FlaggedForReview bool               `json:"flagged_for_review,omitempty"`
	Metadata         map[string]string  `json:"metadata,omitempty"`
}

// NewEntity creates an entity with a fresh opaque ID.
func NewEntity(typ EntityType, text string, start, end int, confidence float64, source Source) Entity {
	return Entity{
		ID:         uuid.NewString(),
		Type:       typ,
		Text:       text,
		StartPos:   start,
		EndPos:     end,
		Confidence: confidence,
		Source:     source,
	}
}

// Overlaps reports whether the spans of e and other intersect.
func (e Entity) Overlaps(other Entity) bool {
	return e.StartPos < other.EndPos && other.StartPos < e.EndPos
}

// OverlapsRange reports whether the entity span intersects [start, end).
func (e Entity) OverlapsRange(start, end int) bool {
	return e.StartPos < end && start < e.EndPos
}

// SortByPosition orders entities by start position, then by end position.
func SortByPosition(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].StartPos != entities[j].StartPos {
			return entities[i].StartPos < entities[j].StartPos
		}
		return entities[i].EndPos < entities[j].EndPos
	})
}
