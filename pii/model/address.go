package model

// AddressBreakdown is the computed component view of a grouped address.
type AddressBreakdown struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	Region     string `json:"region,omitempty"`
}

// GroupedAddress is the intermediate pre-Entity representation of linked
// address components.
type GroupedAddress struct {
	Components []AddressComponent
	StartPos   int
	EndPos     int
	Text       string
}

// ScoredAddress is a grouped address after scoring.
type ScoredAddress struct {
	GroupedAddress
	Breakdown       AddressBreakdown
	FinalConfidence float64
	ScoringFactors  []string
	AutoAnonymize   bool
	Type            EntityType
}
