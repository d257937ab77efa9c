package model

import "time"

// MappingSchemaVersion is the schema version written into mapping artifacts.
const MappingSchemaVersion = "2.0"

// AddressEntry is the structured mapping record for one grouped address.
type AddressEntry struct {
	Placeholder string           `json:"placeholder"`
	Original    string           `json:"original"`
	Breakdown   AddressBreakdown `json:"breakdown"`
	Confidence  float64          `json:"confidence"`
}

// MappingFile is the per-document export artifact. It is created once at the
// end of processing and never mutated afterwards; persisting it is the
// caller's job.
type MappingFile struct {
	SchemaVersion string            `json:"schema_version"`
	Timestamp     time.Time         `json:"timestamp"`
	Model         string            `json:"model"`
	DocumentType  string            `json:"document_type"`
	Passes        []string          `json:"passes"`
	Entities      map[string]string `json:"entities"`
	Addresses     []AddressEntry    `json:"addresses"`
}
