package model

import "context"

// RegionHint tells the pipeline that a region of the document is expected to
// contain a specific entity type (e.g. a signature block).
type RegionHint struct {
	StartPos int        `json:"start_pos"`
	EndPos   int        `json:"end_pos"`
	Type     EntityType `json:"type"`
}

// RuntimeContext carries caller-supplied domain knowledge that the context
// scoring pass turns into bounded confidence boosts.
type RuntimeContext struct {
	ColumnHeaders []string     `json:"column_headers,omitempty"`
	RegionHints   []RegionHint `json:"region_hints,omitempty"`
	ContextWords  []string     `json:"context_words,omitempty"`
}

// Features toggles individual pipeline behaviors.
type Features struct {
	NormalizeUnicode     bool
	StripZeroWidth       bool
	DeobfuscateEmails    bool
	DeobfuscatePhones    bool
	ClassifyDocument     bool
	ScoreContext         bool
	GroupAddresses       bool
	DetectAmounts        bool // off by default: amounts are not PII
	UseLogicalIdentities bool // one pseudonym per logical identity
	ProtectMarkdownCode  bool
}

// PipelineConfig is the per-invocation configuration every pass reads. The
// ML confidence threshold lives in the detector config instead: it is fixed
// at detector construction, not per document.
type PipelineConfig struct {
	Language               string
	ContextWindowSize      int
	AutoAnonymizeThreshold float64
	ReviewThreshold        float64
	AddressProximity       int
	MinAddressComponents   int
	Features               Features
	Runtime                RuntimeContext
	Debug                  bool
}

// PipelineContext is the shared per-invocation state. Metadata is the
// side-channel passes use to publish cross-pass signals (document type,
// filtered counts, boosts applied).
type PipelineContext struct {
	Language string
	Config   PipelineConfig
	Metadata map[string]any
}

// NewPipelineContext creates a context with an empty metadata map.
func NewPipelineContext(cfg PipelineConfig) *PipelineContext {
	lang := cfg.Language
	if lang == "" {
		lang = "en"
	}
	return &PipelineContext{
		Language: lang,
		Config:   cfg,
		Metadata: make(map[string]any),
	}
}

// Metadata keys published by passes.
const (
	MetaDocumentType      = "document_type"
	MetaDocumentLanguage  = "document_language"
	MetaDocConfidence     = "document_confidence"
	MetaDenyListFiltered  = "denylist_filtered"
	MetaPatternRejected   = "pattern_rejected"
	MetaConsolidated      = "consolidated_count"
	MetaLogicalIdentities = "logical_identities"
	MetaContextBoosts     = "context_boosts_applied"
	MetaAddressGroups     = "address_groups"
)

// DetectionPass is one stage of the pipeline. Passes run in ascending Order
// and must be idempotent with respect to the document; metadata writes are
// the only permitted side effect.
type DetectionPass interface {
	Name() string
	Order() int
	Enabled(pctx *PipelineContext) bool
	Execute(ctx context.Context, text string, entities []Entity, pctx *PipelineContext) ([]Entity, error)
}
