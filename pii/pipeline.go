package pii

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	detectors "github.com/ch8ri0s/PII-Anonymizer-sub009/pii/detectors"
	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/normalizer"
	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/passes"
	"golang.org/x/text/unicode/norm"
)

const defaultAutoAnonymizeThreshold = 0.5

// Result is the output of one document run.
type Result struct {
	// AnonymizedText is the original text with every anonymized span
	// replaced by its pseudonym; untouched regions are byte-identical to
	// the input.
	AnonymizedText string
	// Entities is the full post-pipeline entity list, including entities
	// below the anonymization threshold (flagged for review, not replaced).
	Entities []model.Entity
	// Mapping is the per-document export artifact. Persisting it is the
	// caller's job; the core never touches the file system.
	Mapping model.MappingFile
}

// Processor runs the detection pipeline and the replacement engine over one
// document at a time. It is safe for sequential reuse; each Process call
// creates a fresh session, so pseudonyms never leak between documents.
type Processor struct {
	cfg       model.PipelineConfig
	passes    []model.DetectionPass
	modelName string
}

// NewProcessor builds the pass chain. mlDetector may be nil, which yields a
// fully functional rule-only pipeline.
func NewProcessor(cfg model.PipelineConfig, mlDetector detectors.Detector) (*Processor, error) {
	ruleDetector, err := detectors.NewRegexDetector(detectors.PIIPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule detector: %w", err)
	}
	ruleDetector.SetDetectAmounts(cfg.Features.DetectAmounts)

	chain := []model.DetectionPass{
		passes.NewDocClassificationPass(),
		passes.NewHighRecallPass(mlDetector, ruleDetector, detectors.NewDenyList()),
		passes.NewValidationPass(),
		passes.NewContextScoringPass(),
		passes.NewAddressPass(),
		passes.NewConsolidationPass(),
	}
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Order() < chain[j].Order() })

	modelName := "rules-only"
	if mlDetector != nil {
		modelName = mlDetector.GetName()
	}
	return &Processor{cfg: cfg, passes: chain, modelName: modelName}, nil
}

// Process runs the full pipeline on one document and returns the anonymized
// text with its mapping artifact. A failing pass logs and is skipped; the
// pipeline continues with the previous pass's entities.
func (p *Processor) Process(ctx context.Context, text string) (*Result, error) {
	pctx := model.NewPipelineContext(p.cfg)

	protector := &codeProtector{}
	working := text
	if p.cfg.Features.ProtectMarkdownCode {
		working = protector.Protect(text)
	}

	res := normalizer.Normalize(working, normalizer.Options{
		NormalizeUnicode:  p.cfg.Features.NormalizeUnicode,
		UnicodeForm:       norm.NFKC,
		StripZeroWidth:    p.cfg.Features.StripZeroWidth,
		DeobfuscateEmails: p.cfg.Features.DeobfuscateEmails,
		DeobfuscatePhones: p.cfg.Features.DeobfuscatePhones,
	})

	var entities []model.Entity
	var executed []string
	for _, pass := range p.passes {
		if !pass.Enabled(pctx) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := pass.Execute(ctx, res.Text, entities, pctx)
		if err != nil {
			log.Printf("[Pipeline] pass %s failed, skipping: %v", pass.Name(), err)
			continue
		}
		entities = out
		executed = append(executed, pass.Name())
		if p.cfg.Debug {
			log.Printf("[Pipeline] pass %s done, %d entities", pass.Name(), len(entities))
		}
	}

	threshold := p.cfg.AutoAnonymizeThreshold
	if threshold <= 0 {
		threshold = defaultAutoAnonymizeThreshold
	}
	var toReplace []model.Entity
	for i := range entities {
		if entities[i].Confidence >= threshold {
			toReplace = append(toReplace, entities[i])
		} else {
			entities[i].FlaggedForReview = true
		}
	}

	session := NewSession()
	anonymized, rejected := replaceEntities(working, res, toReplace, session)
	if rejected > 0 {
		pctx.Metadata[model.MetaPatternRejected] = rejected
	}
	if p.cfg.Features.ProtectMarkdownCode {
		anonymized = protector.Restore(anonymized)
	}

	docType, _ := pctx.Metadata[model.MetaDocumentType].(string)
	if docType == "" {
		docType = string(passes.DocUnknown)
	}

	return &Result{
		AnonymizedText: anonymized,
		Entities:       entities,
		Mapping: model.MappingFile{
			SchemaVersion: model.MappingSchemaVersion,
			Timestamp:     time.Now().UTC(),
			Model:         p.modelName,
			DocumentType:  docType,
			Passes:        executed,
			Entities:      session.EntityMappings(),
			Addresses:     session.AddressEntries(),
		},
	}, nil
}
