// Package passes contains the detection passes of the anonymization
// pipeline. Passes run in ascending order, each consuming the full output of
// the previous one; the pipeline context metadata map is their only side
// channel.
package passes

import (
	"context"
	"regexp"
	"strings"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// DocumentType is the closed classification set.
type DocumentType string

// Document types.
const (
	DocInvoice  DocumentType = "INVOICE"
	DocLetter   DocumentType = "LETTER"
	DocContract DocumentType = "CONTRACT"
	DocForm     DocumentType = "FORM"
	DocReport   DocumentType = "REPORT"
	DocUnknown  DocumentType = "UNKNOWN"
)

// Zone constants published into entity metadata.
const (
	zoneHeader = "header"
	zoneBody   = "body"
	zoneFooter = "footer"

	headerRatio = 0.15
	footerRatio = 0.85
)

// minRuleConfidence gates the type-specific rule engine: below it the
// document stays UNKNOWN and only zone tagging happens.
const minRuleConfidence = 0.3

type docKeyword struct {
	word   string
	weight float64
}

var docKeywords = map[DocumentType][]docKeyword{
	DocInvoice: {
		{"invoice", 3}, {"facture", 3}, {"rechnung", 3},
		{"total", 1}, {"tva", 2}, {"mwst", 2}, {"vat", 2},
		{"iban", 2}, {"payment", 1}, {"paiement", 1}, {"zahlung", 1},
		{"due date", 2}, {"échéance", 2}, {"fällig", 2},
	},
	DocLetter: {
		{"dear", 3}, {"madame", 2}, {"monsieur", 2}, {"sehr geehrte", 3},
		{"sincerely", 2}, {"cordialement", 2}, {"freundliche grüsse", 2},
		{"yours faithfully", 2}, {"meilleures salutations", 2},
	},
	DocContract: {
		{"agreement", 3}, {"contrat", 3}, {"vertrag", 3},
		{"party", 2}, {"parties", 2}, {"partei", 2},
		{"clause", 2}, {"article", 1}, {"artikel", 1},
		{"hereinafter", 2}, {"ci-après", 2}, {"nachfolgend", 2},
	},
	DocForm: {
		{"form", 3}, {"formulaire", 3}, {"formular", 3},
		{"please fill", 2}, {"veuillez remplir", 2}, {"bitte ausfüllen", 2},
		{"field", 1}, {"champ", 1}, {"feld", 1},
	},
	DocReport: {
		{"report", 3}, {"rapport", 3}, {"bericht", 3},
		{"summary", 2}, {"résumé", 2}, {"zusammenfassung", 2},
		{"analysis", 2}, {"analyse", 2},
	},
}

// Function words used for dominant-language detection.
var langMarkers = map[string][]string{
	"en": {" the ", " and ", " of ", " to ", " with ", " for "},
	"fr": {" le ", " la ", " les ", " de ", " et ", " pour ", " avec ", " vous "},
	"de": {" der ", " die ", " das ", " und ", " für ", " mit ", " sie ", " nicht "},
}

// DocClassificationPass classifies the document, detects the dominant
// language, runs type-specific extractors and tags every entity with a
// position zone plus a small type-and-zone confidence nudge. It runs first
// (order 5) so later passes can read its metadata.
type DocClassificationPass struct{}

// NewDocClassificationPass creates the pass.
func NewDocClassificationPass() *DocClassificationPass {
	return &DocClassificationPass{}
}

// Name implements DetectionPass.
func (p *DocClassificationPass) Name() string { return "document_classification" }

// Order implements DetectionPass.
func (p *DocClassificationPass) Order() int { return 5 }

// Enabled implements DetectionPass.
func (p *DocClassificationPass) Enabled(pctx *model.PipelineContext) bool {
	return pctx.Config.Features.ClassifyDocument
}

// Execute implements DetectionPass.
func (p *DocClassificationPass) Execute(ctx context.Context, text string, entities []model.Entity, pctx *model.PipelineContext) ([]model.Entity, error) {
	docType, confidence := classifyDocument(text)
	lang := detectLanguage(text)
	if pctx.Config.Language != "" {
		lang = pctx.Config.Language
	}
	pctx.Metadata[model.MetaDocumentType] = string(docType)
	pctx.Metadata[model.MetaDocConfidence] = confidence
	pctx.Metadata[model.MetaDocumentLanguage] = lang
	pctx.Language = lang

	if docType != DocUnknown && confidence >= minRuleConfidence {
		extracted := runTypeRules(docType, text)
		entities = append(entities, extracted...)
	}

	for i := range entities {
		zone := positionZone(entities[i].StartPos, len(text))
		if entities[i].Metadata == nil {
			entities[i].Metadata = make(map[string]string)
		}
		entities[i].Metadata["zone"] = zone
		entities[i].Confidence = clamp01(entities[i].Confidence + zoneNudge(docType, entities[i].Type, zone))
	}

	model.SortByPosition(entities)
	return entities, nil
}

// classifyDocument scores each type by weighted keyword hits and normalizes
// against the achievable maximum.
func classifyDocument(text string) (DocumentType, float64) {
	lower := strings.ToLower(text)
	best := DocUnknown
	bestScore := 0.0
	for docType, keywords := range docKeywords {
		score := 0.0
		max := 0.0
		for _, kw := range keywords {
			max += kw.weight
			if strings.Contains(lower, kw.word) {
				score += kw.weight
			}
		}
		norm := score / max
		if norm > bestScore {
			bestScore = norm
			best = docType
		}
	}
	if bestScore < 0.1 {
		return DocUnknown, bestScore
	}
	return best, bestScore
}

// detectLanguage picks the language whose function words occur most often.
func detectLanguage(text string) string {
	lower := " " + strings.ToLower(text) + " "
	best := "en"
	bestCount := 0
	for lang, markers := range langMarkers {
		count := 0
		for _, m := range markers {
			count += strings.Count(lower, m)
		}
		if count > bestCount || (count == bestCount && lang < best) {
			bestCount = count
			best = lang
		}
	}
	return best
}

func positionZone(offset, docLen int) string {
	if docLen == 0 {
		return zoneBody
	}
	ratio := float64(offset) / float64(docLen)
	switch {
	case ratio < headerRatio:
		return zoneHeader
	case ratio > footerRatio:
		return zoneFooter
	default:
		return zoneBody
	}
}

// zoneNudge returns the small type-and-zone-specific confidence adjustment.
func zoneNudge(docType DocumentType, typ model.EntityType, zone string) float64 {
	switch {
	case docType == DocInvoice && typ == model.TypeInvoiceNumber && zone == zoneHeader:
		return 0.1
	case docType == DocInvoice && (typ == model.TypeIBAN || typ == model.TypePaymentRef) && zone == zoneFooter:
		return 0.05
	case docType == DocLetter && typ == model.TypeSignature && zone == zoneFooter:
		return 0.1
	case docType == DocLetter && typ == model.TypeSalutation && zone != zoneFooter:
		return 0.05
	case typ.IsAddressFamily() && zone == zoneHeader:
		return 0.05
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// --- type-specific rule engines ---

var (
	invoiceNumberRe = regexp.MustCompile(`(?i)(?:invoice|facture|rechnung)\s*(?:no|nr|n°|#)?\s*[:.]?\s*([A-Z0-9][A-Z0-9\-/]{2,19})`)
	salutationRe    = regexp.MustCompile(`(?im)^(?:dear|chère|cher|madame|monsieur|sehr geehrte[rs]?)\s+(?:(?:mr|mrs|ms|dr|m|mme|herr|frau)\.?\s+)?\p{Lu}[\p{L}'\-]+(?:\s+\p{Lu}[\p{L}'\-]+)?`)
	signatureRe     = regexp.MustCompile(`(?m)^(?:\p{Lu}[\p{L}'\-]+\s+\p{Lu}[\p{L}'\-]+)\s*$`)
	referenceLineRe = regexp.MustCompile(`(?im)^(?:ref|référence|referenz|betreff|objet|re)\s*[:.]\s*.{3,80}$`)
	contractPartyRe = regexp.MustCompile(`(?i)(?:between|entre|zwischen)\s+(\p{Lu}[\p{L}'\-]+(?:\s+\p{Lu}[\p{L}'.\-]+){0,4})`)
)

// runTypeRules runs additional targeted extractors for the classified type.
// Amounts stay gated behind the DetectAmounts feature flag: amounts are not
// PII by default.
func runTypeRules(docType DocumentType, text string) []model.Entity {
	var out []model.Entity
	switch docType {
	case DocInvoice, DocForm:
		for _, m := range invoiceNumberRe.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			out = append(out, model.NewEntity(
				model.TypeInvoiceNumber, text[start:end], start, end, 0.85, model.SourceRule))
		}
	case DocLetter:
		for _, loc := range salutationRe.FindAllStringIndex(text, -1) {
			out = append(out, model.NewEntity(
				model.TypeSalutation, text[loc[0]:loc[1]], loc[0], loc[1], 0.8, model.SourceRule))
		}
		for _, loc := range referenceLineRe.FindAllStringIndex(text, -1) {
			out = append(out, model.NewEntity(
				model.TypeReferenceLine, text[loc[0]:loc[1]], loc[0], loc[1], 0.7, model.SourceRule))
		}
		// Signatures only count in the footer zone.
		for _, loc := range signatureRe.FindAllStringIndex(text, -1) {
			if positionZone(loc[0], len(text)) == zoneFooter {
				out = append(out, model.NewEntity(
					model.TypeSignature, text[loc[0]:loc[1]], loc[0], loc[1], 0.65, model.SourceRule))
			}
		}
	case DocContract:
		for _, m := range contractPartyRe.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			out = append(out, model.NewEntity(
				model.TypeContractParty, text[start:end], start, end, 0.7, model.SourceRule))
		}
	}
	return out
}
