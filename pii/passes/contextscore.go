package passes

import (
	"context"
	"strings"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// Factor weights; they sum to 1 so the combined score stays in [0,1].
const (
	weightKeyword    = 0.40
	weightRelated    = 0.25
	weightPosition   = 0.20
	weightRepetition = 0.15

	// Runtime-context boosts are additive on the score and capped.
	maxRuntimeBoost = 0.5

	defaultContextWindow = 60
)

// Label keywords that, when present immediately before an entity, support
// its type. Multi-language by construction.
var labelKeywords = map[model.EntityType][]string{
	model.TypePerson:        {"name", "nom", "prénom", "vorname", "nachname", "contact", "attn", "z.hd"},
	model.TypeOrganization:  {"company", "société", "firma", "employer", "employeur", "arbeitgeber"},
	model.TypeEmail:         {"email", "e-mail", "mail", "courriel"},
	model.TypePhone:         {"phone", "tel", "tél", "telefon", "téléphone", "mobile", "natel", "fax"},
	model.TypeIBAN:          {"iban", "account", "compte", "konto", "bank", "banque"},
	model.TypeSwissAVS:      {"avs", "ahv", "assurance", "versicherung", "social"},
	model.TypeDate:          {"date", "datum", "le", "am", "born", "né", "geboren"},
	model.TypeVATNumber:     {"vat", "tva", "mwst", "uid", "tax", "impôt", "steuer"},
	model.TypeInvoiceNumber: {"invoice", "facture", "rechnung", "no", "nr", "n°"},
	model.TypePaymentRef:    {"reference", "référence", "referenz", "ref"},
	model.TypeAmount:        {"total", "amount", "montant", "betrag", "chf", "eur"},
	model.TypeAddress:       {"address", "adresse", "domicile", "wohnort", "rue", "strasse"},
	model.TypeLocation:      {"city", "ville", "ort", "lieu", "canton"},
}

// relatedTypes is the fixed type-adjacency table: finding a related type
// near an entity supports both.
var relatedTypes = map[model.EntityType][]model.EntityType{
	model.TypePerson:       {model.TypePhone, model.TypeEmail, model.TypeAddress, model.TypeSwissAddress, model.TypeEUAddress, model.TypeDate},
	model.TypeOrganization: {model.TypeVATNumber, model.TypeIBAN, model.TypeAddress, model.TypePhone},
	model.TypeEmail:        {model.TypePerson, model.TypePhone},
	model.TypePhone:        {model.TypePerson, model.TypeEmail, model.TypeAddress},
	model.TypeIBAN:         {model.TypeOrganization, model.TypeAmount, model.TypePaymentRef},
	model.TypeSwissAVS:     {model.TypePerson, model.TypeDate},
	model.TypeAddress:      {model.TypePerson, model.TypeOrganization, model.TypePhone},
	model.TypePaymentRef:   {model.TypeIBAN, model.TypeAmount, model.TypeInvoiceNumber},
}

// positionPlausibility scores where in the document a type is expected:
// addresses and phones belong to headers, signatures and payment references
// to footers. Account identifiers (AVS, IBAN) are penalized in both margins;
// the invoice-specific footer adjustment in the classification pass handles
// the legitimate payment-slip case.
func positionPlausibility(typ model.EntityType, zone string) float64 {
	switch zone {
	case zoneHeader:
		switch {
		case typ.IsAddressFamily(), typ == model.TypePhone, typ == model.TypeEmail,
			typ == model.TypeOrganization, typ == model.TypeInvoiceNumber:
			return 1.0
		case typ == model.TypeSwissAVS, typ == model.TypeIBAN:
			return 0.2
		}
	case zoneFooter:
		switch {
		case typ == model.TypeSignature, typ == model.TypePaymentRef:
			return 1.0
		case typ == model.TypeSwissAVS, typ == model.TypeIBAN:
			return 0.3
		}
	}
	return 0.6
}

// ContextScoringPass (order 30) computes a context score per entity from
// keyword, related-type, position and repetition factors, then folds it into
// the confidence. Runtime-supplied context adds bounded boosts on top of the
// base tables without modifying them.
type ContextScoringPass struct{}

// NewContextScoringPass creates the pass.
func NewContextScoringPass() *ContextScoringPass {
	return &ContextScoringPass{}
}

// Name implements DetectionPass.
func (p *ContextScoringPass) Name() string { return "context_scoring" }

// Order implements DetectionPass.
func (p *ContextScoringPass) Order() int { return 30 }

// Enabled implements DetectionPass.
func (p *ContextScoringPass) Enabled(pctx *model.PipelineContext) bool {
	return pctx.Config.Features.ScoreContext
}

// Execute scores every entity. Final confidence is
// min(1, confidence × (0.7 + 0.6 × score)): a zero score dampens, a high
// score rewards, and the factor never exceeds 1.3.
func (p *ContextScoringPass) Execute(ctx context.Context, text string, entities []model.Entity, pctx *model.PipelineContext) ([]model.Entity, error) {
	window := pctx.Config.ContextWindowSize
	if window <= 0 {
		window = defaultContextWindow
	}

	repetitions := countRepetitions(entities)
	boostsApplied := 0

	for i := range entities {
		e := &entities[i]
		var factors []string
		score := 0.0

		if keywordBefore(text, e, window) {
			score += weightKeyword
			factors = append(factors, "label_keyword")
		}
		if relatedNearby(entities, i, window) {
			score += weightRelated
			factors = append(factors, "related_type")
		}

		zone := e.Metadata["zone"]
		if zone == "" {
			zone = positionZone(e.StartPos, len(text))
		}
		score += weightPosition * positionPlausibility(e.Type, zone)
		factors = append(factors, "position_"+zone)

		if repetitions[repetitionKey(*e)] > 1 {
			score += weightRepetition
			factors = append(factors, "repeated_mention")
		}

		if boost := p.runtimeBoost(text, e, pctx); boost > 0 {
			score = clamp01(score + boost)
			factors = append(factors, "runtime_context")
			boostsApplied++
		}

		e.Context = &model.ContextInfo{Score: score, Factors: factors}
		e.Confidence = clamp01(e.Confidence * (0.7 + 0.6*score))
		if e.Confidence < pctx.Config.ReviewThreshold {
			e.FlaggedForReview = true
		}
	}

	if boostsApplied > 0 {
		pctx.Metadata[model.MetaContextBoosts] = boostsApplied
	}
	return entities, nil
}

// runtimeBoost layers caller-supplied context: column headers matching the
// entity's label keywords, region hints naming the entity's type, and ad hoc
// context words near the entity. The sum is capped at maxRuntimeBoost.
func (p *ContextScoringPass) runtimeBoost(text string, e *model.Entity, pctx *model.PipelineContext) float64 {
	rt := pctx.Config.Runtime
	boost := 0.0

	if len(rt.ColumnHeaders) > 0 {
		keywords := labelKeywords[e.Type]
		for _, header := range rt.ColumnHeaders {
			h := strings.ToLower(header)
			for _, kw := range keywords {
				if strings.Contains(h, kw) {
					boost += 0.2
					break
				}
			}
		}
	}
	for _, hint := range rt.RegionHints {
		if hint.Type == e.Type && e.OverlapsRange(hint.StartPos, hint.EndPos) {
			boost += 0.3
		}
	}
	if len(rt.ContextWords) > 0 {
		before := windowBefore(text, e.StartPos, defaultContextWindow)
		for _, w := range rt.ContextWords {
			if w != "" && strings.Contains(before, strings.ToLower(w)) {
				boost += 0.1
			}
		}
	}

	if boost > maxRuntimeBoost {
		boost = maxRuntimeBoost
	}
	return boost
}

func windowBefore(text string, pos, window int) string {
	from := pos - window
	if from < 0 {
		from = 0
	}
	if pos > len(text) {
		pos = len(text)
	}
	return strings.ToLower(text[from:pos])
}

// keywordBefore reports whether a type-specific label keyword occurs in the
// window immediately preceding the entity.
func keywordBefore(text string, e *model.Entity, window int) bool {
	before := windowBefore(text, e.StartPos, window)
	for _, kw := range labelKeywords[e.Type] {
		if strings.Contains(before, kw) {
			return true
		}
	}
	return false
}

// relatedNearby reports whether an entity of a related type sits within the
// window on either side.
func relatedNearby(entities []model.Entity, idx int, window int) bool {
	e := entities[idx]
	related := relatedTypes[e.Type]
	if len(related) == 0 {
		return false
	}
	for j, other := range entities {
		if j == idx {
			continue
		}
		gap := other.StartPos - e.EndPos
		if other.EndPos < e.StartPos {
			gap = e.StartPos - other.EndPos
		}
		if gap > window {
			continue
		}
		for _, rt := range related {
			if other.Type == rt {
				return true
			}
		}
	}
	return false
}

func repetitionKey(e model.Entity) string {
	return string(e.Type) + "\x00" + strings.ToLower(e.Text)
}

func countRepetitions(entities []model.Entity) map[string]int {
	counts := make(map[string]int, len(entities))
	for _, e := range entities {
		counts[repetitionKey(e)]++
	}
	return counts
}
