package pii

import "github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"

// PIIPatterns defines the rule library: regex patterns per entity type, tuned
// for Swiss/EU identifiers. Phone patterns enumerate separator variants
// themselves because the normalizer deliberately does not collapse phone
// separators (offset fidelity).
var PIIPatterns = map[model.EntityType][]string{
	model.TypeSwissAVS: {
		`\b756[.\- ]?\d{4}[.\- ]?\d{4}[.\- ]?\d{2}\b`,
	},
	model.TypeIBAN: {
		`\b[A-Z]{2}\d{2}(?:[ ]?[A-Z0-9]{4}){3,7}(?:[ ]?[A-Z0-9]{1,3})?\b`,
	},
	model.TypeEmail: {
		`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
	},
	model.TypePhone: {
		// International form with CH/FR/DE/IT/AT country codes.
		`(?:\+|00)(?:41|33|49|39|43)[ .\-/]?(?:\(0\)[ .\-/]?)?\d(?:[ .\-/]?\d){7,10}\b`,
		// Swiss national form 0XX XXX XX XX with common separators.
		`\b0\d{2}[ .\-/]?\d{3}[ .\-/]?\d{2}[ .\-/]?\d{2}\b`,
		// French national form 0X XX XX XX XX.
		`\b0[1-9](?:[ .\-]?\d{2}){4}\b`,
	},
	model.TypeDate: {
		`\b\d{1,2}[./]\d{1,2}[./](?:19|20)?\d{2}\b`,
		`\b(?:19|20)\d{2}-\d{2}-\d{2}\b`,
		`(?i)\b\d{1,2}(?:er|\.)?\s+(?:janvier|février|fevrier|mars|avril|mai|juin|juillet|août|aout|septembre|octobre|novembre|décembre|decembre|january|february|march|april|may|june|july|august|september|october|november|december|januar|februar|märz|maerz|april|juni|juli|oktober|dezember)\s+(?:19|20)\d{2}\b`,
	},
	model.TypeVATNumber: {
		`\bCHE[ \-.]?\d{3}[ .]?\d{3}[ .]?\d{3}(?:[ ]?(?:MWST|TVA|IVA|VAT))?\b`,
		`\b(?:DE|AT U|ATU)\d{8,9}\b`,
		`\bFR[ ]?[0-9A-Z]{2}[ ]?\d{9}\b`,
	},
	model.TypePaymentRef: {
		// ISO 11649 creditor reference.
		`\bRF\d{2}(?:[ ]?[A-Z0-9]{1,4}){1,6}\b`,
		// Swiss QR reference, 27 digits plain or in 2+5x5 groups.
		`\b\d{2}(?:[ ]\d{5}){5}\b`,
		`\b\d{27}\b`,
	},
	model.TypeLocation: {
		// Swiss postal code with locality.
		`\b(?:CH[\- ])?[1-9]\d{3}[ ]\p{Lu}[\p{L}'.\- ]{2,40}`,
		// German/French five-digit postal code with locality.
		`\b(?:D[\- ]|F[\- ])?\d{5}[ ]\p{Lu}[\p{L}'.\- ]{2,40}`,
	},
	model.TypeAddress: {
		// Romandie street forms: "Rue de Lausanne 12", "Av. des Alpes 3b".
		`(?i)\b(?:rue|avenue|av\.|chemin|ch\.|route|rte|place|pl\.|boulevard|bd|quai|impasse)\s+(?:de\s+la\s+|de\s+l'|de\s+|du\s+|des\s+|d')?\p{Lu}[\p{L}'\-]+(?:\s+\p{Lu}[\p{L}'\-]+)*\s+\d{1,4}[a-z]?\b`,
		// German street forms: "Bahnhofstrasse 10", "Lindenweg 4a".
		`\b\p{Lu}[\p{L}]+(?:strasse|straße|weg|gasse|platz|allee|ring)\s+\d{1,4}[a-z]?\b`,
	},
	model.TypeAmount: {
		`\b(?:CHF|EUR|Fr\.)\s?\d{1,3}(?:['’\x60.,]\d{3})*(?:[.,]\d{2})?\b`,
		`€\s?\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?\b`,
	},
}

// ruleConfidence is the base confidence assigned to rule matches per type;
// validation and context passes adjust it afterwards.
var ruleConfidence = map[model.EntityType]float64{
	model.TypeSwissAVS:   0.95,
	model.TypeIBAN:       0.90,
	model.TypeEmail:      0.95,
	model.TypePhone:      0.75,
	model.TypeDate:       0.65,
	model.TypeVATNumber:  0.90,
	model.TypePaymentRef: 0.85,
	model.TypeLocation:   0.60,
	model.TypeAddress:    0.70,
	model.TypeAmount:     0.60,
}
