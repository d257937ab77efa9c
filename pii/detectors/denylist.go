package pii

import (
	"strings"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// DenyList suppresses known non-PII matches by language and type. Lookups
// are exact on the normalized (lower-cased, trimmed) entity text.
type DenyList struct {
	global map[model.EntityType]map[string]bool
	byLang map[string]map[model.EntityType]map[string]bool
}

// NewDenyList builds the default deny list: salutation words and common
// document vocabulary the ML model keeps misreading as names or places.
func NewDenyList() *DenyList {
	d := &DenyList{
		global: make(map[model.EntityType]map[string]bool),
		byLang: make(map[string]map[model.EntityType]map[string]bool),
	}
	d.add("", model.TypePerson, "monsieur", "madame", "mademoiselle", "herr", "frau", "mr", "mrs", "ms", "dr")
	d.add("en", model.TypePerson, "dear", "sincerely", "regards", "invoice", "total")
	d.add("fr", model.TypePerson, "cher", "chère", "cordialement", "salutations", "facture")
	d.add("de", model.TypePerson, "sehr", "geehrte", "geehrter", "freundliche", "grüsse", "rechnung")
	d.add("", model.TypeOrganization, "sa", "ag", "gmbh", "sàrl", "sarl", "total", "iban")
	d.add("", model.TypeLocation, "suisse", "schweiz", "switzerland", "europe", "total")
	return d
}

func (d *DenyList) add(lang string, typ model.EntityType, words ...string) {
	target := d.global
	if lang != "" {
		if d.byLang[lang] == nil {
			d.byLang[lang] = make(map[model.EntityType]map[string]bool)
		}
		target = d.byLang[lang]
	}
	if target[typ] == nil {
		target[typ] = make(map[string]bool)
	}
	for _, w := range words {
		target[typ][w] = true
	}
}

// Denied reports whether an entity's text is on the list for its type, in
// either the global or the language-scoped table.
func (d *DenyList) Denied(e model.Entity, lang string) bool {
	key := strings.ToLower(strings.TrimSpace(e.Text))
	if d.global[e.Type][key] {
		return true
	}
	if byType, ok := d.byLang[lang]; ok && byType[e.Type][key] {
		return true
	}
	return false
}

// Filter removes denied entities and returns the survivors with the number
// filtered. Counts go to pipeline metadata; drops are never silent.
func (d *DenyList) Filter(entities []model.Entity, lang string) ([]model.Entity, int) {
	kept := entities[:0]
	removed := 0
	for _, e := range entities {
		if d.Denied(e, lang) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}
