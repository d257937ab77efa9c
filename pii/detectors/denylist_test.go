package pii

import (
	"testing"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

func TestDenyListFilter(t *testing.T) {
	d := NewDenyList()
	entities := []model.Entity{
		model.NewEntity(model.TypePerson, "Monsieur", 0, 8, 0.8, model.SourceML),
		model.NewEntity(model.TypePerson, "Jean Dupont", 9, 20, 0.9, model.SourceML),
		model.NewEntity(model.TypeOrganization, "GmbH", 21, 25, 0.7, model.SourceML),
		model.NewEntity(model.TypeLocation, "Suisse", 26, 32, 0.6, model.SourceML),
	}

	kept, removed := d.Filter(entities, "fr")
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	if len(kept) != 1 || kept[0].Text != "Jean Dupont" {
		t.Fatalf("kept = %+v, want only Jean Dupont", kept)
	}
}

func TestDenyListLanguageScoped(t *testing.T) {
	d := NewDenyList()
	facture := model.NewEntity(model.TypePerson, "Facture", 0, 7, 0.8, model.SourceML)

	if !d.Denied(facture, "fr") {
		t.Error("facture should be denied for fr")
	}
	if d.Denied(facture, "de") {
		t.Error("facture should not be denied for de")
	}
}

func TestDenyListTypeScoped(t *testing.T) {
	d := NewDenyList()
	// "suisse" is denied as a location, not as a person name.
	loc := model.NewEntity(model.TypeLocation, "Suisse", 0, 6, 0.8, model.SourceML)
	per := model.NewEntity(model.TypePerson, "Suisse", 0, 6, 0.8, model.SourceML)
	if !d.Denied(loc, "en") {
		t.Error("Suisse should be denied as LOCATION")
	}
	if d.Denied(per, "en") {
		t.Error("Suisse should not be denied as PERSON")
	}
}
