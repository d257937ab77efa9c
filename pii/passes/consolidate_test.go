package passes

import (
	"context"
	"testing"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

func TestConsolidateResolvesOverlapByConfidence(t *testing.T) {
	p := NewConsolidationPass()
	low := model.NewEntity(model.TypePerson, "Jean", 0, 4, 0.6, model.SourceML)
	high := model.NewEntity(model.TypePerson, "Jean Dupont", 0, 11, 0.9, model.SourceRule)

	out, err := p.Execute(context.Background(), "", []model.Entity{low, high}, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d entities, want 1", len(out))
	}
	if out[0].Text != "Jean Dupont" {
		t.Errorf("winner = %q, want higher-confidence entity", out[0].Text)
	}
	if out[0].Source != model.SourceConsolidated {
		t.Errorf("source = %s, want CONSOLIDATED", out[0].Source)
	}
}

func TestConsolidateTiesPreferLongerSpan(t *testing.T) {
	a := model.NewEntity(model.TypePerson, "Jean", 0, 4, 0.8, model.SourceML)
	b := model.NewEntity(model.TypePerson, "Jean Dupont", 0, 11, 0.8, model.SourceML)

	winner, _ := pickWinner(a, b)
	if winner.Text != "Jean Dupont" {
		t.Errorf("winner = %q, want longer span", winner.Text)
	}
}

func TestConsolidateTiesPreferSpecificType(t *testing.T) {
	generic := model.NewEntity(model.TypeUnknown, "756.9217.0769.85", 0, 16, 0.8, model.SourceML)
	specific := model.NewEntity(model.TypeSwissAVS, "756.9217.0769.85", 0, 16, 0.8, model.SourceRule)

	winner, _ := pickWinner(generic, specific)
	if winner.Type != model.TypeSwissAVS {
		t.Errorf("winner type = %s, want SWISS_AVS", winner.Type)
	}
}

func TestConsolidateAssignsLogicalIDs(t *testing.T) {
	p := NewConsolidationPass()
	pctx := testPipelineContext()
	pctx.Config.Features.UseLogicalIdentities = true

	entities := []model.Entity{
		model.NewEntity(model.TypeSwissAVS, "756.9217.0769.85", 0, 16, 0.9, model.SourceRule),
		model.NewEntity(model.TypeSwissAVS, "756 9217 0769 85", 40, 56, 0.9, model.SourceRule),
		model.NewEntity(model.TypePerson, "Jean Dupont", 80, 91, 0.8, model.SourceML),
	}

	out, err := p.Execute(context.Background(), "", entities, pctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d entities, want 3", len(out))
	}
	// Formatting variants of one value share a logical identity.
	if out[0].LogicalID == "" || out[0].LogicalID != out[1].LogicalID {
		t.Errorf("AVS variants have IDs %q and %q, want equal",
			out[0].LogicalID, out[1].LogicalID)
	}
	if out[2].LogicalID == out[0].LogicalID {
		t.Error("distinct values must not share a logical identity")
	}
	if got := pctx.Metadata[model.MetaLogicalIdentities]; got != 2 {
		t.Errorf("logical identity count = %v, want 2", got)
	}
}

func TestConsolidatePublishesDropCount(t *testing.T) {
	p := NewConsolidationPass()
	pctx := testPipelineContext()
	entities := []model.Entity{
		model.NewEntity(model.TypePerson, "Jean", 0, 4, 0.6, model.SourceML),
		model.NewEntity(model.TypePerson, "Jean Dupont", 0, 11, 0.9, model.SourceRule),
	}

	_, err := p.Execute(context.Background(), "", entities, pctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := pctx.Metadata[model.MetaConsolidated]; got != 1 {
		t.Errorf("consolidated count = %v, want 1", got)
	}
}
