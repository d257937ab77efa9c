package passes

import (
	"context"
	"testing"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

func testPipelineContext() *model.PipelineContext {
	return model.NewPipelineContext(model.PipelineConfig{
		ReviewThreshold: 0.35,
		Features: model.Features{
			ClassifyDocument: true,
			ScoreContext:     true,
			GroupAddresses:   true,
		},
	})
}

func TestValidationBoostsValidEntities(t *testing.T) {
	p := NewValidationPass()
	entities := []model.Entity{
		model.NewEntity(model.TypeIBAN, "CH93 0076 2011 6238 5295 7", 0, 26, 0.8, model.SourceRule),
	}

	out, err := p.Execute(context.Background(), "", entities, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	e := out[0]
	if e.Validation == nil || e.Validation.Status != model.ValidationValid {
		t.Fatalf("validation = %+v, want valid", e.Validation)
	}
	want := 0.8 * 1.15
	if e.Confidence < want-0.001 || e.Confidence > want+0.001 {
		t.Errorf("confidence = %f, want %f", e.Confidence, want)
	}
}

func TestValidationCapsInvalidEntities(t *testing.T) {
	p := NewValidationPass()
	entities := []model.Entity{
		model.NewEntity(model.TypeSwissAVS, "756.9217.0769.84", 0, 16, 0.95, model.SourceRule),
	}

	out, err := p.Execute(context.Background(), "", entities, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	e := out[0]
	if e.Validation == nil || e.Validation.Status != model.ValidationInvalid {
		t.Fatalf("validation = %+v, want invalid", e.Validation)
	}
	// Reduced, never discarded.
	if len(out) != 1 {
		t.Fatal("invalid entity must survive")
	}
	if e.Confidence != 0.3 {
		t.Errorf("confidence = %f, want ceiling 0.3", e.Confidence)
	}
}

func TestValidationIdempotent(t *testing.T) {
	p := NewValidationPass()
	entities := []model.Entity{
		model.NewEntity(model.TypeIBAN, "CH93 0076 2011 6238 5295 7", 0, 26, 0.8, model.SourceRule),
	}
	pctx := testPipelineContext()

	once, err := p.Execute(context.Background(), "", entities, pctx)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := p.Execute(context.Background(), "", once, pctx)
	if err != nil {
		t.Fatal(err)
	}
	if twice[0].Confidence != once[0].Confidence {
		t.Errorf("second run changed confidence: %f -> %f",
			once[0].Confidence, twice[0].Confidence)
	}
}

func TestValidationUncheckedWithoutValidator(t *testing.T) {
	p := NewValidationPass()
	entities := []model.Entity{
		model.NewEntity(model.TypePerson, "Jean Dupont", 0, 11, 0.8, model.SourceML),
	}

	out, err := p.Execute(context.Background(), "", entities, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Validation == nil || out[0].Validation.Status != model.ValidationUnchecked {
		t.Errorf("validation = %+v, want unchecked", out[0].Validation)
	}
	if out[0].Confidence != 0.8 {
		t.Errorf("confidence changed for unvalidatable type: %f", out[0].Confidence)
	}
}
