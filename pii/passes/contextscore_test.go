package passes

import (
	"context"
	"strings"
	"testing"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

func TestContextScoreStaysInBounds(t *testing.T) {
	p := NewContextScoringPass()
	text := "IBAN: CH93 0076 2011 6238 5295 7 for account payments"
	e := model.NewEntity(model.TypeIBAN, "CH93 0076 2011 6238 5295 7", 6, 32, 0.9, model.SourceRule)

	out, err := p.Execute(context.Background(), text, []model.Entity{e}, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	got := out[0]
	if got.Context == nil {
		t.Fatal("context info not attached")
	}
	if got.Context.Score < 0 || got.Context.Score > 1 {
		t.Errorf("score %f out of [0,1]", got.Context.Score)
	}
	if got.Confidence < 0 || got.Confidence > 1 {
		t.Errorf("confidence %f out of [0,1]", got.Confidence)
	}
}

func TestContextKeywordRaisesScore(t *testing.T) {
	p := NewContextScoringPass()
	withKeyword := "IBAN: CH93 0076 2011 6238 5295 7"
	without := "xxxxx CH93 0076 2011 6238 5295 7"
	e := model.NewEntity(model.TypeIBAN, "CH93 0076 2011 6238 5295 7", 6, 32, 0.9, model.SourceRule)

	a, err := p.Execute(context.Background(), withKeyword, []model.Entity{e}, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Execute(context.Background(), without, []model.Entity{e}, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	if a[0].Context.Score <= b[0].Context.Score {
		t.Errorf("keyword score %f not above baseline %f",
			a[0].Context.Score, b[0].Context.Score)
	}
}

func TestContextRelatedTypeNearby(t *testing.T) {
	p := NewContextScoringPass()
	text := "Jean Dupont, jean.dupont@mail.ch"
	person := model.NewEntity(model.TypePerson, "Jean Dupont", 0, 11, 0.8, model.SourceML)
	email := model.NewEntity(model.TypeEmail, "jean.dupont@mail.ch", 13, 32, 0.95, model.SourceRule)

	out, err := p.Execute(context.Background(), text, []model.Entity{person, email}, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range out[0].Context.Factors {
		if f == "related_type" {
			found = true
		}
	}
	if !found {
		t.Errorf("person next to email should carry related_type factor, got %v",
			out[0].Context.Factors)
	}
}

func TestContextLowConfidenceFlagsReview(t *testing.T) {
	p := NewContextScoringPass()
	text := strings.Repeat("x", 200) + " Maybe " + strings.Repeat("x", 200)
	e := model.NewEntity(model.TypePerson, "Maybe", 201, 206, 0.3, model.SourceML)

	out, err := p.Execute(context.Background(), text, []model.Entity{e}, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	if !out[0].FlaggedForReview {
		t.Errorf("confidence %f below review threshold must flag", out[0].Confidence)
	}
}

func TestPositionPlausibilityPenalizesMargins(t *testing.T) {
	tests := []struct {
		name string
		typ  model.EntityType
		zone string
		want float64
	}{
		{"iban header", model.TypeIBAN, zoneHeader, 0.2},
		{"iban footer", model.TypeIBAN, zoneFooter, 0.3},
		{"iban body", model.TypeIBAN, zoneBody, 0.6},
		{"avs header", model.TypeSwissAVS, zoneHeader, 0.2},
		{"avs footer", model.TypeSwissAVS, zoneFooter, 0.3},
		{"payment ref footer", model.TypePaymentRef, zoneFooter, 1.0},
		{"signature footer", model.TypeSignature, zoneFooter, 1.0},
		{"phone header", model.TypePhone, zoneHeader, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := positionPlausibility(tt.typ, tt.zone); got != tt.want {
				t.Errorf("positionPlausibility(%s, %s) = %f, want %f",
					tt.typ, tt.zone, got, tt.want)
			}
		})
	}
}

func TestContextRuntimeBoostCapped(t *testing.T) {
	p := NewContextScoringPass()
	pctx := testPipelineContext()
	pctx.Config.Runtime = model.RuntimeContext{
		ColumnHeaders: []string{"email address", "e-mail", "mail"},
		RegionHints:   []model.RegionHint{{StartPos: 0, EndPos: 50, Type: model.TypeEmail}},
		ContextWords:  []string{"contact"},
	}
	text := "contact jean.dupont@mail.ch"
	e := model.NewEntity(model.TypeEmail, "jean.dupont@mail.ch", 8, 27, 0.9, model.SourceRule)

	boost := p.runtimeBoost(text, &e, pctx)
	if boost > maxRuntimeBoost {
		t.Errorf("boost %f exceeds cap %f", boost, maxRuntimeBoost)
	}
	if boost != maxRuntimeBoost {
		t.Errorf("stacked boosts should hit the cap, got %f", boost)
	}
}
