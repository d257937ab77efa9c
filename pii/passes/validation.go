package passes

import (
	"context"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// ValidationPass (order 20) runs per-type format validators. It only touches
// confidence and validation metadata, never spans or text, and is idempotent:
// entities already carrying a checked validation status are skipped on
// re-entry, so the confidence adjustment is applied exactly once.
type ValidationPass struct {
	validators map[model.EntityType]FormatValidator
}

// NewValidationPass creates the pass with the default validator set.
func NewValidationPass() *ValidationPass {
	return &ValidationPass{
		validators: map[model.EntityType]FormatValidator{
			model.TypeIBAN:       ibanValidator{},
			model.TypeSwissAVS:   avsValidator{},
			model.TypeVATNumber:  vatValidator{},
			model.TypePaymentRef: paymentRefValidator{},
			model.TypeEmail:      emailValidator{},
			model.TypePhone:      phoneValidator{},
		},
	}
}

// Name implements DetectionPass.
func (p *ValidationPass) Name() string { return "format_validation" }

// Order implements DetectionPass.
func (p *ValidationPass) Order() int { return 20 }

// Enabled implements DetectionPass.
func (p *ValidationPass) Enabled(pctx *model.PipelineContext) bool { return true }

// Execute validates each entity that has a validator for its type.
func (p *ValidationPass) Execute(ctx context.Context, text string, entities []model.Entity, pctx *model.PipelineContext) ([]model.Entity, error) {
	for i := range entities {
		e := &entities[i]
		validator, ok := p.validators[e.Type]
		if !ok {
			if e.Validation == nil {
				e.Validation = &model.ValidationInfo{Status: model.ValidationUnchecked}
			}
			continue
		}
		if e.Validation != nil && e.Validation.Status != model.ValidationUnchecked {
			// Already validated in a previous run; idempotent re-entry.
			continue
		}

		valid, reason := validator.Validate(e.Text)
		if valid {
			e.Validation = &model.ValidationInfo{Status: model.ValidationValid, Reason: reason}
			e.Confidence = clamp01(e.Confidence * validator.ValidBoost())
		} else {
			e.Validation = &model.ValidationInfo{Status: model.ValidationInvalid, Reason: reason}
			// Reduced, never discarded: a reviewer or later pass may still
			// want to see it.
			if e.Confidence > validator.InvalidCeiling() {
				e.Confidence = validator.InvalidCeiling()
			}
		}
	}
	return entities, nil
}
