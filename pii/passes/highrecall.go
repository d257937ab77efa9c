package passes

import (
	"context"
	"log"

	detectors "github.com/ch8ri0s/PII-Anonymizer-sub009/pii/detectors"
	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// HighRecallPass fuses the ML adapter with the rule library (order 10).
// Recall is the goal here; later passes prune the false positives. Either
// detector may be nil: a missing ML adapter is a valid rule-only mode, and a
// failing one degrades the same way.
type HighRecallPass struct {
	mlDetector   detectors.Detector
	ruleDetector detectors.Detector
	denyList     *detectors.DenyList
}

// NewHighRecallPass creates the pass. mlDetector may be nil.
func NewHighRecallPass(mlDetector, ruleDetector detectors.Detector, denyList *detectors.DenyList) *HighRecallPass {
	if denyList == nil {
		denyList = detectors.NewDenyList()
	}
	return &HighRecallPass{
		mlDetector:   mlDetector,
		ruleDetector: ruleDetector,
		denyList:     denyList,
	}
}

// Name implements DetectionPass.
func (p *HighRecallPass) Name() string { return "high_recall" }

// Order implements DetectionPass.
func (p *HighRecallPass) Order() int { return 10 }

// Enabled implements DetectionPass.
func (p *HighRecallPass) Enabled(pctx *model.PipelineContext) bool { return true }

// Execute runs both detector families, merges overlapping detections and
// applies the deny list.
func (p *HighRecallPass) Execute(ctx context.Context, text string, entities []model.Entity, pctx *model.PipelineContext) ([]model.Entity, error) {
	input := detectors.DetectorInput{Text: text, Language: pctx.Language}

	var mlEntities []model.Entity
	if p.mlDetector != nil {
		out, err := p.mlDetector.Detect(ctx, input)
		if err != nil {
			// Degrade to rule-only; never raise past this pass.
			log.Printf("[HighRecall] ML detection failed, continuing rule-only: %v", err)
		} else {
			mlEntities = out.Entities
		}
	}

	var ruleEntities []model.Entity
	if p.ruleDetector != nil {
		out, err := p.ruleDetector.Detect(ctx, input)
		if err != nil {
			log.Printf("[HighRecall] rule detection failed: %v", err)
		} else {
			ruleEntities = out.Entities
		}
	}

	merged := mergeDetections(text, mlEntities, ruleEntities)

	filtered, removed := p.denyList.Filter(merged, pctx.Language)
	if removed > 0 {
		pctx.Metadata[model.MetaDenyListFiltered] = removed
	}

	entities = append(entities, filtered...)
	model.SortByPosition(entities)
	return entities, nil
}

// mergeDetections unions ML and rule entities whose spans overlap: the
// merged span is the union, the confidence is the max of the two and the
// source becomes BOTH. Type preference goes to the rule entity, whose type
// comes from a format-specific pattern.
func mergeDetections(text string, mlEntities, ruleEntities []model.Entity) []model.Entity {
	merged := make([]model.Entity, len(ruleEntities))
	copy(merged, ruleEntities)

	for _, ml := range mlEntities {
		fused := false
		for i := range merged {
			if merged[i].Source != model.SourceML && merged[i].Overlaps(ml) {
				if ml.StartPos < merged[i].StartPos {
					merged[i].StartPos = ml.StartPos
				}
				if ml.EndPos > merged[i].EndPos {
					merged[i].EndPos = ml.EndPos
				}
				merged[i].Text = text[merged[i].StartPos:merged[i].EndPos]
				if ml.Confidence > merged[i].Confidence {
					merged[i].Confidence = ml.Confidence
				}
				merged[i].Source = model.SourceBoth
				fused = true
				break
			}
		}
		if !fused {
			merged = append(merged, ml)
		}
	}
	model.SortByPosition(merged)
	return merged
}
