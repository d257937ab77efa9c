package passes

import (
	"context"
	"fmt"
	"strings"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// typeSpecificity ranks entity types for overlap resolution: a checksummed
// identifier beats a generic ML span of the same length.
var typeSpecificity = map[model.EntityType]int{
	model.TypeSwissAVS:      100,
	model.TypeIBAN:          95,
	model.TypeVATNumber:     90,
	model.TypePaymentRef:    85,
	model.TypeSwissAddress:  80,
	model.TypeEUAddress:     80,
	model.TypeAddress:       75,
	model.TypeEmail:         70,
	model.TypePhone:         65,
	model.TypeInvoiceNumber: 60,
	model.TypeDate:          50,
	model.TypeAmount:        45,
	model.TypePerson:        40,
	model.TypeOrganization:  40,
	model.TypeLocation:      30,
	model.TypeUnknown:       0,
}

// ConsolidationPass (order 50) resolves remaining overlaps and assigns
// logical identities. It is the last pass before the confidence threshold,
// so it leaves a flat, non-overlapping, position-sorted entity list.
type ConsolidationPass struct{}

// NewConsolidationPass creates the pass.
func NewConsolidationPass() *ConsolidationPass {
	return &ConsolidationPass{}
}

// Name implements DetectionPass.
func (p *ConsolidationPass) Name() string { return "consolidation" }

// Order implements DetectionPass.
func (p *ConsolidationPass) Order() int { return 50 }

// Enabled implements DetectionPass.
func (p *ConsolidationPass) Enabled(pctx *model.PipelineContext) bool { return true }

// Execute removes overlap losers, then tags every survivor with a logical
// identity so that repeated mentions of the same value share a pseudonym.
func (p *ConsolidationPass) Execute(ctx context.Context, text string, entities []model.Entity, pctx *model.PipelineContext) ([]model.Entity, error) {
	before := len(entities)
	entities = resolveOverlaps(entities)
	if dropped := before - len(entities); dropped > 0 {
		pctx.Metadata[model.MetaConsolidated] = dropped
	}

	if pctx.Config.Features.UseLogicalIdentities {
		assigned := assignLogicalIDs(entities)
		pctx.Metadata[model.MetaLogicalIdentities] = assigned
	}

	model.SortByPosition(entities)
	return entities, nil
}

// resolveOverlaps keeps, for each overlap cluster, the entity that wins on
// confidence, then span length, then type specificity. The winner absorbs
// the loser's source when they came from different detector families.
func resolveOverlaps(entities []model.Entity) []model.Entity {
	model.SortByPosition(entities)
	var out []model.Entity

	for _, e := range entities {
		placed := false
		for i := range out {
			if !out[i].Overlaps(e) {
				continue
			}
			winner, loser := pickWinner(out[i], e)
			if loser.Source != winner.Source && winner.Source != model.SourceConsolidated {
				winner.Source = model.SourceConsolidated
			}
			out[i] = winner
			placed = true
			break
		}
		if !placed {
			out = append(out, e)
		}
	}
	return out
}

// pickWinner compares two overlapping entities.
func pickWinner(a, b model.Entity) (winner, loser model.Entity) {
	if a.Confidence != b.Confidence {
		if a.Confidence > b.Confidence {
			return a, b
		}
		return b, a
	}
	aLen, bLen := a.EndPos-a.StartPos, b.EndPos-b.StartPos
	if aLen != bLen {
		if aLen > bLen {
			return a, b
		}
		return b, a
	}
	if typeSpecificity[a.Type] >= typeSpecificity[b.Type] {
		return a, b
	}
	return b, a
}

// assignLogicalIDs gives entities that share a type and a canonical text the
// same LogicalID, numbered per type in first-mention order. Returns the
// number of distinct identities.
func assignLogicalIDs(entities []model.Entity) int {
	ids := make(map[string]string)
	perType := make(map[model.EntityType]int)

	for i := range entities {
		e := &entities[i]
		key := string(e.Type) + "\x00" + canonicalText(*e)
		id, ok := ids[key]
		if !ok {
			perType[e.Type]++
			id = fmt.Sprintf("%s-%d", strings.ToLower(string(e.Type)), perType[e.Type])
			ids[key] = id
		}
		e.LogicalID = id
	}
	return len(ids)
}

// canonicalText folds case and separator noise so that "756.1234.5678.97"
// and "756 1234 5678 97" resolve to one identity.
func canonicalText(e model.Entity) string {
	var b strings.Builder
	for _, r := range strings.ToLower(e.Text) {
		switch r {
		case ' ', '.', '-', '\t', '\n':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
