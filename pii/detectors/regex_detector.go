package pii

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

type compiledPattern struct {
	re  *regexp.Regexp
	typ model.EntityType
}

// RegexDetector implements Detector using the rule library. It runs
// independently of the ML adapter; the high-recall pass fuses both outputs.
type RegexDetector struct {
	patterns      []compiledPattern
	detectAmounts bool
}

// NewRegexDetector compiles the given pattern library. Pass PIIPatterns for
// the default Swiss/EU library.
func NewRegexDetector(patterns map[model.EntityType][]string) (*RegexDetector, error) {
	d := &RegexDetector{}
	types := make([]model.EntityType, 0, len(patterns))
	for typ := range patterns {
		types = append(types, typ)
	}
	// Stable compile order so match iteration is deterministic.
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, typ := range types {
		for _, expr := range patterns[typ] {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("failed to compile %s pattern %q: %w", typ, expr, err)
			}
			d.patterns = append(d.patterns, compiledPattern{re: re, typ: typ})
		}
	}
	return d, nil
}

// SetDetectAmounts toggles AMOUNT matching. Amounts are gated off by default:
// they are not PII on their own.
func (d *RegexDetector) SetDetectAmounts(enabled bool) {
	d.detectAmounts = enabled
}

// GetName returns the name of this detector.
func (d *RegexDetector) GetName() string {
	return "regex_detector"
}

// Detect runs every compiled pattern over the input text.
func (d *RegexDetector) Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error) {
	entities := []model.Entity{}
	for _, p := range d.patterns {
		if p.typ == model.TypeAmount && !d.detectAmounts {
			continue
		}
		if err := ctx.Err(); err != nil {
			return DetectorOutput{}, err
		}
		for _, loc := range p.re.FindAllStringIndex(input.Text, -1) {
			confidence := ruleConfidence[p.typ]
			if confidence == 0 {
				confidence = 0.6
			}
			entities = append(entities, model.NewEntity(
				p.typ, input.Text[loc[0]:loc[1]], loc[0], loc[1], confidence, model.SourceRule))
		}
	}
	model.SortByPosition(entities)
	return DetectorOutput{Text: input.Text, Entities: entities}, nil
}

// Close implements the Detector interface.
func (d *RegexDetector) Close() error {
	return nil
}
