package passes

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// Defaults for component linking.
const (
	defaultAddressProximity     = 80
	defaultMinAddressComponents = 2
	addressAutoAnonymize        = 0.7
)

var (
	// Street names: Romandie and German-speaking forms.
	streetRe = regexp.MustCompile(`(?i)\b(?:rue|avenue|av\.|chemin|ch\.|route|rte|place|pl\.|boulevard|bd|quai|impasse)\s+(?:de\s+la\s+|de\s+l'|de\s+|du\s+|des\s+|d')?\p{Lu}[\p{L}'\-]+(?:\s+\p{Lu}[\p{L}'\-]+)*|\b\p{Lu}[\p{L}]+(?:strasse|straße|weg|gasse|platz|allee|ring)\b`)
	// Building number: short digit group, optional letter suffix.
	buildingNumRe = regexp.MustCompile(`\b\d{1,4}[a-z]?\b`)
	swissPostalRe = regexp.MustCompile(`\b(?:CH[\- ])?[1-9]\d{3}\b`)
	euPostalRe    = regexp.MustCompile(`\b(?:D[\- ]|F[\- ])?\d{5}\b`)
	cityRe        = regexp.MustCompile(`\p{Lu}[\p{L}'\-]+(?:[ \-]\p{Lu}[\p{L}'\-]+)*`)
	countryRe     = regexp.MustCompile(`(?i)\b(?:suisse|schweiz|switzerland|svizzera|france|frankreich|deutschland|germany|allemagne|italia|italie|österreich|austria|autriche|liechtenstein)\b`)
	regionRe      = regexp.MustCompile(`(?i)\b(?:vaud|genève|geneve|valais|fribourg|neuchâtel|jura|berne?|zürich|zurich|bayern|bavaria|alsace|lorraine)\b`)
)

var swissCountryMarkers = map[string]bool{
	"suisse": true, "schweiz": true, "switzerland": true, "svizzera": true, "liechtenstein": true,
}

// AddressPass (order 40) turns scattered address components into grouped
// address entities. An address is a cluster, not a token: components are
// classified, linked by proximity, scored, and the winning groups subsume
// overlapping location-type detections.
type AddressPass struct{}

// NewAddressPass creates the pass.
func NewAddressPass() *AddressPass {
	return &AddressPass{}
}

// Name implements DetectionPass.
func (p *AddressPass) Name() string { return "address_relationship" }

// Order implements DetectionPass.
func (p *AddressPass) Order() int { return 40 }

// Enabled implements DetectionPass.
func (p *AddressPass) Enabled(pctx *model.PipelineContext) bool {
	return pctx.Config.Features.GroupAddresses
}

// Execute classifies components, links and scores them, and merges the
// grouped addresses with the incoming entity list. With no components found
// the entities pass through unchanged.
func (p *AddressPass) Execute(ctx context.Context, text string, entities []model.Entity, pctx *model.PipelineContext) ([]model.Entity, error) {
	components := classifyComponents(text)
	if len(components) == 0 {
		return entities, nil
	}

	proximity := pctx.Config.AddressProximity
	if proximity <= 0 {
		proximity = defaultAddressProximity
	}
	minComponents := pctx.Config.MinAddressComponents
	if minComponents <= 0 {
		minComponents = defaultMinAddressComponents
	}

	grouped := linkComponents(components, proximity, minComponents)
	if len(grouped) == 0 {
		return entities, nil
	}

	var scored []model.ScoredAddress
	for _, g := range grouped {
		g.Text = text[g.StartPos:g.EndPos]
		scored = append(scored, scoreAddress(g))
	}
	pctx.Metadata[model.MetaAddressGroups] = len(scored)

	return mergeAddresses(entities, scored), nil
}

// classifyComponents finds raw address components in the text. Street
// matches claim their span first; building numbers inside an already-claimed
// span are skipped, as are bare digit groups that are really postal codes.
func classifyComponents(text string) []model.AddressComponent {
	var components []model.AddressComponent
	claimed := make([][2]int, 0)
	claim := func(start, end int) {
		claimed = append(claimed, [2]int{start, end})
	}
	isClaimed := func(start, end int) bool {
		for _, c := range claimed {
			if start < c[1] && c[0] < end {
				return true
			}
		}
		return false
	}
	add := func(kind model.ComponentKind, start, end int) {
		components = append(components, model.AddressComponent{
			Kind: kind, Text: text[start:end], StartPos: start, EndPos: end,
		})
	}

	for _, loc := range streetRe.FindAllStringIndex(text, -1) {
		add(model.ComponentStreet, loc[0], loc[1])
		claim(loc[0], loc[1])
	}
	for _, loc := range swissPostalRe.FindAllStringIndex(text, -1) {
		if isClaimed(loc[0], loc[1]) {
			continue
		}
		add(model.ComponentPostalCode, loc[0], loc[1])
		claim(loc[0], loc[1])
		// The locality usually follows the postal code directly.
		if cityLoc := cityRe.FindStringIndex(text[loc[1]:]); cityLoc != nil && cityLoc[0] <= 1 {
			add(model.ComponentCity, loc[1]+cityLoc[0], loc[1]+cityLoc[1])
			claim(loc[1]+cityLoc[0], loc[1]+cityLoc[1])
		}
	}
	for _, loc := range euPostalRe.FindAllStringIndex(text, -1) {
		if isClaimed(loc[0], loc[1]) {
			continue
		}
		add(model.ComponentPostalCode, loc[0], loc[1])
		claim(loc[0], loc[1])
		if cityLoc := cityRe.FindStringIndex(text[loc[1]:]); cityLoc != nil && cityLoc[0] <= 1 {
			add(model.ComponentCity, loc[1]+cityLoc[0], loc[1]+cityLoc[1])
			claim(loc[1]+cityLoc[0], loc[1]+cityLoc[1])
		}
	}
	for _, loc := range countryRe.FindAllStringIndex(text, -1) {
		if !isClaimed(loc[0], loc[1]) {
			add(model.ComponentCountry, loc[0], loc[1])
			claim(loc[0], loc[1])
		}
	}
	for _, loc := range regionRe.FindAllStringIndex(text, -1) {
		if !isClaimed(loc[0], loc[1]) {
			add(model.ComponentRegion, loc[0], loc[1])
			claim(loc[0], loc[1])
		}
	}
	// Building numbers last: only directly after a street component.
	for _, loc := range buildingNumRe.FindAllStringIndex(text, -1) {
		if isClaimed(loc[0], loc[1]) {
			continue
		}
		for _, c := range components {
			if c.Kind == model.ComponentStreet && loc[0] >= c.EndPos && loc[0]-c.EndPos <= 2 {
				add(model.ComponentNumber, loc[0], loc[1])
				claim(loc[0], loc[1])
				break
			}
		}
	}

	sort.Slice(components, func(i, j int) bool { return components[i].StartPos < components[j].StartPos })
	return components
}

// linkComponents chains components whose gap stays within the proximity
// threshold into candidate grouped addresses.
func linkComponents(components []model.AddressComponent, proximity, minComponents int) []model.GroupedAddress {
	var groups []model.GroupedAddress
	var current []model.AddressComponent

	flush := func() {
		if len(current) >= minComponents && hasAnchor(current) {
			groups = append(groups, model.GroupedAddress{
				Components: current,
				StartPos:   current[0].StartPos,
				EndPos:     current[len(current)-1].EndPos,
			})
		}
		current = nil
	}

	for _, c := range components {
		if len(current) > 0 && c.StartPos-current[len(current)-1].EndPos > proximity {
			flush()
		}
		current = append(current, c)
	}
	flush()
	return groups
}

// hasAnchor requires at least one strong component: a bare region or
// country mention is not an address.
func hasAnchor(components []model.AddressComponent) bool {
	for _, c := range components {
		if c.Kind == model.ComponentStreet || c.Kind == model.ComponentPostalCode {
			return true
		}
	}
	return false
}

// scoreAddress computes the component breakdown, coverage/pattern/country
// scoring factors and the address-family classification.
func scoreAddress(g model.GroupedAddress) model.ScoredAddress {
	scored := model.ScoredAddress{GroupedAddress: g}
	kinds := make(map[model.ComponentKind]string, len(g.Components))
	for _, c := range g.Components {
		if _, seen := kinds[c.Kind]; !seen {
			kinds[c.Kind] = c.Text
		}
	}
	scored.Breakdown = model.AddressBreakdown{
		Street:     kinds[model.ComponentStreet],
		Number:     kinds[model.ComponentNumber],
		PostalCode: kinds[model.ComponentPostalCode],
		City:       kinds[model.ComponentCity],
		Country:    kinds[model.ComponentCountry],
		Region:     kinds[model.ComponentRegion],
	}

	// Coverage: share of the five core component kinds present.
	core := 0
	for _, kind := range []model.ComponentKind{
		model.ComponentStreet, model.ComponentNumber, model.ComponentPostalCode,
		model.ComponentCity, model.ComponentCountry,
	} {
		if kinds[kind] != "" {
			core++
		}
	}
	coverage := float64(core) / 5.0
	confidence := 0.35 + 0.5*coverage
	scored.ScoringFactors = append(scored.ScoringFactors, "coverage")

	// Pattern bonus: postal code immediately followed by a city is the
	// strongest Swiss/EU address signal.
	if kinds[model.ComponentPostalCode] != "" && kinds[model.ComponentCity] != "" {
		confidence += 0.15
		scored.ScoringFactors = append(scored.ScoringFactors, "postal_city_pair")
	}
	if kinds[model.ComponentStreet] != "" && kinds[model.ComponentNumber] != "" {
		confidence += 0.1
		scored.ScoringFactors = append(scored.ScoringFactors, "street_number_pair")
	}
	if kinds[model.ComponentCountry] != "" {
		confidence += 0.05
		scored.ScoringFactors = append(scored.ScoringFactors, "country_signal")
	}

	scored.FinalConfidence = clamp01(confidence)
	scored.AutoAnonymize = scored.FinalConfidence >= addressAutoAnonymize
	scored.Type = classifyAddressType(kinds)
	return scored
}

// classifyAddressType decides the address family from postal-code shape and
// country markers.
func classifyAddressType(kinds map[model.ComponentKind]string) model.EntityType {
	country := strings.ToLower(kinds[model.ComponentCountry])
	postal := digitsOnly(kinds[model.ComponentPostalCode])
	switch {
	case swissCountryMarkers[country], country == "" && len(postal) == 4:
		return model.TypeSwissAddress
	case country != "", len(postal) == 5:
		return model.TypeEUAddress
	}
	return model.TypeAddress
}

// mergeAddresses adds grouped addresses to the entity list. Pre-existing
// entities overlapping a group are dropped when location-related (subsumed
// by the group) and kept otherwise.
func mergeAddresses(entities []model.Entity, scored []model.ScoredAddress) []model.Entity {
	var out []model.Entity
	for _, e := range entities {
		subsumed := false
		for _, s := range scored {
			if e.OverlapsRange(s.StartPos, s.EndPos) && e.Type.IsLocationRelated() {
				subsumed = true
				break
			}
		}
		if !subsumed {
			out = append(out, e)
		}
	}

	for _, s := range scored {
		e := model.NewEntity(s.Type, s.Text, s.StartPos, s.EndPos, s.FinalConfidence, model.SourceRule)
		e.Components = s.Components
		e.Metadata = map[string]string{
			"scoring_factors": strings.Join(s.ScoringFactors, ","),
		}
		if s.AutoAnonymize {
			e.Metadata["auto_anonymize"] = "true"
		}
		if s.Breakdown.Street != "" {
			e.Metadata["street"] = s.Breakdown.Street
		}
		if s.Breakdown.PostalCode != "" {
			e.Metadata["postal_code"] = s.Breakdown.PostalCode
		}
		if s.Breakdown.City != "" {
			e.Metadata["city"] = s.Breakdown.City
		}
		out = append(out, e)
	}

	model.SortByPosition(out)
	return out
}
