package pii

import (
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/normalizer"
	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/safepattern"
)

var (
	fencedCodeRe = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]+`")
	// Placeholder markers use STX framing: never produced by normalization
	// and never matched by any detector pattern.
	codeMarkerRe = regexp.MustCompile("\x02code:(\\d+)\x02")
)

// codeProtector swaps markdown code regions for opaque markers before
// normalization and restores them verbatim afterwards. Code must never be
// rewritten: an identifier that looks like a name is still an identifier.
type codeProtector struct {
	snippets []string
}

// Protect replaces fenced blocks, then inline code, with markers.
func (cp *codeProtector) Protect(text string) string {
	replace := func(match string) string {
		cp.snippets = append(cp.snippets, match)
		return fmt.Sprintf("\x02code:%d\x02", len(cp.snippets)-1)
	}
	text = fencedCodeRe.ReplaceAllStringFunc(text, replace)
	return inlineCodeRe.ReplaceAllStringFunc(text, replace)
}

// Restore puts the original snippets back.
func (cp *codeProtector) Restore(text string) string {
	return codeMarkerRe.ReplaceAllStringFunc(text, func(marker string) string {
		var i int
		if _, err := fmt.Sscanf(marker, "\x02code:%d\x02", &i); err != nil || i >= len(cp.snippets) {
			return marker
		}
		return cp.snippets[i]
	})
}

// screenedEntity is an entity that passed fuzzy-pattern screening.
type screenedEntity struct {
	model.Entity
	pattern string
}

// replaceEntities rewrites the original text. Entities run on normalized
// offsets; each span is translated back through the index map and spliced in
// descending start order so earlier offsets stay valid. A final fuzzy sweep
// catches literal repetitions of mapped values the detectors never spanned.
// Returns the rewritten text and the count of pattern-rejected entities.
func replaceEntities(original string, norm normalizer.Result, entities []model.Entity, session *Session) (string, int) {
	screened := make([]screenedEntity, 0, len(entities))
	rejected := 0
	for _, e := range entities {
		pattern, err := safepattern.Build(e.Text)
		if err != nil {
			// Too short to substitute safely; never allocate a pseudonym
			// for it.
			rejected++
			continue
		}
		screened = append(screened, screenedEntity{Entity: e, pattern: pattern})
	}

	// Non-address pseudonyms allocate ascending in document order, so the
	// first person mentioned is PER_1 regardless of substitution order.
	sort.SliceStable(screened, func(i, j int) bool { return screened[i].StartPos < screened[j].StartPos })
	for _, se := range screened {
		if !se.Type.IsAddressFamily() {
			session.Pseudonym(se.Entity)
		}
	}

	// Substitute descending so splices never shift pending spans.
	desc := make([]screenedEntity, len(screened))
	copy(desc, screened)
	sort.SliceStable(desc, func(i, j int) bool { return desc[i].StartPos > desc[j].StartPos })

	result := original
	for _, se := range desc {
		origStart, origEnd, ok := norm.MapSpan(se.StartPos, se.EndPos)
		if !ok || origStart >= origEnd || origEnd > len(result) {
			continue
		}
		if session.IsRangeAnonymized(origStart, origEnd) {
			continue
		}
		var replacement string
		if se.Type.IsAddressFamily() {
			replacement = session.RegisterGroupedAddress(se.Entity, original[origStart:origEnd])
		} else {
			replacement = session.Pseudonym(se.Entity)
		}
		result = result[:origStart] + replacement + result[origEnd:]
		session.MarkRange(origStart, origEnd)
	}

	return fuzzySweep(result, screened, session), rejected
}

// fuzzySweep replaces leftover literal occurrences of mapped values with
// their pseudonyms, using one combined alternation under the default budget
// and degrading to per-pattern passes with the fallback budget on timeout.
func fuzzySweep(text string, screened []screenedEntity, session *Session) string {
	if len(screened) == 0 {
		return text
	}

	byFold := make(map[string]string, len(screened))
	patterns := make([]string, 0, len(screened))
	seen := make(map[string]bool, len(screened))
	for _, se := range screened {
		if seen[se.pattern] {
			continue
		}
		seen[se.pattern] = true
		patterns = append(patterns, se.pattern)
		var p string
		if se.Type.IsAddressFamily() {
			p = session.RegisterGroupedAddress(se.Entity, se.Text)
		} else {
			p = session.Pseudonym(se.Entity)
		}
		byFold[foldText(se.Text)] = p
	}

	replacer := func(match string) string {
		if p, ok := byFold[foldText(match)]; ok {
			return p
		}
		// Fuzzy overmatch of unrelated text: leave it alone.
		return match
	}

	safepattern.EstimateComplexity(patterns)
	combined := "(?:" + strings.Join(patterns, ")|(?:") + ")"
	res, err := safepattern.Execute(combined, text, replacer, safepattern.DefaultTimeout)
	if err != nil {
		log.Printf("[Replace] combined pattern failed to compile: %v", err)
		return text
	}
	if !res.TimedOut {
		return res.Text
	}

	log.Printf("[Replace] combined sweep timed out, retrying %d patterns individually", len(patterns))
	out := text
	for _, p := range patterns {
		r, err := safepattern.Execute(p, out, replacer, safepattern.FallbackTimeout)
		if err != nil {
			continue
		}
		out = r.Text
	}
	return out
}
