// Package safepattern builds bounded-complexity "fuzzy" matchers for entity
// text and executes them under a wall-clock budget. Patterns are built as
// literal characters joined by short, non-greedy non-alphanumeric gaps; there
// are no nested quantifiers, so matching stays linear in the input.
package safepattern

import (
	"errors"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Construction limits.
const (
	MaxRawLength     = 200
	MinCleanedLength = 3
	MaxCleanedLength = 100
	MaxGap           = 3

	// DefaultTimeout is the budget for a combined substitution pass;
	// FallbackTimeout is the smaller per-pattern budget after a timeout.
	DefaultTimeout  = 2 * time.Second
	FallbackTimeout = 250 * time.Millisecond

	// complexityWarnThreshold flags unusually large combined alternations.
	// Flagged patterns still run; this is observability only.
	complexityWarnThreshold = 5000
)

// Build errors.
var (
	ErrTooLong  = errors.New("safepattern: candidate exceeds maximum length")
	ErrTooShort = errors.New("safepattern: cleaned candidate below minimum length")
)

const gapPattern = `[^\pL\pN]{0,3}?`

// Build constructs a fuzzy pattern for candidate. The candidate is screened
// first: oversized raw input, and cleaned forms shorter than three or longer
// than one hundred characters, are rejected. A 1-2 character candidate would
// otherwise match document-wide.
func Build(candidate string) (string, error) {
	if len(candidate) > MaxRawLength {
		return "", ErrTooLong
	}
	var chars []rune
	for _, r := range candidate {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			chars = append(chars, r)
		}
	}
	if len(chars) < MinCleanedLength {
		return "", ErrTooShort
	}
	if len(chars) > MaxCleanedLength {
		return "", ErrTooLong
	}

	parts := make([]string, len(chars))
	for i, r := range chars {
		parts[i] = regexp.QuoteMeta(string(r))
	}
	return strings.Join(parts, gapPattern), nil
}

// EstimateComplexity returns the combined pattern length of an alternation
// and logs when it is unusually large. Large alternations are not blocked.
func EstimateComplexity(patterns []string) int {
	total := 0
	for _, p := range patterns {
		total += len(p)
	}
	if total > complexityWarnThreshold {
		log.Printf("[SafePattern] combined alternation of %d patterns is %d chars", len(patterns), total)
	}
	return total
}

// ExecResult reports the outcome of a timed substitution.
type ExecResult struct {
	Text     string
	Replaced int
	TimedOut bool
}

// Execute replaces every match of pattern in text using replacer, checking
// elapsed wall-clock time between matches. On timeout it returns the text
// processed so far with TimedOut set; the caller is expected to fall back to
// per-pattern substitution with a smaller budget rather than abort.
func Execute(pattern, text string, replacer func(match string) string, timeout time.Duration) (ExecResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ExecResult{Text: text}, err
	}
	return ExecuteCompiled(re, text, replacer, timeout), nil
}

// ExecuteCompiled is Execute for an already-compiled pattern. Matches flanked
// by a letter or digit are skipped: fuzzy patterns begin and end on
// alphanumeric characters, so a flanked match is the inside of a longer word
// or number run and must not be substituted.
func ExecuteCompiled(re *regexp.Regexp, text string, replacer func(match string) string, timeout time.Duration) ExecResult {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	var b strings.Builder
	pos := 0
	replaced := 0
	for pos < len(text) {
		if time.Now().After(deadline) {
			b.WriteString(text[pos:])
			return ExecResult{Text: b.String(), Replaced: replaced, TimedOut: true}
		}
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start || !standalone(text, start, end) {
			// Zero-width or mid-word match: advance one byte past the match
			// start to guarantee progress without skipping later candidates.
			b.WriteString(text[pos : start+1])
			pos = start + 1
			continue
		}
		b.WriteString(text[pos:start])
		b.WriteString(replacer(text[start:end]))
		replaced++
		pos = end
	}
	b.WriteString(text[pos:])
	return ExecResult{Text: b.String(), Replaced: replaced, TimedOut: false}
}

// standalone reports whether text[start:end] sits at word edges: the runes
// immediately before and after the span are absent or non-alphanumeric.
func standalone(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
