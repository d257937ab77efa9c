// Package normalizer canonicalizes document text before detection and keeps
// an exact byte-offset map back to the original text. Every detector runs on
// the normalized text; the mapping file and the final substitution address
// the original, so the map has to be exact for every rule applied here.
package normalizer

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Options toggles individual normalization steps.
type Options struct {
	NormalizeUnicode  bool
	UnicodeForm       norm.Form
	StripZeroWidth    bool
	DeobfuscateEmails bool
	DeobfuscatePhones bool
}

// DefaultOptions enables every step with NFKC.
func DefaultOptions() Options {
	return Options{
		NormalizeUnicode:  true,
		UnicodeForm:       norm.NFKC,
		StripZeroWidth:    true,
		DeobfuscateEmails: true,
		DeobfuscatePhones: true,
	}
}

// Result holds normalized text and its offset map. IndexMap has
// len(Text)+1 entries; IndexMap[i] is the original byte offset of normalized
// byte i and the final entry maps one past the last original byte, so
// half-open spans map exactly.
type Result struct {
	Text     string
	IndexMap []int
}

// MapSpan translates a half-open span in the normalized text back to the
// original text. It returns ok=false when the span is out of bounds.
func (r Result) MapSpan(start, end int) (origStart, origEnd int, ok bool) {
	if start < 0 || end < start || end > len(r.IndexMap)-1 {
		return 0, 0, false
	}
	return r.IndexMap[start], r.IndexMap[end], true
}

// Obfuscated "at"/"dot" tokens must be wrapped in brackets or parens.
// Bare words (a standalone " at ") are intentionally not rewritten: doing so
// would turn ordinary prose into false email matches.
var (
	atTokenRe  = regexp.MustCompile(`(?i)[ \t]*[(\[{][ \t]*(?:at|arobase|klammeraffe)[ \t]*[)\]}][ \t]*`)
	dotTokenRe = regexp.MustCompile(`(?i)[ \t]*[(\[{][ \t]*(?:dot|point|punkt)[ \t]*[)\]}][ \t]*`)

	// Optional "(0)" trunk-prefix marker after a country code. Generic
	// separator collapsing is excluded on purpose: it breaks offset
	// fidelity, so downstream phone patterns tolerate separators instead.
	trunkZeroRe = regexp.MustCompile(`(\+\d{1,3}[ .\-]?)\(0\)[ .\-]?`)
)

// Normalize canonicalizes raw according to opts and returns the normalized
// text with its offset map. Empty input yields an empty result.
func Normalize(raw string, opts Options) Result {
	if raw == "" {
		return Result{Text: "", IndexMap: []int{0}}
	}

	text := raw
	idx := identityMap(len(raw))

	if opts.NormalizeUnicode {
		form := opts.UnicodeForm
		if form != norm.NFC && form != norm.NFD && form != norm.NFKC && form != norm.NFKD {
			form = norm.NFKC
		}
		text, idx = compose(text, idx, unicodeStep(form))
	}
	if opts.StripZeroWidth {
		text, idx = compose(text, idx, zeroWidthStep)
	}
	if opts.DeobfuscateEmails {
		text, idx = compose(text, idx, literalReplaceStep(atTokenRe, "@"))
		text, idx = compose(text, idx, literalReplaceStep(dotTokenRe, "."))
	}
	if opts.DeobfuscatePhones {
		text, idx = compose(text, idx, keepPrefixStep(trunkZeroRe))
	}

	return Result{Text: text, IndexMap: idx}
}

// step transforms text and returns the output together with a map of
// len(out)+1 entries into the step's own input.
type step func(in string) (out string, idx []int)

func identityMap(n int) []int {
	idx := make([]int, n+1)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// compose runs s over text and rebases the step-local offsets onto prev.
func compose(text string, prev []int, s step) (string, []int) {
	out, local := s(text)
	idx := make([]int, len(local))
	for i, p := range local {
		idx[i] = prev[p]
	}
	return out, idx
}

// unicodeStep normalizes rune by rune so offsets stay exact. Output bytes of
// a rewritten rune all map to the rune's start; the trailing boundary entry
// keeps half-open span ends correct.
func unicodeStep(form norm.Form) step {
	return func(in string) (string, []int) {
		var b strings.Builder
		idx := make([]int, 0, len(in)+1)
		for off, r := range in {
			src := in[off : off+len(string(r))]
			out := form.String(src)
			if out == src {
				b.WriteString(src)
				for k := 0; k < len(src); k++ {
					idx = append(idx, off+k)
				}
				continue
			}
			b.WriteString(out)
			for k := 0; k < len(out); k++ {
				idx = append(idx, off)
			}
		}
		idx = append(idx, len(in))
		return b.String(), idx
	}
}

// zeroWidthStep drops zero-width characters and rewrites non-breaking space
// variants to a plain space.
func zeroWidthStep(in string) (string, []int) {
	var b strings.Builder
	idx := make([]int, 0, len(in)+1)
	for off, r := range in {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			continue
		case '\u00a0', '\u202f', '\u2009':
			b.WriteByte(' ')
			idx = append(idx, off)
		default:
			src := in[off : off+len(string(r))]
			b.WriteString(src)
			for k := 0; k < len(src); k++ {
				idx = append(idx, off+k)
			}
		}
	}
	idx = append(idx, len(in))
	return b.String(), idx
}

// literalReplaceStep replaces every match of re with a literal; the literal's
// bytes map to the match start.
func literalReplaceStep(re *regexp.Regexp, literal string) step {
	return func(in string) (string, []int) {
		matches := re.FindAllStringIndex(in, -1)
		if matches == nil {
			return in, identityMap(len(in))
		}
		var b strings.Builder
		idx := make([]int, 0, len(in)+1)
		pos := 0
		for _, m := range matches {
			for k := pos; k < m[0]; k++ {
				idx = append(idx, k)
			}
			b.WriteString(in[pos:m[0]])
			b.WriteString(literal)
			for k := 0; k < len(literal); k++ {
				idx = append(idx, m[0])
			}
			pos = m[1]
		}
		for k := pos; k < len(in); k++ {
			idx = append(idx, k)
		}
		b.WriteString(in[pos:])
		idx = append(idx, len(in))
		return b.String(), idx
	}
}

// keepPrefixStep replaces each match of re with its first capture group,
// which must be a prefix of the match, so kept bytes map one to one.
func keepPrefixStep(re *regexp.Regexp) step {
	return func(in string) (string, []int) {
		matches := re.FindAllStringSubmatchIndex(in, -1)
		if matches == nil {
			return in, identityMap(len(in))
		}
		var b strings.Builder
		idx := make([]int, 0, len(in)+1)
		pos := 0
		for _, m := range matches {
			for k := pos; k < m[0]; k++ {
				idx = append(idx, k)
			}
			b.WriteString(in[pos:m[0]])
			// m[2]:m[3] is group 1, anchored at the match start.
			b.WriteString(in[m[2]:m[3]])
			for k := m[2]; k < m[3]; k++ {
				idx = append(idx, k)
			}
			pos = m[1]
		}
		for k := pos; k < len(in); k++ {
			idx = append(idx, k)
		}
		b.WriteString(in[pos:])
		idx = append(idx, len(in))
		return b.String(), idx
	}
}
