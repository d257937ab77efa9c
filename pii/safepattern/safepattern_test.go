package safepattern

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestBuildScreening(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		wantErr   error
	}{
		{"too short raw", "ab", ErrTooShort},
		{"too short after cleaning", "a-!", ErrTooShort},
		{"oversized raw", strings.Repeat("x", MaxRawLength+1), ErrTooLong},
		{"oversized cleaned", strings.Repeat("x", MaxCleanedLength+1), ErrTooLong},
		{"minimal valid", "abc", nil},
		{"email", "jean.dupont@mail.ch", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.candidate)
			if err != tt.wantErr {
				t.Errorf("Build(%q) error = %v, want %v", tt.candidate, err, tt.wantErr)
			}
		})
	}
}

func TestBuildMatchesSeparatorVariants(t *testing.T) {
	pattern, err := Build("756.1234.5678.97")
	if err != nil {
		t.Fatal(err)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		t.Fatalf("built pattern does not compile: %v", err)
	}

	for _, variant := range []string{
		"756.1234.5678.97",
		"756 1234 5678 97",
		"756-1234-5678-97",
		"7561234567897",
	} {
		if !re.MatchString(variant) {
			t.Errorf("pattern should match %q", variant)
		}
	}
	// Gaps are capped at three non-alphanumeric characters.
	if re.MatchString("756    1234 5678 97") {
		t.Error("pattern should not bridge a four-character gap")
	}
	// Gaps never cross letters or digits, so obfuscation words stay unmatched.
	if re.MatchString("756 dot 1234 dot 5678 dot 97") {
		t.Error("pattern should not bridge letter-bearing gaps")
	}
}

func TestBuildEscapesMetaCharacters(t *testing.T) {
	pattern, err := Build("a+b*c")
	if err != nil {
		t.Fatal(err)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		t.Fatalf("built pattern does not compile: %v", err)
	}
	if !re.MatchString("abc") {
		t.Error("cleaned candidate should match its own letters")
	}
}

func TestExecuteReplaces(t *testing.T) {
	pattern, err := Build("jean.dupont@mail.ch")
	if err != nil {
		t.Fatal(err)
	}
	text := "Contact jean dupont mail ch or jean.dupont@mail.ch."
	res, err := Execute(pattern, text, func(string) string { return "EMAIL_1" }, DefaultTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if res.TimedOut {
		t.Fatal("unexpected timeout")
	}
	if res.Replaced != 2 {
		t.Errorf("replaced %d matches, want 2", res.Replaced)
	}
	if strings.Contains(res.Text, "dupont") {
		t.Errorf("literal value survived: %q", res.Text)
	}
}

func TestExecuteSkipsMidWordMatches(t *testing.T) {
	pattern, err := Build("Bern")
	if err != nil {
		t.Fatal(err)
	}
	text := "Bernstein wrote from Bern."
	res, err := Execute(pattern, text, func(string) string { return "LOC_1" }, DefaultTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if res.Replaced != 1 {
		t.Errorf("replaced %d matches, want 1", res.Replaced)
	}
	if want := "Bernstein wrote from LOC_1."; res.Text != want {
		t.Errorf("text = %q, want %q", res.Text, want)
	}
}

func TestExecuteSkipsMidNumberMatches(t *testing.T) {
	pattern, err := Build("756.9217.0769.85")
	if err != nil {
		t.Fatal(err)
	}
	// The value embedded in a longer digit run is a different number.
	text := "ref 17569217076985123 and 756.9217.0769.85"
	res, err := Execute(pattern, text, func(string) string { return "AVS_1" }, DefaultTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if res.Replaced != 1 {
		t.Errorf("replaced %d matches, want 1", res.Replaced)
	}
	if strings.Contains(res.Text, "756.9217") {
		t.Errorf("standalone value survived: %q", res.Text)
	}
	if !strings.Contains(res.Text, "17569217076985123") {
		t.Errorf("embedded digit run was rewritten: %q", res.Text)
	}
}

func TestExecuteLargeInputStaysLinear(t *testing.T) {
	pattern, err := Build("756.1234.5678.97")
	if err != nil {
		t.Fatal(err)
	}
	// 100KB of near-miss digits: no catastrophic backtracking is possible
	// with single-character literals and bounded lazy gaps.
	text := strings.Repeat("756 1234 5678 9x ", 6250)
	started := time.Now()
	res, err := Execute(pattern, text, func(string) string { return "X" }, DefaultTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if res.TimedOut {
		t.Errorf("execution timed out after %s", time.Since(started))
	}
}

func TestExecuteHonorsBudget(t *testing.T) {
	pattern, err := Build("abc")
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("abc ", 100000)
	res, err := Execute(pattern, text, func(string) string { return "Y" }, time.Nanosecond)
	if err != nil {
		t.Fatal(err)
	}
	if !res.TimedOut {
		t.Skip("machine fast enough to finish inside a nanosecond budget")
	}
	// Timed-out output keeps the unprocessed tail verbatim.
	if !strings.HasSuffix(res.Text, "abc ") {
		t.Errorf("tail not preserved: %q", res.Text[len(res.Text)-12:])
	}
}

func TestEstimateComplexity(t *testing.T) {
	patterns := []string{"aaa", "bbbb"}
	if got := EstimateComplexity(patterns); got != 7 {
		t.Errorf("EstimateComplexity = %d, want 7", got)
	}
}
