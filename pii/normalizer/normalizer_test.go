package normalizer

import "testing"

func TestNormalizeEmptyInput(t *testing.T) {
	res := Normalize("", DefaultOptions())
	if res.Text != "" {
		t.Errorf("expected empty text, got %q", res.Text)
	}
	if len(res.IndexMap) != 1 || res.IndexMap[0] != 0 {
		t.Errorf("expected sentinel-only index map, got %v", res.IndexMap)
	}
}

func TestNormalizeDeobfuscatesEmail(t *testing.T) {
	raw := "jean (dot) dupont (at) mail (dot) ch"
	res := Normalize(raw, DefaultOptions())
	want := "jean.dupont@mail.ch"
	if res.Text != want {
		t.Fatalf("Normalize(%q) = %q, want %q", raw, res.Text, want)
	}
	if len(res.IndexMap) != len(res.Text)+1 {
		t.Fatalf("index map has %d entries, want %d", len(res.IndexMap), len(res.Text)+1)
	}

	// The full normalized span must map back to the full original span.
	start, end, ok := res.MapSpan(0, len(res.Text))
	if !ok {
		t.Fatal("MapSpan of full span failed")
	}
	if start != 0 || end != len(raw) {
		t.Errorf("MapSpan(0, %d) = (%d, %d), want (0, %d)", len(res.Text), start, end, len(raw))
	}
}

func TestNormalizeBracketVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"square brackets", "a[at]b[dot]ch", "a@b.ch"},
		{"curly braces", "a{at}b{dot}ch", "a@b.ch"},
		{"french tokens", "a (arobase) b (point) ch", "a@b.ch"},
		{"german tokens", "a (Klammeraffe) b (Punkt) ch", "a@b.ch"},
		{"bare at untouched", "meet at noon", "meet at noon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.raw, DefaultOptions())
			if res.Text != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, res.Text, tt.want)
			}
		})
	}
}

func TestNormalizeStripsZeroWidth(t *testing.T) {
	raw := "Du\u200bpont\u00a0AG"
	res := Normalize(raw, DefaultOptions())
	if res.Text != "Dupont AG" {
		t.Fatalf("got %q, want %q", res.Text, "Dupont AG")
	}
	// Span of "Dupont" maps back over the zero-width character.
	start, end, ok := res.MapSpan(0, 6)
	if !ok || start != 0 {
		t.Fatalf("MapSpan(0, 6) = (%d, %d, %v)", start, end, ok)
	}
	if got := raw[start:end]; got != "Du\u200bpont" {
		t.Errorf("original span = %q, want %q", got, "Du\u200bpont")
	}
}

func TestNormalizeTrunkZero(t *testing.T) {
	raw := "+41 (0)79 123 45 67"
	res := Normalize(raw, DefaultOptions())
	want := "+41 79 123 45 67"
	if res.Text != want {
		t.Fatalf("got %q, want %q", res.Text, want)
	}
}

func TestNormalizeNFKC(t *testing.T) {
	// U+FB01 LATIN SMALL LIGATURE FI decomposes to "fi" under NFKC.
	raw := "conﬁdentiel"
	res := Normalize(raw, DefaultOptions())
	if res.Text != "confidentiel" {
		t.Fatalf("got %q, want %q", res.Text, "confidentiel")
	}
	if len(res.IndexMap) != len(res.Text)+1 {
		t.Errorf("index map has %d entries, want %d", len(res.IndexMap), len(res.Text)+1)
	}
}

func TestMapSpanBounds(t *testing.T) {
	res := Normalize("abc", DefaultOptions())
	if _, _, ok := res.MapSpan(-1, 2); ok {
		t.Error("negative start should fail")
	}
	if _, _, ok := res.MapSpan(2, 1); ok {
		t.Error("end before start should fail")
	}
	if _, _, ok := res.MapSpan(0, 4); ok {
		t.Error("end past sentinel should fail")
	}
	if _, _, ok := res.MapSpan(0, 3); !ok {
		t.Error("full span should succeed")
	}
}
