package pipeline

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, c := range cases {
		if got := EstimateTokens(c.in); got != c.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestCollapseBlankLines(t *testing.T) {
	in := "one\n\n\n\n\ntwo\n\nthree"
	want := "one\n\ntwo\n\nthree"
	if got := CollapseBlankLines(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTruncateWithinBudgetUnchanged(t *testing.T) {
	s := strings.Repeat("x", 40)
	if got := TruncateToTokens(s, 10); got != s {
		t.Fatalf("text within budget was modified: %q", got)
	}
}

func TestTruncateAppendsMarker(t *testing.T) {
	s := strings.Repeat("x", 100)
	got := TruncateToTokens(s, 10)
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("missing marker: %q", got)
	}
	if EstimateTokens(got) > 10 {
		t.Errorf("truncated text still exceeds budget: %d tokens", EstimateTokens(got))
	}
}

func TestTruncateIdempotent(t *testing.T) {
	s := strings.Repeat("ი", 2000)
	once := TruncateToTokens(s, 100)
	twice := TruncateToTokens(once, 100)
	if once != twice {
		t.Fatal("second truncation at the same budget changed the text")
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("ქ", 500) // 3 bytes per rune, cut lands mid-rune
	got := TruncateToTokens(s, 50)
	body := strings.TrimSuffix(got, TruncationMarker)
	for _, r := range body {
		if r != 'ქ' {
			t.Fatalf("rune %q leaked from a split UTF-8 sequence", r)
		}
	}
}

func TestFinalize(t *testing.T) {
	in := "  line one\n\n\n\n\nline two  "
	got := Finalize(in, 0)
	if got != "line one\n\nline two" {
		t.Fatalf("got %q", got)
	}
}

func TestComputeStats(t *testing.T) {
	s := computeStats("აბგდ\nაბგდ", 2)
	if s.CharsPerPage != 4.5 {
		t.Fatalf("CharsPerPage = %v, want 4.5", s.CharsPerPage)
	}
	if s.PrintableRatio != 1 {
		t.Fatalf("PrintableRatio = %v, want 1", s.PrintableRatio)
	}
}

func TestPrintableRatioCountsGarbage(t *testing.T) {
	// 8 printable runes plus 2 replacement characters
	got := printableRatio("abcd1234��")
	if got != 0.8 {
		t.Fatalf("got %v, want 0.8", got)
	}
	if printableRatio("") != 1 {
		t.Fatal("empty text must score 1")
	}
}
