package pipeline

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTokenBudget caps final output at roughly 25k tokens so the text
// fits a downstream model context.
const DefaultTokenBudget = 25000

// TruncationMarker is appended whenever the budget cuts the text.
const TruncationMarker = "\n[truncated]"

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// EstimateTokens approximates the token count as ceil(len/4), the usual
// bytes-per-token heuristic.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// CollapseBlankLines folds runs of three or more newlines into exactly one
// blank line.
func CollapseBlankLines(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

// TruncateToTokens enforces the token budget with a hard character cutoff
// and a trailing marker. Applying it twice at the same budget is a no-op:
// truncated output is always within budget.
func TruncateToTokens(s string, budget int) string {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	if EstimateTokens(s) <= budget {
		return s
	}
	limit := budget*4 - len(TruncationMarker)
	if limit < 0 {
		limit = 0
	}
	cut := s[:limit]
	// back off a partial UTF-8 sequence at the cut point
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r == utf8.RuneError && size == 1 {
			cut = cut[:len(cut)-1]
			continue
		}
		break
	}
	return cut + TruncationMarker
}

// Finalize is the method-independent post-processing applied to the winning
// text: blank-line collapse, trim, token-budget truncation.
func Finalize(s string, budget int) string {
	s = CollapseBlankLines(s)
	s = strings.TrimSpace(s)
	return TruncateToTokens(s, budget)
}

func computeStats(text string, pages int) Stats {
	s := Stats{PrintableRatio: printableRatio(text)}
	if pages > 0 {
		s.CharsPerPage = float64(utf8.RuneCountInString(text)) / float64(pages)
	}
	return s
}

// printableRatio is the share of printable runes in the text. Replacement
// characters and non-whitespace controls count against it.
func printableRatio(text string) float64 {
	if text == "" {
		return 1
	}
	var total, printable int
	for _, r := range text {
		total++
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}
