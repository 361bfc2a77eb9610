package ocr

import (
	"strings"
	"unicode"
)

// straySymbols are typographic and legal marks Tesseract hallucinates on
// stamps, seals, and ruled lines. They carry no text value here.
const straySymbols = "§¶©®™°¤•·◦¬­"

// Cleanup is the fixed post-pass applied to every engine's raw output:
// collapse doubled Georgian letters (a frequent recognition artifact),
// strip stray symbols, normalize whitespace and punctuation spacing, and
// drop lines that are mostly unrecognized noise.
func Cleanup(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = collapseDoubledGeorgian(line)
		line = strings.Map(func(r rune) rune {
			if strings.ContainsRune(straySymbols, r) {
				return -1
			}
			return r
		}, line)
		line = normalizeSpacing(line)
		if line == "" {
			out = append(out, "")
			continue
		}
		if recognizedRatio(line) < 0.5 {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// collapseDoubledGeorgian folds runs of the same Georgian letter into one.
// Georgian orthography has no geminate letters, so a doubled letter is an
// artifact of the engine splitting one glyph into two.
func collapseDoubledGeorgian(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r == prev && unicode.Is(unicode.Georgian, r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func normalizeSpacing(s string) string {
	fields := strings.Fields(s)
	s = strings.Join(fields, " ")
	// no space before closing punctuation
	for _, p := range []string{" ,", " .", " ;", " :", " !", " ?", " )"} {
		s = strings.ReplaceAll(s, p, p[1:])
	}
	s = strings.ReplaceAll(s, "( ", "(")
	return s
}

// recognizedRatio is the share of a line's non-space runes that belong to
// the scripts and character classes the engine is expected to produce.
// Lines below one half are treated as noise from images and rules.
func recognizedRatio(line string) float64 {
	var total, good int
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Georgian, r),
			unicode.Is(unicode.Latin, r),
			unicode.Is(unicode.Cyrillic, r),
			unicode.IsDigit(r),
			unicode.IsPunct(r):
			good++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}
