// Package quality scores extracted text for garbled-ness. The dominant
// failure mode for Georgian medical PDFs is a legacy font encoding that
// surfaces as Latin-Extended mojibake or as curated garbled fragments; a
// secondary one is renderer-induced duplication of whole runs. Classification
// is a pure function: no I/O, deterministic, total.
package quality

import (
	"strings"
	"time"
	"unicode"

	"github.com/dlclark/regexp2"

	"github.com/medgeo/docextract/fontenc"
)

// Class buckets a text sample.
type Class string

const (
	ClassGood    Class = "good"
	ClassPoor    Class = "poor"
	ClassGarbled Class = "garbled"
)

// Verdict is the assessor's output. Confidence is a heuristic certainty in
// [0,1] and is not comparable with OCR engine confidences, which live on a
// 0-100 scale in their own package.
type Verdict struct {
	Class         Class
	Confidence    float64
	ScriptRatio   float64 // target-script runes / total runes
	LatinExtRatio float64 // U+00C0..U+00FF runes / total runes
	RepeatedRuns  int
	Signature     string // matched garbled fragment, empty when none
}

// repeatedRunRe finds a substring of at least five characters immediately
// repeated at least twice more. RE2 has no backreferences, hence regexp2.
// The non-greedy group keeps one duplicated block from counting as many.
var repeatedRunRe = func() *regexp2.Regexp {
	re := regexp2.MustCompile(`(.{5,}?)\1{2,}`, regexp2.None)
	re.MatchTimeout = 250 * time.Millisecond
	return re
}()

// Assessor classifies text against a curated signature list. The zero-value
// signature list falls back to the default correction table's word rules.
type Assessor struct {
	signatures []string
}

// NewAssessor builds an assessor. With no arguments the garbled-fragment
// signatures of fontenc.DefaultTable are used.
func NewAssessor(signatures ...string) *Assessor {
	if len(signatures) == 0 {
		signatures = fontenc.DefaultTable().GarbledWords()
	}
	return &Assessor{signatures: signatures}
}

// Classify scores a text sample. Rules are evaluated in priority order:
// signature match, Latin-Extended ratio, repeated runs, low target-script
// ratio, then good.
func (a *Assessor) Classify(text string) Verdict {
	v := Verdict{}
	total := 0
	georgian := 0
	latinExt := 0
	for _, r := range text {
		total++
		if unicode.Is(unicode.Georgian, r) {
			georgian++
		}
		if r >= 0x00C0 && r <= 0x00FF {
			latinExt++
		}
	}
	if total > 0 {
		v.ScriptRatio = float64(georgian) / float64(total)
		v.LatinExtRatio = float64(latinExt) / float64(total)
	}
	v.RepeatedRuns = countRepeatedRuns(text)

	for _, sig := range a.signatures {
		if sig != "" && strings.Contains(text, sig) {
			v.Class = ClassGarbled
			v.Confidence = 0.95
			v.Signature = sig
			return v
		}
	}
	switch {
	case v.LatinExtRatio > 0.10:
		v.Class = ClassGarbled
		v.Confidence = 0.9
	case v.RepeatedRuns >= 5:
		v.Class = ClassPoor
		v.Confidence = 0.7
	case v.ScriptRatio > 0 && v.ScriptRatio < 0.30:
		v.Class = ClassPoor
		v.Confidence = 0.6
	default:
		v.Class = ClassGood
		v.Confidence = 0.8
	}
	return v
}

func countRepeatedRuns(text string) int {
	count := 0
	m, err := repeatedRunRe.FindStringMatch(text)
	for err == nil && m != nil {
		count++
		m, err = repeatedRunRe.FindNextMatch(m)
	}
	// A timeout on pathological input just caps the count; classification
	// stays total.
	return count
}
