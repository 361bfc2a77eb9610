package quality

import (
	"strings"
	"testing"
)

func TestClassifySignatures(t *testing.T) {
	a := NewAssessor()
	v := a.Classify("შედეგი: ლქოთპსოთპთ სავაპასდო მონაცემი")
	if v.Class != ClassGarbled {
		t.Fatalf("class = %s, want garbled", v.Class)
	}
	if v.Confidence < 0.95 {
		t.Fatalf("confidence = %v, want >= 0.95", v.Confidence)
	}
	if v.Signature == "" {
		t.Fatal("expected matched signature to be reported")
	}
}

func TestClassifyLatinExtended(t *testing.T) {
	a := NewAssessor()
	// Legacy single-byte Georgian seen through a Latin-1 lens.
	v := a.Classify("ÀÁÂÃÄÅÆÇÈÉ plain tail")
	if v.Class != ClassGarbled || v.Confidence != 0.9 {
		t.Fatalf("verdict = %+v, want garbled/0.9", v)
	}
}

func TestClassifyRepeatedRuns(t *testing.T) {
	a := NewAssessor()
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString(strings.Repeat("blockX", 4)) // 6-char unit repeated 4x
		b.WriteString(" interim text ")
	}
	v := a.Classify(b.String())
	if v.RepeatedRuns < 5 {
		t.Fatalf("repeated runs = %d, want >= 5", v.RepeatedRuns)
	}
	if v.Class != ClassPoor || v.Confidence < 0.7 {
		t.Fatalf("verdict = %+v, want poor/>=0.7", v)
	}
}

func TestClassifyLowScriptRatio(t *testing.T) {
	a := NewAssessor()
	v := a.Classify("mostly latin text with a trace of გა")
	if v.ScriptRatio <= 0 || v.ScriptRatio >= 0.30 {
		t.Fatalf("script ratio = %v, want in (0, 0.30)", v.ScriptRatio)
	}
	if v.Class != ClassPoor || v.Confidence < 0.6 {
		t.Fatalf("verdict = %+v, want poor/>=0.6", v)
	}
}

func TestClassifyGood(t *testing.T) {
	a := NewAssessor()
	for name, text := range map[string]string{
		"georgian": "პაციენტის სისხლის საერთო ანალიზის პასუხი ნორმის ფარგლებშია",
		"english":  "Complete blood count within normal limits.",
		"empty":    "",
	} {
		t.Run(name, func(t *testing.T) {
			v := a.Classify(text)
			if v.Class != ClassGood || v.Confidence != 0.8 {
				t.Fatalf("verdict = %+v, want good/0.8", v)
			}
		})
	}
}

// No Georgian and no Latin-Extended characters must never classify garbled.
func TestNeverGarbledWithoutSignals(t *testing.T) {
	a := NewAssessor()
	samples := []string{
		"plain ascii only",
		"числа и кириллица 123",
		strings.Repeat("abcde", 50),
		"\x00\x01 control noise",
	}
	for _, s := range samples {
		if v := a.Classify(s); v.Class == ClassGarbled {
			t.Fatalf("%q classified garbled: %+v", s, v)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	a := NewAssessor()
	text := "ლქოთპსოთპთ " + strings.Repeat("dup runs ", 30)
	first := a.Classify(text)
	for i := 0; i < 5; i++ {
		if got := a.Classify(text); got != first {
			t.Fatalf("classification not deterministic: %+v vs %+v", got, first)
		}
	}
}
