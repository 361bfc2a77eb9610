package fontenc

import (
	"strings"
	"testing"
)

func TestDefaultTableApply(t *testing.T) {
	tab := DefaultTable()

	t.Run("character-level remap", func(t *testing.T) {
		// "laboratoria" typed through the AcadNusx glyph order.
		got := tab.Apply("laboratoria")
		if got != "ლაბორატორია" {
			t.Fatalf("Apply = %q", got)
		}
	})

	t.Run("word rule wins over character rules", func(t *testing.T) {
		got := tab.Apply("ლქოთპსოთპთ სავაპასდო")
		if got != "ლაბორატორია სავარაუდო" {
			t.Fatalf("Apply = %q", got)
		}
	})

	t.Run("corrected output is stable", func(t *testing.T) {
		once := tab.Apply("ლქოთპსოთპთ")
		twice := tab.Apply(once)
		if once != twice {
			t.Fatalf("repeated Apply changed output: %q -> %q", once, twice)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if tab.Apply("") != "" {
			t.Fatal("empty input should stay empty")
		}
	})
}

func TestLoadTable(t *testing.T) {
	src := `
chars:
  a: ა
  b: ბ
words:
  abba: ბაბა
`
	tab, err := LoadTable(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	// Word rule consumes the whole token before char rules run.
	if got := tab.Apply("abba ab"); got != "ბაბა აბ" {
		t.Fatalf("Apply = %q", got)
	}
}

func TestLoadTableRejectsBadYAML(t *testing.T) {
	if _, err := LoadTable(strings.NewReader("chars: [not a map")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGarbledWordsOrdering(t *testing.T) {
	tab := DefaultTable()
	words := tab.GarbledWords()
	if len(words) == 0 {
		t.Fatal("no garbled words in default table")
	}
	for i := 1; i < len(words); i++ {
		if len(words[i]) > len(words[i-1]) {
			t.Fatalf("words not length-descending at %d: %q after %q", i, words[i], words[i-1])
		}
	}
}
