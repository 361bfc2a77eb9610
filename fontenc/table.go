package fontenc

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table is a data-driven correction table for text extracted through a
// legacy-Georgian font. It holds two rule sets: word-level replacements for
// curated garbled terms, and character-level replacements following the
// legacy glyph order. Word rules win: they are applied first, longest key
// first, so an already-corrected term is never re-mangled by the character
// pass.
type Table struct {
	Chars map[string]string `yaml:"chars"`
	Words map[string]string `yaml:"words"`

	wordKeys []string // length-descending
	charRepl *strings.Replacer
}

// LoadTable reads a YAML table with top-level "chars" and "words" mappings.
func LoadTable(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read correction table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse correction table: %w", err)
	}
	t.compile()
	return &t, nil
}

func (t *Table) compile() {
	t.wordKeys = make([]string, 0, len(t.Words))
	for k := range t.Words {
		t.wordKeys = append(t.wordKeys, k)
	}
	sort.Slice(t.wordKeys, func(i, j int) bool {
		if len(t.wordKeys[i]) != len(t.wordKeys[j]) {
			return len(t.wordKeys[i]) > len(t.wordKeys[j])
		}
		return t.wordKeys[i] < t.wordKeys[j]
	})
	pairs := make([]string, 0, len(t.Chars)*2)
	for k, v := range t.Chars {
		pairs = append(pairs, k, v)
	}
	t.charRepl = strings.NewReplacer(pairs...)
}

// Apply runs the correction table over text: word rules in length-descending
// order, then the character rules on whatever remains.
func (t *Table) Apply(text string) string {
	if t == nil || text == "" {
		return text
	}
	if t.wordKeys == nil {
		t.compile()
	}
	for _, k := range t.wordKeys {
		text = strings.ReplaceAll(text, k, t.Words[k])
	}
	return t.charRepl.Replace(text)
}

// GarbledWords returns the word-rule keys, the curated list of fragments
// whose presence marks a text sample as garbled.
func (t *Table) GarbledWords() []string {
	if t.wordKeys == nil {
		t.compile()
	}
	out := make([]string, len(t.wordKeys))
	copy(out, t.wordKeys)
	return out
}

// DefaultTable returns the compiled-in correction table: the AcadNusx-layout
// Latin-to-Mkhedruli character map plus curated garbled medical terms seen in
// real lab reports.
func DefaultTable() *Table {
	t := &Table{
		Chars: map[string]string{
			"a": "ა", "b": "ბ", "g": "გ", "d": "დ", "e": "ე", "v": "ვ",
			"z": "ზ", "T": "თ", "i": "ი", "k": "კ", "l": "ლ", "m": "მ",
			"n": "ნ", "o": "ო", "p": "პ", "J": "ჟ", "r": "რ", "s": "ს",
			"t": "ტ", "u": "უ", "f": "ფ", "q": "ქ", "R": "ღ", "y": "ყ",
			"S": "შ", "C": "ჩ", "c": "ც", "Z": "ძ", "w": "წ", "W": "ჭ",
			"x": "ხ", "j": "ჯ", "h": "ჰ",
		},
		Words: map[string]string{
			"ლქოთპსოთპთ":   "ლაბორატორია",
			"სავაპასდო":    "სავარაუდო",
			"დთაგნოზთ":     "დიაგნოზი",
			"ანალთზთ":      "ანალიზი",
			"ჰემოგლობთნთ":  "ჰემოგლობინი",
			"პაცთენტთ":     "პაციენტი",
			"კონსულტაცთა":  "კონსულტაცია",
		},
	}
	t.compile()
	return t
}
