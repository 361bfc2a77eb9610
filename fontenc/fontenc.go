// Package fontenc classifies the trustworthiness of a PDF's embedded font
// encodings. Scanned Georgian medical documents frequently embed legacy fonts
// (AcadNusx and friends) whose byte codes were authored against a pre-Unicode
// glyph order; text extracted through such a font comes out as Latin or
// Latin-Extended code points and has to be remapped before it is usable.
package fontenc

import "strings"

// Remap is the per-font recommendation derived from font metadata.
type Remap string

const (
	// RemapNone means the encoding looks trustworthy.
	RemapNone Remap = "none"
	// RemapLegacyGeorgian means byte codes follow a legacy Georgian glyph
	// order and should be run through the correction table.
	RemapLegacyGeorgian Remap = "legacy-georgian"
	// RemapLatinExtended means the font lacks a usable reverse map and
	// extracted text will likely surface as mojibake in the U+00C0 range.
	RemapLatinExtended Remap = "latin-extended"
	// RemapForceOCR means direct extraction through this font is hopeless
	// and the page should be rasterized instead.
	RemapForceOCR Remap = "forceOCR"
)

// FontInfo is the raw metadata gathered from one font dictionary.
type FontInfo struct {
	Name         string // BaseFont, subset prefixes stripped by the caller
	Subtype      string // Type1, TrueType, Type0, ...
	Encoding     string // named encoding, e.g. WinAnsiEncoding, Identity-H
	Symbolic     bool   // FontDescriptor symbolic flag
	HasToUnicode bool   // a ToUnicode reverse map is present
	Malformed    bool   // the dictionary could not be read
}

// Profile is the analyzer's verdict for one font.
type Profile struct {
	Font       FontInfo
	Remap      Remap
	Confidence float64 // in [0,1]
}

// legacyGeorgianFamilies are font family identifiers known to carry the
// legacy (non-Unicode) Georgian glyph order. Matched case-insensitively as
// substrings so subset-tagged and vendor-suffixed names still hit.
var legacyGeorgianFamilies = []string{
	"acadnusx",
	"acadmtavr",
	"litnusx",
	"litmtavr",
	"kolkheti",
	"chveulebrivi",
	"dumbadze",
	"geo_",
}

// Analyze produces one Profile per font. It is a pure function of the font
// metadata and never fails: malformed dictionaries yield a low-confidence
// RemapNone profile so the pipeline can keep going.
func Analyze(fonts []FontInfo) []Profile {
	profiles := make([]Profile, 0, len(fonts))
	for _, f := range fonts {
		profiles = append(profiles, analyzeOne(f))
	}
	return profiles
}

func analyzeOne(f FontInfo) Profile {
	if f.Malformed {
		return Profile{Font: f, Remap: RemapNone, Confidence: 0.1}
	}
	lower := strings.ToLower(f.Name)
	for _, family := range legacyGeorgianFamilies {
		if strings.Contains(lower, family) {
			return Profile{Font: f, Remap: RemapLegacyGeorgian, Confidence: 0.9}
		}
	}
	if strings.HasPrefix(f.Encoding, "Identity") && !f.HasToUnicode {
		return Profile{Font: f, Remap: RemapForceOCR, Confidence: 0.8}
	}
	if !f.HasToUnicode || f.Symbolic {
		return Profile{Font: f, Remap: RemapLatinExtended, Confidence: 0.6}
	}
	return Profile{Font: f, Remap: RemapNone, Confidence: 0.5}
}

// Suspicious reports whether any profile points at an encoding problem that
// makes garbled direct-extraction output plausible.
func Suspicious(profiles []Profile) bool {
	for _, p := range profiles {
		switch p.Remap {
		case RemapLegacyGeorgian, RemapLatinExtended, RemapForceOCR:
			return true
		}
	}
	return false
}

// WantsOCR reports whether any font is classified as unextractable.
func WantsOCR(profiles []Profile) bool {
	for _, p := range profiles {
		if p.Remap == RemapForceOCR {
			return true
		}
	}
	return false
}

// NeedsLegacyRemap reports whether any font should be run through the
// legacy Georgian correction table.
func NeedsLegacyRemap(profiles []Profile) bool {
	for _, p := range profiles {
		if p.Remap == RemapLegacyGeorgian {
			return true
		}
	}
	return false
}
