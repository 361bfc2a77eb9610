// Package extractor reads a PDF's native text layer. pdfcpu supplies the
// document structure (xref, decoded page content streams, font dictionaries);
// the content-stream walk, text positioning, deduplication, and legacy-font
// correction live here.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/unicode/norm"

	"github.com/medgeo/docextract/fontenc"
	"github.com/medgeo/docextract/observability"
	"github.com/medgeo/docextract/recovery"
)

// PageBreak separates per-page text in the document-level string.
const PageBreak = "\f"

// Config tunes an Extractor. Zero values get sane defaults.
type Config struct {
	// Table is the legacy-font correction table applied to runs drawn with
	// fonts the analyzer classifies as legacy Georgian.
	Table *fontenc.Table

	// Recovery decides what happens on a per-page failure. Default Lenient:
	// the page contributes empty text and extraction continues.
	Recovery recovery.Strategy

	Logger observability.Logger
}

func (c *Config) defaults() {
	if c.Table == nil {
		c.Table = fontenc.DefaultTable()
	}
	if c.Recovery == nil {
		c.Recovery = recovery.NewLenient()
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
}

// Extractor holds a parsed PDF and its font diagnostics.
type Extractor struct {
	cfg      Config
	ctx      *model.Context
	fonts    []fontenc.FontInfo
	profiles []fontenc.Profile
	decoders map[string]*toUnicodeMap // keyed by BaseFont name
	remap    map[string]bool          // BaseFont -> run through correction table

	pageFontMaps []map[string]string // built lazily, index = pageNr-1
}

// Result is the direct-extraction output for one document.
type Result struct {
	Pages []string
	Text  string
	// SawTextOperators is true when any page content contained a text-showing
	// operator, even if it decoded to nothing. A false value on a non-empty
	// document marks an image-only PDF.
	SawTextOperators bool
}

// Open parses the PDF and analyzes its fonts. A document that pdfcpu cannot
// read at all is the one hard failure in this package.
func Open(data []byte, cfg Config) (*Extractor, error) {
	cfg.defaults()
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	e := &Extractor{
		cfg:      cfg,
		ctx:      ctx,
		decoders: make(map[string]*toUnicodeMap),
		remap:    make(map[string]bool),
	}
	e.collectFonts()
	e.profiles = fontenc.Analyze(e.fonts)
	for _, p := range e.profiles {
		if p.Remap == fontenc.RemapLegacyGeorgian {
			e.remap[p.Font.Name] = true
		}
	}
	return e, nil
}

// PageCount returns the number of pages.
func (e *Extractor) PageCount() int { return e.ctx.PageCount }

// Profiles returns the per-font encoding diagnostics, one per font found in
// the document.
func (e *Extractor) Profiles() []fontenc.Profile { return e.profiles }

// HasImageStreams reports whether the document carries image XObjects,
// the telltale of a scanned document.
func (e *Extractor) HasImageStreams() bool {
	for pageNr := 1; pageNr <= e.ctx.PageCount; pageNr++ {
		if len(pdfcpu.ImageObjNrs(e.ctx, pageNr)) > 0 {
			return true
		}
	}
	for _, entry := range e.ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

// ExtractText walks every page's content stream and assembles the document
// text. A failing page is routed through the recovery strategy and, when
// skipped, contributes an empty page. onPage, when non-nil, is invoked after
// each page. Context cancellation is honored between pages.
func (e *Extractor) ExtractText(ctx context.Context, onPage func(done, total int)) (Result, error) {
	res := Result{Pages: make([]string, 0, e.ctx.PageCount)}
	total := e.ctx.PageCount
	for pageNr := 1; pageNr <= total; pageNr++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, sawText, err := e.extractPage(pageNr)
		if err != nil {
			e.cfg.Logger.Warn("page extraction failed",
				observability.Int("page", pageNr), observability.Error("err", err))
			if e.cfg.Recovery.OnError(err, recovery.Location{Page: pageNr, Component: "direct"}) == recovery.ActionFail {
				return res, fmt.Errorf("page %d: %w", pageNr, err)
			}
			text = ""
		}
		res.SawTextOperators = res.SawTextOperators || sawText
		res.Pages = append(res.Pages, text)
		if onPage != nil {
			onPage(pageNr, total)
		}
	}
	nonEmpty := make([]string, 0, len(res.Pages))
	for _, p := range res.Pages {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	res.Text = strings.Join(nonEmpty, PageBreak)
	return res, nil
}

func (e *Extractor) extractPage(pageNr int) (string, bool, error) {
	r, err := pdfcpu.ExtractPageContent(e.ctx, pageNr)
	if err != nil {
		return "", false, fmt.Errorf("page content: %w", err)
	}
	if r == nil {
		return "", false, nil
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", false, fmt.Errorf("read content stream: %w", err)
	}
	if buf.Len() == 0 {
		return "", false, nil
	}
	runs, sawText := e.parseContent(buf.Bytes(), e.pageFonts(pageNr))
	runs = DedupRuns(runs)
	SortRuns(runs)
	parts := make([]string, 0, len(runs))
	for _, run := range runs {
		txt := run.Text
		if e.remap[run.Font] {
			txt = e.cfg.Table.Apply(txt)
		}
		if txt != "" {
			parts = append(parts, txt)
		}
	}
	page := strings.TrimSpace(strings.Join(parts, " "))
	return norm.NFC.String(page), sawText, nil
}

// collectFonts walks the xref table for font dictionaries. Malformed entries
// become Malformed FontInfos; this step never fails the document.
func (e *Extractor) collectFonts() {
	seen := make(map[string]bool)
	for _, entry := range e.ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		d, ok := entry.Object.(types.Dict)
		if !ok {
			continue
		}
		typ, found := d.Find("Type")
		if !found {
			continue
		}
		if name, isName := typ.(types.Name); !isName || name != "Font" {
			continue
		}
		info := e.fontInfo(d)
		if info.Name == "" || seen[info.Name] {
			continue
		}
		seen[info.Name] = true
		e.fonts = append(e.fonts, info)
		if info.HasToUnicode {
			if m := e.toUnicode(d); m != nil {
				e.decoders[info.Name] = m
			}
		}
	}
}

func (e *Extractor) fontInfo(d types.Dict) fontenc.FontInfo {
	var info fontenc.FontInfo
	if o, found := d.Find("BaseFont"); found {
		if name, ok := o.(types.Name); ok {
			info.Name = string(name)
		}
	}
	if info.Name == "" {
		info.Malformed = true
		return info
	}
	if o, found := d.Find("Subtype"); found {
		if name, ok := o.(types.Name); ok {
			info.Subtype = string(name)
		}
	}
	if o, found := d.Find("Encoding"); found {
		if name, ok := o.(types.Name); ok {
			info.Encoding = string(name)
		}
	}
	_, info.HasToUnicode = d.Find("ToUnicode")
	if o, found := d.Find("FontDescriptor"); found {
		if fd, err := e.ctx.DereferenceDict(o); err == nil && fd != nil {
			if fl, found := fd.Find("Flags"); found {
				if i, ok := fl.(types.Integer); ok {
					// bit 3 of the descriptor flags
					info.Symbolic = i&4 != 0
				}
			}
		}
	}
	return info
}

// pageFonts maps a page's font resource names (Tf operands) to BaseFont
// names so runs can be tied back to analyzer profiles and CMap decoders.
// Lookup failures yield an empty map; runs then decode through the Latin-1
// fallback.
func (e *Extractor) pageFonts(pageNr int) map[string]string {
	if e.pageFontMaps == nil {
		e.buildPageFonts()
	}
	if pageNr < 1 || pageNr > len(e.pageFontMaps) {
		return nil
	}
	return e.pageFontMaps[pageNr-1]
}

// buildPageFonts walks the page tree once, resolving each page's effective
// Font resource dictionary with parent inheritance.
func (e *Extractor) buildPageFonts() {
	e.pageFontMaps = make([]map[string]string, 0, e.ctx.PageCount)
	catalog, err := e.ctx.Catalog()
	if err != nil || catalog == nil {
		return
	}
	pagesObj, found := catalog.Find("Pages")
	if !found {
		return
	}
	e.walkPageTree(pagesObj, nil, 0)
}

func (e *Extractor) walkPageTree(o types.Object, inherited types.Dict, depth int) {
	if depth > 32 {
		return
	}
	d, err := e.ctx.DereferenceDict(o)
	if err != nil || d == nil {
		return
	}
	res := inherited
	if ro, found := d.Find("Resources"); found {
		if rd, err := e.ctx.DereferenceDict(ro); err == nil && rd != nil {
			res = rd
		}
	}
	typ := ""
	if to, found := d.Find("Type"); found {
		if name, ok := to.(types.Name); ok {
			typ = string(name)
		}
	}
	if typ == "Pages" {
		if ko, found := d.Find("Kids"); found {
			if kids, err := e.ctx.DereferenceArray(ko); err == nil {
				for _, kid := range kids {
					e.walkPageTree(kid, res, depth+1)
				}
			}
		}
		return
	}
	// leaf page
	e.pageFontMaps = append(e.pageFontMaps, e.fontResourceNames(res))
}

func (e *Extractor) fontResourceNames(res types.Dict) map[string]string {
	fonts := make(map[string]string)
	if res == nil {
		return fonts
	}
	fo, found := res.Find("Font")
	if !found {
		return fonts
	}
	fontDict, err := e.ctx.DereferenceDict(fo)
	if err != nil || fontDict == nil {
		return fonts
	}
	for resName, o := range fontDict {
		fd, err := e.ctx.DereferenceDict(o)
		if err != nil || fd == nil {
			continue
		}
		if bf, found := fd.Find("BaseFont"); found {
			if name, ok := bf.(types.Name); ok {
				fonts[resName] = string(name)
			}
		}
	}
	return fonts
}

func (e *Extractor) toUnicode(d types.Dict) *toUnicodeMap {
	o, found := d.Find("ToUnicode")
	if !found {
		return nil
	}
	resolved, err := e.ctx.Dereference(o)
	if err != nil {
		return nil
	}
	sd, ok := resolved.(types.StreamDict)
	if !ok {
		return nil
	}
	if err := sd.Decode(); err != nil {
		return nil
	}
	if len(sd.Content) == 0 {
		return nil
	}
	return parseToUnicodeCMap(sd.Content)
}
