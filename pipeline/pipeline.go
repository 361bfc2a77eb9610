// Package pipeline runs a document through direct extraction, quality
// assessment, and the OCR / cloud-vision fallbacks, returning the best text
// any method produced.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/medgeo/docextract/document"
	"github.com/medgeo/docextract/extractor"
	"github.com/medgeo/docextract/fontenc"
	"github.com/medgeo/docextract/observability"
	"github.com/medgeo/docextract/ocr"
	"github.com/medgeo/docextract/quality"
	"github.com/medgeo/docextract/raster"
	"github.com/medgeo/docextract/recovery"
)

// State names a pipeline stage, also used in progress events.
type State string

const (
	StateAnalyzing        State = "analyzing"
	StateDirectExtracting State = "direct-extracting"
	StateQualityCheck     State = "quality-check"
	StateCloudVision      State = "cloud-vision-attempt"
	StateOCR              State = "ocr-attempt"
	StateDone             State = "done"
)

// Method identifies which stage produced the final text.
type Method string

const (
	MethodDirect Method = "direct"
	MethodOCR    Method = "ocr"
	MethodVision Method = "cloud-vision"
)

// Attempt records one extraction method's outcome, in execution order.
type Attempt struct {
	Method     Method
	Chars      int
	Confidence float64
	Accepted   bool
	Err        string
}

// Result is the pipeline output.
type Result struct {
	Text      string
	PageCount int
	// Success is false only when no method could run at all. Empty text
	// from a readable document is a success.
	Success bool
	Method  Method
	// Confidence is in [0,1]. Values from different methods are not
	// comparable; it is informational, never used for selection.
	Confidence float64
	Attempts   []Attempt
	// Stats are advisory metrics over the final text.
	Stats   Stats
	Error   string
	Elapsed time.Duration
}

// Stats captures extraction-quality metrics for auditing.
type Stats struct {
	CharsPerPage   float64
	PrintableRatio float64
}

// VisionClient is the cloud fallback contract; satisfied by
// vision.Transcriber.
type VisionClient interface {
	Available() bool
	Transcribe(ctx context.Context, doc *document.Document) (string, error)
}

// Config wires the pipeline's stages. Zero values get defaults; a nil
// Engine or Vision simply disables that fallback.
type Config struct {
	Table     *fontenc.Table
	Assessor  *quality.Assessor
	Engine    ocr.Engine
	Vision    VisionClient
	Raster    raster.Options
	Languages []string
	// TokenBudget caps the final text size. Default 25000 tokens.
	TokenBudget int
	Recovery    recovery.Strategy
	Logger      observability.Logger
}

func (c *Config) defaults() {
	if c.Table == nil {
		c.Table = fontenc.DefaultTable()
	}
	if c.Assessor == nil {
		c.Assessor = quality.NewAssessor()
	}
	if len(c.Languages) == 0 {
		c.Languages = ocr.DefaultLanguages
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = DefaultTokenBudget
	}
	if c.Recovery == nil {
		c.Recovery = recovery.NewLenient()
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
}

// Pipeline extracts text from documents. Instances are stateless between
// calls and safe for concurrent Extract invocations.
type Pipeline struct {
	cfg Config
}

// New builds a Pipeline.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{cfg: cfg}
}

// Extract runs the full state machine on one document. onProgress, when
// non-nil, receives advisory events; it must be fast and never blocks the
// pipeline. Cancellation is honored between pages and before network calls;
// a canceled extraction returns the best text gathered so far with
// Success=false.
func (p *Pipeline) Extract(ctx context.Context, doc *document.Document, onProgress func(ProgressEvent)) Result {
	start := time.Now()
	sink := newProgressSink(onProgress)
	res := p.run(ctx, doc, sink)
	res.Elapsed = time.Since(start)
	sink.finish()
	p.cfg.Logger.Info("extraction finished",
		observability.String("document", doc.Name()),
		observability.String("method", string(res.Method)),
		observability.Int("pages", res.PageCount),
		observability.Int("chars", len(res.Text)),
		observability.Duration(observability.MetricTotalTime, res.Elapsed))
	return res
}

func (p *Pipeline) run(ctx context.Context, doc *document.Document, sink *progressSink) Result {
	res := Result{Method: MethodDirect}
	var failures []string

	sink.emit(StateAnalyzing, 2, 0, 0)

	// Analyzing + DirectExtracting apply to PDFs only; an image document
	// arrives at the quality gate with empty text and no text operators,
	// which routes it to OCR.
	var (
		best      string
		sawText   bool
		hasImages bool
		profiles  []fontenc.Profile
		directOK  bool
	)
	if doc.IsPDF() {
		ex, err := extractor.Open(doc.Bytes(), extractor.Config{
			Table:    p.cfg.Table,
			Recovery: p.cfg.Recovery,
			Logger:   p.cfg.Logger,
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("direct: %v", err))
			res.Attempts = append(res.Attempts, Attempt{Method: MethodDirect, Err: err.Error()})
		} else {
			res.PageCount = ex.PageCount()
			profiles = ex.Profiles()
			hasImages = ex.HasImageStreams()
			dres, err := ex.ExtractText(ctx, func(done, total int) {
				sink.emit(StateDirectExtracting, 5+35*done/total, done, total)
			})
			if err != nil {
				if ctx.Err() != nil {
					return p.canceled(res, best, ctx)
				}
				failures = append(failures, fmt.Sprintf("direct: %v", err))
				res.Attempts = append(res.Attempts, Attempt{Method: MethodDirect, Err: err.Error()})
			} else {
				directOK = true
				best = dres.Text
				sawText = dres.SawTextOperators
				if best == "" {
					// second opinion from the renderer's own text layer
					best = p.nativeText(ctx, doc)
				}
				res.Attempts = append(res.Attempts, Attempt{Method: MethodDirect, Chars: len(best), Accepted: best != ""})
			}
		}
	} else {
		res.PageCount = 1
		hasImages = true
	}

	verdict := p.cfg.Assessor.Classify(best)
	res.Confidence = verdict.Confidence
	sink.emit(StateQualityCheck, 45, 0, 0)
	p.cfg.Logger.Debug("quality verdict",
		observability.String("class", string(verdict.Class)),
		observability.Float64("confidence", verdict.Confidence),
		observability.Float64("scriptRatio", verdict.ScriptRatio))

	wantVision := visionEligible(verdict, profiles) &&
		targetScriptPresent(verdict, profiles) &&
		p.cfg.Vision != nil && p.cfg.Vision.Available()
	wantOCR := ocrEligible(verdict, len(best), res.PageCount, sawText, hasImages)

	if wantVision {
		if err := ctx.Err(); err != nil {
			return p.canceled(res, best, ctx)
		}
		sink.emit(StateCloudVision, 55, 0, 0)
		text, err := p.cfg.Vision.Transcribe(ctx, doc)
		att := Attempt{Method: MethodVision, Chars: len(text)}
		switch {
		case err != nil:
			att.Err = err.Error()
			failures = append(failures, fmt.Sprintf("vision: %v", err))
			wantOCR = true
		case acceptVision(len(text), len(best)):
			att.Accepted = true
			best = text
			res.Method = MethodVision
			res.Confidence = 0
			wantOCR = false
		default:
			// shorter than the local text: likely truncated remotely
			wantOCR = true
		}
		res.Attempts = append(res.Attempts, att)
		sink.emit(StateCloudVision, 70, 0, 0)
	}

	ocrRan := false
	if wantOCR && p.cfg.Engine != nil {
		text, conf, pages, err := p.runOCR(ctx, doc, sink)
		if ctx.Err() != nil {
			return p.canceled(res, best, ctx)
		}
		att := Attempt{Method: MethodOCR, Chars: len(text), Confidence: conf}
		if err != nil {
			att.Err = err.Error()
			failures = append(failures, fmt.Sprintf("ocr: %v", err))
		} else {
			ocrRan = true
			if pages > res.PageCount {
				res.PageCount = pages
			}
			// longer output is the completeness proxy: OCR replaces the
			// best text only when it strictly beats it
			if len(text) > len(best) {
				att.Accepted = true
				best = text
				res.Method = MethodOCR
				res.Confidence = conf
			}
		}
		res.Attempts = append(res.Attempts, att)
	}

	res.Text = Finalize(best, p.cfg.TokenBudget)
	res.Stats = computeStats(res.Text, res.PageCount)
	res.Success = directOK || ocrRan || res.Method != MethodDirect || res.Text != ""
	if !res.Success {
		res.Error = strings.Join(failures, "; ")
		if res.Error == "" {
			res.Error = "no extraction method available"
		}
	}
	return res
}

// runOCR rasterizes and recognizes every page sequentially; one raster
// buffer is alive at a time to cap peak memory.
func (p *Pipeline) runOCR(ctx context.Context, doc *document.Document, sink *progressSink) (string, float64, int, error) {
	if !doc.IsPDF() {
		sink.emit(StateOCR, 75, 1, 1)
		img, err := raster.DecodeImage(doc.Bytes(), p.cfg.Raster)
		if err != nil {
			return "", 0, 0, err
		}
		r, err := p.recognize(ctx, img, 0, 1, sink)
		if err != nil {
			return "", 0, 0, err
		}
		return r.Text, r.Confidence / 100, 1, nil
	}

	rend, err := raster.Open(doc.Bytes(), p.cfg.Raster)
	if err != nil {
		return "", 0, 0, fmt.Errorf("rasterize: %w", err)
	}
	defer rend.Close()

	total := rend.PageCount()
	pages := make([]string, 0, total)
	var confSum float64
	var confPages int
	for pageNr := 1; pageNr <= total; pageNr++ {
		if err := ctx.Err(); err != nil {
			return strings.Join(pages, "\n\n"), meanConf(confSum, confPages), total, err
		}
		img, err := rend.RenderPage(pageNr)
		if err == nil {
			var r ocr.Result
			r, err = p.recognize(ctx, img, pageNr-1, total, sink)
			if err == nil {
				pages = append(pages, r.Text)
				confSum += r.Confidence
				confPages++
			}
		}
		if err != nil {
			p.cfg.Logger.Warn("page ocr failed",
				observability.Int("page", pageNr), observability.Error("err", err))
			if p.cfg.Recovery.OnError(err, recovery.Location{Page: pageNr, Component: "ocr"}) == recovery.ActionFail {
				return "", 0, total, fmt.Errorf("page %d: %w", pageNr, err)
			}
		}
		sink.emit(StateOCR, 50+45*pageNr/total, pageNr, total)
	}
	return strings.TrimSpace(strings.Join(pages, "\n\n")), meanConf(confSum, confPages) / 100, total, nil
}

func (p *Pipeline) recognize(ctx context.Context, img image.Image, pageIndex, total int, sink *progressSink) (ocr.Result, error) {
	data, err := ocr.EncodePNG(img)
	if err != nil {
		return ocr.Result{}, err
	}
	in := ocr.NewInput(data, pageIndex,
		ocr.WithLanguages(p.cfg.Languages...),
		ocr.WithProgress(func(pct int) {
			sink.emit(StateOCR, 50+45*(pageIndex*100+pct)/(total*100), pageIndex+1, total)
		}))
	r, err := p.cfg.Engine.Recognize(ctx, in)
	if err != nil {
		return ocr.Result{}, err
	}
	// engines not built in this module may skip the fixed post-pass;
	// Cleanup is a no-op on already-clean text
	r.Text = ocr.Cleanup(r.Text)
	return r, nil
}

// nativeText is the renderer's own text layer, used when the content-stream
// walk yields nothing but the document may still carry text.
func (p *Pipeline) nativeText(ctx context.Context, doc *document.Document) string {
	rend, err := raster.Open(doc.Bytes(), p.cfg.Raster)
	if err != nil {
		return ""
	}
	defer rend.Close()
	pages := make([]string, 0, rend.PageCount())
	for pageNr := 1; pageNr <= rend.PageCount(); pageNr++ {
		if ctx.Err() != nil {
			break
		}
		if text, err := rend.NativeText(pageNr); err == nil && strings.TrimSpace(text) != "" {
			pages = append(pages, strings.TrimSpace(text))
		}
	}
	return strings.Join(pages, extractor.PageBreak)
}

func (p *Pipeline) canceled(res Result, best string, ctx context.Context) Result {
	res.Text = Finalize(best, p.cfg.TokenBudget)
	res.Stats = computeStats(res.Text, res.PageCount)
	res.Success = false
	res.Error = ctx.Err().Error()
	return res
}

func meanConf(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// visionEligible implements the cloud-fallback gate: clearly garbled text,
// or poor text with real target-script presence and a font profile that
// explains the damage.
func visionEligible(v quality.Verdict, profiles []fontenc.Profile) bool {
	switch v.Class {
	case quality.ClassGarbled:
		return v.Confidence > 0.6
	case quality.ClassPoor:
		return v.ScriptRatio > 0.1 && v.Confidence > 0.5 && fontenc.Suspicious(profiles)
	}
	return false
}

// targetScriptPresent reports whether the document plausibly contains the
// target script: decoded Georgian runes, the Latin-Extended mojibake that
// legacy Georgian fonts produce, or a font profile demanding legacy remap.
func targetScriptPresent(v quality.Verdict, profiles []fontenc.Profile) bool {
	return v.ScriptRatio > 0 || v.LatinExtRatio > 0 || fontenc.NeedsLegacyRemap(profiles)
}

// ocrEligible routes to OCR on a poor or garbled verdict, or when a
// document with pages produced no text and either showed no text operators
// at all or carries image streams (the image-only case, corroborated by the
// scanned-page telltale).
func ocrEligible(v quality.Verdict, bestLen, pageCount int, sawText, hasImages bool) bool {
	if v.Class == quality.ClassPoor || v.Class == quality.ClassGarbled {
		return true
	}
	return bestLen == 0 && pageCount > 0 && (!sawText || hasImages)
}

// acceptVision keeps the remote result only when its length exceeds 80% of
// the best local text, the proxy for a complete transcription.
func acceptVision(visionLen, bestLen int) bool {
	return visionLen > 0 && float64(visionLen) > 0.8*float64(bestLen)
}
