// Package tesseract adapts the gosseract client to the ocr.Engine contract.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/medgeo/docextract/ocr"
)

// Engine recognizes pages with a local Tesseract installation. A fresh
// client is created per page so a crashed recognition cannot poison the
// next one.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs one page through Tesseract and applies the standard output
// cleanup. Confidence is the mean word confidence in 0..100. gosseract
// exposes no intra-page progress hook, so in.Progress fires once, at 100,
// when the page completes.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	langs := in.Languages
	if len(langs) == 0 {
		langs = ocr.DefaultLanguages
	}
	if err := c.SetLanguage(langs...); err != nil {
		return ocr.Result{}, fmt.Errorf("set languages: %w", err)
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	conf := meanWordConfidence(c)
	if in.Progress != nil {
		in.Progress(100)
	}
	return ocr.Result{
		Text:       ocr.Cleanup(strings.TrimSpace(text)),
		Confidence: conf,
	}, nil
}

func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}
