// Package ocr defines the recognition-engine contract the pipeline falls
// back to for scanned documents, plus the fixed text cleanup applied to
// every engine's output.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
)

// DefaultLanguages is the combined model hint for the documents this
// pipeline targets: Georgian first, then Russian and English.
var DefaultLanguages = []string{"kat", "rus", "eng"}

// Input is a single rasterized page submitted for recognition.
type Input struct {
	// Image is the PNG-encoded page.
	Image []byte
	// PageIndex is the zero-based page this image came from.
	PageIndex int
	// DPI is the effective resolution of the image; zero means unknown.
	DPI int
	// Languages are trained-data hints (e.g. "kat", "rus", "eng"). Empty
	// means engine default.
	Languages []string
	// Progress, when non-nil, receives the engine's own progress for this
	// page in 0..100. Calls must never block.
	Progress func(pct int)
}

// InputOption mutates a recognition input before submission.
type InputOption func(*Input)

// WithLanguages sets trained-data hints for the engine.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = langs }
}

// WithDPI records the effective resolution of the image.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithProgress attaches a per-page progress callback.
func WithProgress(fn func(pct int)) InputOption {
	return func(in *Input) { in.Progress = fn }
}

// NewInput builds the Input for one rasterized page.
func NewInput(image []byte, pageIndex int, opts ...InputOption) Input {
	in := Input{Image: image, PageIndex: pageIndex}
	for _, opt := range opts {
		opt(&in)
	}
	return in
}

// Result is one page's recognition output.
type Result struct {
	Text string
	// Confidence is the engine-reported mean word confidence, 0..100.
	Confidence float64
}

// Engine is the provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// EncodePNG encodes a rasterized page for engine submission.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return buf.Bytes(), nil
}
