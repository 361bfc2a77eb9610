// Package raster turns PDF pages and standalone images into pixel buffers
// ready for OCR. Pages are rendered with MuPDF (go-fitz) at the highest DPI
// that fits a pixel ceiling; buffers get a white background fill because
// transparent regions otherwise rasterize black and wreck recognition.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gen2brain/go-fitz"
	xdraw "golang.org/x/image/draw"

	// standalone image decoders
	_ "image/jpeg"
	_ "image/png"
)

// ErrPageOutOfRange is returned for page numbers outside 1..PageCount.
var ErrPageOutOfRange = errors.New("raster: page out of range")

// Options bound the size of rendered buffers. Zero values get defaults.
type Options struct {
	// PixelCeiling caps total pixels per buffer. Default 50M.
	PixelCeiling int
	// MaxDimension caps either side of the buffer. Default 8192.
	MaxDimension int
	// MinDPI is the legibility floor; rendering never drops below it even
	// for very large pages. Default 120.
	MinDPI float64
	// MaxDPI is the preferred rendering resolution. Default 300.
	MaxDPI float64
}

func (o *Options) defaults() {
	if o.PixelCeiling <= 0 {
		o.PixelCeiling = 50_000_000
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = 8192
	}
	if o.MinDPI <= 0 {
		o.MinDPI = 120
	}
	if o.MaxDPI <= 0 {
		o.MaxDPI = 300
	}
}

// Renderer rasterizes the pages of one PDF document. Not safe for concurrent
// use; the pipeline renders pages one at a time anyway to cap peak memory.
type Renderer struct {
	doc  *fitz.Document
	opts Options
}

// Open parses the PDF for rendering.
func Open(data []byte, opts Options) (*Renderer, error) {
	opts.defaults()
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return &Renderer{doc: doc, opts: opts}, nil
}

// Close releases the underlying document.
func (r *Renderer) Close() error { return r.doc.Close() }

// PageCount returns the number of pages.
func (r *Renderer) PageCount() int { return r.doc.NumPage() }

// RenderPage rasterizes one page (1-based) at the best DPI that fits the
// configured ceilings. The caller owns the returned buffer and should drop
// it as soon as the OCR pass has consumed it.
func (r *Renderer) RenderPage(pageNr int) (*image.RGBA, error) {
	if pageNr < 1 || pageNr > r.doc.NumPage() {
		return nil, ErrPageOutOfRange
	}
	bounds, err := r.doc.Bound(pageNr - 1)
	if err != nil {
		return nil, fmt.Errorf("page %d bounds: %w", pageNr, err)
	}
	dpi := FitDPI(bounds.Dx(), bounds.Dy(), r.opts)
	img, err := r.doc.ImageDPI(pageNr-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageNr, err)
	}
	return FlattenWhite(img), nil
}

// NativeText returns MuPDF's own text layer for a page (1-based). It is a
// second opinion on the direct extraction and is empty for scanned pages.
func (r *Renderer) NativeText(pageNr int) (string, error) {
	if pageNr < 1 || pageNr > r.doc.NumPage() {
		return "", ErrPageOutOfRange
	}
	return r.doc.Text(pageNr - 1)
}

// FitDPI picks the highest DPI in [MinDPI, MaxDPI] whose rendered size for a
// page of w x h points stays under the pixel ceiling and max dimension. The
// floor wins over the ceiling: tiny-but-legible beats unreadable.
func FitDPI(w, h int, opts Options) float64 {
	opts.defaults()
	if w <= 0 || h <= 0 {
		return opts.MaxDPI
	}
	dpi := opts.MaxDPI
	// points are 1/72 inch
	scale := func(d float64) (float64, float64) {
		return float64(w) * d / 72, float64(h) * d / 72
	}
	if pw, ph := scale(dpi); pw*ph > float64(opts.PixelCeiling) {
		dpi = 72 * math.Sqrt(float64(opts.PixelCeiling)/float64(w*h))
	}
	if pw, ph := scale(dpi); pw > float64(opts.MaxDimension) || ph > float64(opts.MaxDimension) {
		longest := float64(w)
		if h > w {
			longest = float64(h)
		}
		dpi = 72 * float64(opts.MaxDimension) / longest
	}
	if dpi < opts.MinDPI {
		dpi = opts.MinDPI
	}
	return dpi
}

// FlattenWhite composites src over an opaque white background.
func FlattenWhite(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Over)
	return dst
}

// DecodeImage decodes a standalone image (PNG or JPEG), flattens it onto
// white, and downscales it if it exceeds the ceilings.
func DecodeImage(data []byte, opts Options) (*image.RGBA, error) {
	opts.defaults()
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img := FlattenWhite(src)
	if f := shrinkFactor(img.Bounds().Dx(), img.Bounds().Dy(), opts); f < 1 {
		img = scaleBy(img, f)
	}
	return img, nil
}

// shrinkFactor returns the factor (<=1) that brings w x h under the pixel
// ceiling and max dimension, or 1 when it already fits.
func shrinkFactor(w, h int, opts Options) float64 {
	f := 1.0
	if p := float64(w) * float64(h); p > float64(opts.PixelCeiling) {
		f = math.Sqrt(float64(opts.PixelCeiling) / p)
	}
	longest := float64(w)
	if h > w {
		longest = float64(h)
	}
	if longest*f > float64(opts.MaxDimension) {
		f = float64(opts.MaxDimension) / longest
	}
	return f
}

func scaleBy(src *image.RGBA, f float64) *image.RGBA {
	w := int(math.Floor(float64(src.Bounds().Dx()) * f))
	h := int(math.Floor(float64(src.Bounds().Dy()) * f))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
