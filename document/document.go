// Package document defines the immutable input value handed to the
// extraction pipeline: raw bytes plus a declared media type. Documents are
// created by the caller, read-only through the pipeline, and never mutated.
package document

import (
	"bytes"
	"errors"
	"fmt"
)

// MediaType declares how the document bytes should be interpreted.
type MediaType string

const (
	MediaTypePDF   MediaType = "pdf"
	MediaTypeImage MediaType = "image"
)

var pdfMagic = []byte("%PDF-")

// ErrEmpty is returned when a document is constructed from zero bytes.
var ErrEmpty = errors.New("document: empty input")

// Document is an immutable extraction input.
type Document struct {
	data      []byte
	mediaType MediaType
	name      string
}

// New validates the input and returns a Document. The bytes are copied so the
// caller may reuse its buffer. A declared PDF whose bytes do not start with
// the PDF magic is rejected here, before any stage runs.
func New(data []byte, mt MediaType, name string) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	switch mt {
	case MediaTypePDF:
		if !bytes.HasPrefix(data, pdfMagic) {
			return nil, fmt.Errorf("document: %q declared as pdf but missing %%PDF header", name)
		}
	case MediaTypeImage:
	default:
		return nil, fmt.Errorf("document: unsupported media type %q", mt)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return &Document{data: copied, mediaType: mt, name: name}, nil
}

// Bytes returns the raw document bytes. Callers must not modify the returned
// slice; it is shared across pipeline stages.
func (d *Document) Bytes() []byte { return d.data }

// MediaType reports the declared media type.
func (d *Document) MediaType() MediaType { return d.mediaType }

// MIME returns the IANA media type for the document bytes. Image formats are
// sniffed from their magic numbers.
func (d *Document) MIME() string {
	if d.mediaType == MediaTypePDF {
		return "application/pdf"
	}
	switch {
	case bytes.HasPrefix(d.data, []byte("\x89PNG")):
		return "image/png"
	case bytes.HasPrefix(d.data, []byte{0xFF, 0xD8}):
		return "image/jpeg"
	}
	return "application/octet-stream"
}

// Name returns the caller-supplied display name, usually a file name.
func (d *Document) Name() string { return d.name }

// Size returns the byte length of the document.
func (d *Document) Size() int { return len(d.data) }

// IsPDF reports whether the document is a PDF.
func (d *Document) IsPDF() bool { return d.mediaType == MediaTypePDF }
