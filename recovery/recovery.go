// Package recovery decides how the pipeline reacts to partial failures such
// as a single page that cannot be parsed or recognized. A Strategy is
// consulted at the failure site; the returned Action tells the caller whether
// to abort the document or skip the failing unit and continue.
package recovery

import (
	"fmt"
	"sync"
)

// Location identifies where in the pipeline an error occurred.
type Location struct {
	Page      int    // 1-based page number, 0 when not page-scoped
	Component string // "direct", "ocr", "raster", "fonts"
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
)

type Strategy interface {
	OnError(err error, loc Location) Action
}

// Strict aborts the document on the first partial failure.
type Strict struct{}

func NewStrict() *Strict { return &Strict{} }

func (*Strict) OnError(err error, loc Location) Action { return ActionFail }

// Lenient records the error and continues with the failing unit skipped.
// This is the pipeline default: a bad page contributes empty text rather
// than failing the whole document.
type Lenient struct {
	mu     sync.Mutex
	errors []error
}

func NewLenient() *Lenient { return &Lenient{} }

func (l *Lenient) OnError(err error, loc Location) Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	if loc.Page > 0 {
		l.errors = append(l.errors, fmt.Errorf("%s page %d: %w", loc.Component, loc.Page, err))
	} else {
		l.errors = append(l.errors, fmt.Errorf("%s: %w", loc.Component, err))
	}
	return ActionSkip
}

// Errors returns the recorded partial failures in occurrence order.
func (l *Lenient) Errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]error, len(l.errors))
	copy(out, l.errors)
	return out
}
