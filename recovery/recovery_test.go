package recovery

import (
	"errors"
	"strings"
	"testing"
)

func TestStrict(t *testing.T) {
	s := NewStrict()
	if got := s.OnError(errors.New("bad page"), Location{Page: 1, Component: "direct"}); got != ActionFail {
		t.Fatalf("Strict.OnError = %v, want ActionFail", got)
	}
}

func TestLenient(t *testing.T) {
	l := NewLenient()
	if got := l.OnError(errors.New("garbage stream"), Location{Page: 3, Component: "direct"}); got != ActionSkip {
		t.Fatalf("Lenient.OnError = %v, want ActionSkip", got)
	}
	l.OnError(errors.New("render failed"), Location{Component: "raster"})

	errs := l.Errors()
	if len(errs) != 2 {
		t.Fatalf("recorded %d errors, want 2", len(errs))
	}
	if !strings.Contains(errs[0].Error(), "direct page 3") {
		t.Fatalf("unexpected first error: %v", errs[0])
	}
	if strings.Contains(errs[1].Error(), "page") {
		t.Fatalf("non page-scoped error should omit page: %v", errs[1])
	}
}
