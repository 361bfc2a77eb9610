package ocr

import (
	"reflect"
	"testing"
)

func TestNewInputDefaults(t *testing.T) {
	in := NewInput([]byte{1, 2}, 3)
	if in.PageIndex != 3 {
		t.Fatalf("PageIndex = %d, want 3", in.PageIndex)
	}
	if in.DPI != 0 || in.Languages != nil || in.Progress != nil {
		t.Fatalf("unexpected non-zero option fields: %+v", in)
	}
}

func TestNewInputOptions(t *testing.T) {
	var got int
	in := NewInput(nil, 0,
		WithLanguages("kat", "eng"),
		WithDPI(300),
		WithProgress(func(pct int) { got = pct }))
	if !reflect.DeepEqual(in.Languages, []string{"kat", "eng"}) {
		t.Fatalf("Languages = %v", in.Languages)
	}
	if in.DPI != 300 {
		t.Fatalf("DPI = %d, want 300", in.DPI)
	}
	in.Progress(42)
	if got != 42 {
		t.Fatalf("progress callback not wired, got %d", got)
	}
}
