package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/medgeo/docextract/document"
	"github.com/medgeo/docextract/fontenc"
	"github.com/medgeo/docextract/ocr"
	"github.com/medgeo/docextract/quality"
)

type fakeEngine struct {
	text  string
	conf  float64
	err   error
	calls int
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	e.calls++
	if e.err != nil {
		return ocr.Result{}, e.err
	}
	if in.Progress != nil {
		in.Progress(100)
	}
	return ocr.Result{Text: e.text, Confidence: e.conf}, nil
}

type fakeVision struct {
	text      string
	err       error
	available bool
	calls     int
}

func (v *fakeVision) Available() bool { return v.available }

func (v *fakeVision) Transcribe(context.Context, *document.Document) (string, error) {
	v.calls++
	return v.text, v.err
}

func imageDoc(t *testing.T) *document.Document {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	doc, err := document.New(buf.Bytes(), document.MediaTypeImage, "scan.png")
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

// buildPDF assembles a classic single-xref PDF with one Helvetica page per
// content stream entry; an empty entry becomes a page with an empty stream.
func buildPDF(t *testing.T, mediaBox string, streams []string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	kids := make([]string, 0, len(streams))
	for i := range streams {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(streams)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, stream := range streams {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [%s] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			mediaBox, 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func textStream(s string) string {
	return "BT /F1 12 Tf 72 712 Td (" + s + ") Tj ET"
}

func pdfDoc(t *testing.T, data []byte) *document.Document {
	t.Helper()
	doc, err := document.New(data, document.MediaTypePDF, "fixture.pdf")
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestExtractPDFCleanTextStaysDirect(t *testing.T) {
	data := buildPDF(t, "0 0 612 792", []string{
		textStream("Annual cardiology report"),
		textStream("Patient history and findings"),
		textStream("Discharge recommendations"),
	})
	engine := &fakeEngine{text: "should never run", conf: 90}
	v := &fakeVision{available: true, text: "should never run"}
	p := New(Config{Engine: engine, Vision: v})

	res := p.Extract(context.Background(), pdfDoc(t, data), nil)
	if !res.Success {
		t.Fatalf("success = false, error = %q", res.Error)
	}
	if res.Method != MethodDirect {
		t.Fatalf("method = %q, want direct", res.Method)
	}
	if res.PageCount != 3 {
		t.Errorf("pages = %d, want 3", res.PageCount)
	}
	for _, want := range []string{"Annual cardiology report", "Patient history and findings", "Discharge recommendations"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("text %q missing page content %q", res.Text, want)
		}
	}
	if engine.calls != 0 {
		t.Errorf("ocr engine called %d times for clean direct text", engine.calls)
	}
	if v.calls != 0 {
		t.Errorf("vision called %d times for clean direct text", v.calls)
	}
}

func TestExtractPDFImageOnlyEscalatesToOCR(t *testing.T) {
	data := buildPDF(t, "0 0 24 24", []string{""})
	engine := &fakeEngine{text: "გამარჯობა მსოფლიო", conf: 80}
	p := New(Config{Engine: engine})

	res := p.Extract(context.Background(), pdfDoc(t, data), nil)
	if !res.Success {
		t.Fatalf("success = false, error = %q", res.Error)
	}
	if res.Method != MethodOCR {
		t.Fatalf("method = %q, want ocr", res.Method)
	}
	if res.Text != "გამარჯობა მსოფლიო" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Confidence != 0.8 {
		t.Errorf("confidence = %g, want 0.8", res.Confidence)
	}
	if engine.calls != 1 {
		t.Errorf("engine called %d times, want 1", engine.calls)
	}
}

func TestExtractPDFGarbledEscalatesPastDirect(t *testing.T) {
	// every text byte in 0xC0-0xFF: the Latin-1 view is pure mojibake
	data := buildPDF(t, "0 0 24 24", []string{
		textStream("\xC0\xEA\xE0\xE4\xED\xF3\xF1\xF5\xCC\xE5\xE4\xE8\xF0\xE8"),
	})
	engine := &fakeEngine{text: "გამარჯობა მსოფლიო სამედიცინო ჩანაწერი", conf: 75}
	p := New(Config{Engine: engine})

	res := p.Extract(context.Background(), pdfDoc(t, data), nil)
	if !res.Success {
		t.Fatalf("success = false, error = %q", res.Error)
	}
	if res.Method != MethodOCR {
		t.Fatalf("method = %q, want ocr", res.Method)
	}
	if strings.Contains(res.Text, "Àê") {
		t.Errorf("mojibake survived into the final text: %q", res.Text)
	}
	if engine.calls != 1 {
		t.Errorf("engine called %d times, want 1", engine.calls)
	}
}

func TestExtractImageRunsOCR(t *testing.T) {
	engine := &fakeEngine{text: "გამარჯობა მსოფლიო", conf: 80}
	p := New(Config{Engine: engine})
	res := p.Extract(context.Background(), imageDoc(t), nil)
	if !res.Success {
		t.Fatalf("success = false, error = %q", res.Error)
	}
	if res.Method != MethodOCR {
		t.Errorf("method = %q, want ocr", res.Method)
	}
	if res.Text != "გამარჯობა მსოფლიო" {
		t.Errorf("text = %q", res.Text)
	}
	if res.PageCount != 1 {
		t.Errorf("pages = %d, want 1", res.PageCount)
	}
	if res.Confidence != 0.8 {
		t.Errorf("confidence = %g, want 0.8", res.Confidence)
	}
	if len(res.Attempts) != 1 || res.Attempts[0].Method != MethodOCR || !res.Attempts[0].Accepted {
		t.Errorf("attempts = %+v", res.Attempts)
	}
}

func TestExtractCleansEngineOutput(t *testing.T) {
	// an engine that skips the shared post-pass still gets cleaned output
	engine := &fakeEngine{text: "გგამარჯობა § მსოფლიო", conf: 70}
	p := New(Config{Engine: engine})
	res := p.Extract(context.Background(), imageDoc(t), nil)
	if res.Text != "გამარჯობა მსოფლიო" {
		t.Fatalf("text = %q, want doubled letter and stray symbol removed", res.Text)
	}
}

func TestExtractImageEngineFailure(t *testing.T) {
	p := New(Config{Engine: &fakeEngine{err: errors.New("tesseract crashed")}})
	res := p.Extract(context.Background(), imageDoc(t), nil)
	if res.Success {
		t.Fatal("expected failure when the only available method errors")
	}
	if res.Error == "" {
		t.Error("error string should describe the failure")
	}
}

func TestExtractImageWithoutEngine(t *testing.T) {
	p := New(Config{})
	res := p.Extract(context.Background(), imageDoc(t), nil)
	if res.Success {
		t.Fatal("no method could run, success must be false")
	}
}

func TestExtractImageNeverCallsVision(t *testing.T) {
	v := &fakeVision{available: true, text: "remote"}
	p := New(Config{Engine: &fakeEngine{text: "local"}, Vision: v})
	p.Extract(context.Background(), imageDoc(t), nil)
	if v.calls != 0 {
		t.Fatalf("vision called %d times for an image document", v.calls)
	}
}

func TestExtractProgressMonotonicWithTerminal(t *testing.T) {
	var mu sync.Mutex
	var events []ProgressEvent
	p := New(Config{Engine: &fakeEngine{text: "text", conf: 50}})
	p.Extract(context.Background(), imageDoc(t), func(ev ProgressEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 {
		t.Fatal("no progress events")
	}
	last := -1
	terminals := 0
	for i, ev := range events {
		if ev.Percentage < last {
			t.Errorf("event %d went backwards: %d after %d", i, ev.Percentage, last)
		}
		last = ev.Percentage
		if ev.Percentage == 100 {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("%d terminal events, want exactly 1", terminals)
	}
	if events[len(events)-1].Percentage != 100 {
		t.Errorf("last event at %d%%, want 100", events[len(events)-1].Percentage)
	}
}

func TestExtractCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(Config{Engine: &fakeEngine{text: "text"}})
	res := p.Extract(ctx, imageDoc(t), nil)
	if res.Success {
		t.Fatal("canceled extraction must not report success")
	}
}

func TestVisionEligible(t *testing.T) {
	suspicious := []fontenc.Profile{{
		Font:  fontenc.FontInfo{Name: "AcadNusx"},
		Remap: fontenc.RemapLegacyGeorgian,
	}}
	cases := []struct {
		name     string
		v        quality.Verdict
		profiles []fontenc.Profile
		want     bool
	}{
		{"garbled high conf", quality.Verdict{Class: quality.ClassGarbled, Confidence: 0.9}, nil, true},
		{"garbled low conf", quality.Verdict{Class: quality.ClassGarbled, Confidence: 0.5}, nil, false},
		{"poor with suspicious font", quality.Verdict{Class: quality.ClassPoor, Confidence: 0.6, ScriptRatio: 0.2}, suspicious, true},
		{"poor clean fonts", quality.Verdict{Class: quality.ClassPoor, Confidence: 0.6, ScriptRatio: 0.2}, nil, false},
		{"poor low script ratio", quality.Verdict{Class: quality.ClassPoor, Confidence: 0.6, ScriptRatio: 0.05}, suspicious, false},
		{"good", quality.Verdict{Class: quality.ClassGood, Confidence: 0.8}, suspicious, false},
	}
	for _, c := range cases {
		if got := visionEligible(c.v, c.profiles); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestOCREligibleSkipsGoodDirectText(t *testing.T) {
	good := quality.Verdict{Class: quality.ClassGood, Confidence: 0.8}
	if ocrEligible(good, 500, 3, true, true) {
		t.Fatal("good non-empty direct text must never trigger OCR")
	}
	if !ocrEligible(good, 0, 3, false, false) {
		t.Fatal("empty text without text operators should trigger OCR")
	}
	if !ocrEligible(good, 0, 3, true, true) {
		t.Fatal("empty text from a page with image streams should trigger OCR")
	}
	if ocrEligible(good, 0, 3, true, false) {
		t.Fatal("text operators decoding to nothing, no images: nothing to OCR")
	}
	if ocrEligible(good, 0, 0, false, false) {
		t.Fatal("a document with no pages has nothing to OCR")
	}
	if !ocrEligible(quality.Verdict{Class: quality.ClassGarbled}, 500, 3, true, false) {
		t.Fatal("garbled text should trigger OCR")
	}
}

func TestAcceptVision(t *testing.T) {
	cases := []struct {
		vision, best int
		want         bool
	}{
		{0, 0, false},
		{1, 0, true},
		{80, 100, false}, // exactly 80% is not enough
		{81, 100, true},
		{1000, 100, true},
	}
	for _, c := range cases {
		if got := acceptVision(c.vision, c.best); got != c.want {
			t.Errorf("acceptVision(%d, %d) = %v, want %v", c.vision, c.best, got, c.want)
		}
	}
}

func TestTargetScriptPresent(t *testing.T) {
	if targetScriptPresent(quality.Verdict{}, nil) {
		t.Error("no signal should mean no target script")
	}
	if !targetScriptPresent(quality.Verdict{ScriptRatio: 0.4}, nil) {
		t.Error("georgian runes are a direct signal")
	}
	if !targetScriptPresent(quality.Verdict{LatinExtRatio: 0.3}, nil) {
		t.Error("latin-extended mojibake implies a georgian source")
	}
	legacy := []fontenc.Profile{{Remap: fontenc.RemapLegacyGeorgian}}
	if !targetScriptPresent(quality.Verdict{}, legacy) {
		t.Error("legacy font profile implies the target script")
	}
}
