// Command docextract extracts plain text from a PDF or scanned image,
// falling back to OCR and the cloud transcriber when the embedded text is
// damaged or absent.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/medgeo/docextract/document"
	"github.com/medgeo/docextract/observability"
	"github.com/medgeo/docextract/ocr/tesseract"
	"github.com/medgeo/docextract/pipeline"
	"github.com/medgeo/docextract/vision"
)

type options struct {
	path        string
	languages   []string
	tokenBudget int
	timeout     time.Duration
	jsonOut     bool
	progress    bool
	noOCR       bool
	verbose     bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "docextract: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "docextract: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: docextract [flags] <pdf|image>\n")
		flag.PrintDefaults()
	}
	languages := flag.String("languages", strings.Join([]string{"kat", "rus", "eng"}, ","), "Comma-separated OCR language hints")
	tokenBudget := flag.Int("token-budget", pipeline.DefaultTokenBudget, "Token budget for the final text")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall extraction timeout")
	jsonOut := flag.Bool("json", false, "Emit the full result as JSON instead of plain text")
	progress := flag.Bool("progress", false, "Print progress events to stderr")
	noOCR := flag.Bool("no-ocr", false, "Disable the local OCR fallback")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing input path")
	}
	opts.path = flag.Arg(0)
	opts.languages = strings.Split(*languages, ",")
	opts.tokenBudget = *tokenBudget
	opts.timeout = *timeout
	opts.jsonOut = *jsonOut
	opts.progress = *progress
	opts.noOCR = *noOCR
	opts.verbose = *verbose
	return opts, nil
}

func run(opts options) error {
	data, err := os.ReadFile(opts.path)
	if err != nil {
		return err
	}
	doc, err := document.New(data, mediaTypeFor(opts.path, data), filepath.Base(opts.path))
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlog(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := pipeline.Config{
		Languages:   opts.languages,
		TokenBudget: opts.tokenBudget,
		Logger:      logger,
		Vision: vision.New(vision.Config{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Logger: logger,
		}),
	}
	if !opts.noOCR {
		cfg.Engine = tesseract.New()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	var onProgress func(pipeline.ProgressEvent)
	if opts.progress {
		onProgress = func(ev pipeline.ProgressEvent) {
			fmt.Fprintf(os.Stderr, "%3d%% %s\n", ev.Percentage, ev.State)
		}
	}

	res := pipeline.New(cfg).Extract(ctx, doc, onProgress)

	if opts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if !res.Success {
		return fmt.Errorf("extraction failed: %s", res.Error)
	}
	fmt.Println(res.Text)
	return nil
}

func mediaTypeFor(path string, data []byte) document.MediaType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return document.MediaTypePDF
	case ".png", ".jpg", ".jpeg":
		return document.MediaTypeImage
	}
	if strings.HasPrefix(string(data[:min(5, len(data))]), "%PDF-") {
		return document.MediaTypePDF
	}
	return document.MediaTypeImage
}
