// Package vision is the cloud fallback for documents whose embedded text is
// unrecoverable locally. It sends the raw document bytes to Gemini, which
// accepts PDFs and images directly, and asks for a plain transcription.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/medgeo/docextract/document"
	"github.com/medgeo/docextract/observability"
)

// ErrUnavailable is returned before any I/O when no credential is
// configured. Callers treat it as a skip, not a failure.
var ErrUnavailable = errors.New("vision: no credential configured")

const defaultModel = "gemini-1.5-flash"

const transcriptionPrompt = `Transcribe the full text of this document exactly as written.
Preserve the original language (Georgian, Russian, or English), line breaks, and reading order.
Output only the transcribed plain text, with no commentary, headers, or markdown.`

// Config tunes the Gemini transcriber.
type Config struct {
	// APIKey authorizes the Gemini API. Empty means the adapter is
	// unavailable and Transcribe returns ErrUnavailable.
	APIKey string
	// Model overrides the default model name.
	Model string
	// MaxRetries bounds retry attempts on rate-limit and overload
	// responses. Default 3.
	MaxRetries int
	// BaseDelay is the first backoff interval, doubled on each retry.
	// Default 500ms.
	BaseDelay time.Duration

	Logger observability.Logger
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
}

// Transcriber sends documents to Gemini for transcription.
type Transcriber struct {
	cfg Config
}

// New builds a Transcriber. Construction always succeeds; credential
// presence is checked per call so availability can be probed cheaply.
func New(cfg Config) *Transcriber {
	cfg.defaults()
	return &Transcriber{cfg: cfg}
}

// Available reports whether a credential is configured.
func (t *Transcriber) Available() bool { return strings.TrimSpace(t.cfg.APIKey) != "" }

// Transcribe sends the document and returns the plain-text transcription.
// Rate-limit and overload responses are retried with exponential backoff;
// any other error is returned as-is after the first attempt.
func (t *Transcriber) Transcribe(ctx context.Context, doc *document.Document) (string, error) {
	if !t.Available() {
		return "", ErrUnavailable
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(strings.TrimSpace(t.cfg.APIKey)))
	if err != nil {
		return "", fmt.Errorf("vision client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(t.cfg.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0),
	}
	parts := []genai.Part{
		genai.Text(transcriptionPrompt),
		&genai.Blob{MIMEType: doc.MIME(), Data: doc.Bytes()},
	}

	delay := t.cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= t.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp, err := m.GenerateContent(ctx, parts...)
		if err == nil {
			text := strings.TrimSpace(firstText(resp))
			if text == "" {
				return "", errors.New("vision: empty response")
			}
			return text, nil
		}
		lastErr = err
		if !retryable(err) {
			return "", fmt.Errorf("vision transcribe: %w", err)
		}
		t.cfg.Logger.Warn("vision call throttled, backing off",
			observability.Int("attempt", attempt), observability.Error("err", err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("vision transcribe: retries exhausted: %w", lastErr)
}

// retryable matches rate-limit and server overload responses.
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return false
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}

func ptrFloat32(v float32) *float32 { return &v }
