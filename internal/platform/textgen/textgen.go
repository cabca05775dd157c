// Package textgen generates free text from a single prompt through the
// Gemini generateContent API.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrGenerationFailed is returned for every generation failure: disabled
// client, transport error, non-2xx status, or empty output.
var ErrGenerationFailed = errors.New("text generation failed")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Options configures the Gemini client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Gemini implements Generator against generativelanguage.googleapis.com.
type Gemini struct {
	http   *resty.Client
	model  string
	apiKey string
	logger zerolog.Logger
}

func NewGemini(opts Options, logger zerolog.Logger) *Gemini {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}
	return &Gemini{
		http: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(opts.Timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		model:  opts.Model,
		apiKey: opts.APIKey,
		logger: logger.With().Str("component", "textgen").Logger(),
	}
}

// Generate returns the concatenated text parts of the first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	var out geminiResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetPathParam("model", g.model).
		SetQueryParam("key", g.apiKey).
		SetBody(geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}).
		SetResult(&out).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode())
	}

	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrGenerationFailed)
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty output", ErrGenerationFailed)
	}
	return text, nil
}

// Disabled is the Generator used when no API key is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: generator not configured", ErrGenerationFailed)
}
