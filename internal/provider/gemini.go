package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/internal/config"
	"github.com/kisaansahayak/sahayak/internal/metrics"
	"github.com/kisaansahayak/sahayak/pkg/models"
)

// Generation defaults.
const (
	DefaultTemperature     = 0.5
	DefaultTopP            = 0.9
	DefaultMaxOutputTokens = 400
)

// modelNotFoundHint replaces the body of a 404 from the general provider.
const modelNotFoundHint = "model not available for this API version; run ListModels or adjust GEMINI_MODEL"

// Gemini is the general-purpose adapter. Generate walks an ordered,
// deduplicated model chain one attempt at a time.
type Gemini struct {
	endpoint string
	apiKey   string
	models   []string
	transport
}

// NewGemini creates the general adapter with the chain from cfg.Models().
func NewGemini(cfg config.GeminiConfig, opts ...Option) *Gemini {
	return &Gemini{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:    cfg.APIKey,
		models:    cfg.Models(),
		transport: newTransport(opts),
	}
}

// Models returns the model chain in attempt order.
func (g *Gemini) Models() []string {
	return append([]string(nil), g.models...)
}

// ── Fallback state machine ──────────────────────────────────

// Outcome is the result of one attempt in the chain.
type Outcome int

const (
	// Success ends the chain with a reply.
	Success Outcome = iota
	// RetryNext moves on to the next model.
	RetryNext
	// Abort ends the chain with the current error.
	Abort
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetryNext:
		return "retry"
	default:
		return "abort"
	}
}

// Decide classifies the result of one attempt.
func Decide(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case IsRetryable(err):
		return RetryNext
	default:
		return Abort
	}
}

// Attempt records one model attempt.
type Attempt struct {
	Model   string
	Outcome Outcome
	Latency time.Duration
	Err     error
}

// Generate runs prompt through the model chain. A retryable failure moves
// to the next model; any other failure is returned immediately. When the
// chain is exhausted the last error is returned.
func (g *Gemini) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (*models.ProviderResponse, error) {
	resp, _, err := g.GenerateTrace(ctx, prompt, opts)
	return resp, err
}

// GenerateTrace is Generate plus the list of attempts made.
func (g *Gemini) GenerateTrace(ctx context.Context, prompt string, opts models.GenerateOptions) (*models.ProviderResponse, []Attempt, error) {
	if g.apiKey == "" {
		metrics.ProviderCalls.WithLabelValues(GeneralID, "", "config_error").Inc()
		return nil, nil, &ConfigError{Provider: GeneralID, Missing: "GEMINI_API_KEY"}
	}
	if len(g.models) == 0 {
		return nil, nil, &ConfigError{Provider: GeneralID, Missing: "GEMINI_MODEL"}
	}
	opts = withDefaults(opts)

	attempts := make([]Attempt, 0, len(g.models))
	var lastErr error
	for _, model := range g.models {
		start := time.Now()
		text, err := g.generateOnce(ctx, model, prompt, opts)
		outcome := Decide(err)
		attempts = append(attempts, Attempt{Model: model, Outcome: outcome, Latency: time.Since(start), Err: err})
		metrics.ProviderCalls.WithLabelValues(GeneralID, model, outcome.String()).Inc()

		switch outcome {
		case Success:
			log.Debug().
				Str("provider", GeneralID).
				Str("model", model).
				Int("attempt", len(attempts)).
				Dur("latency", time.Since(start)).
				Msg("General model answered")
			return &models.ProviderResponse{Text: text, ProviderID: GeneralID, ModelID: model}, attempts, nil
		case RetryNext:
			log.Warn().
				Str("provider", GeneralID).
				Str("model", model).
				Err(err).
				Msg("Model call failed, trying next")
			lastErr = err
		case Abort:
			return nil, attempts, err
		}
	}
	return nil, attempts, lastErr
}

func withDefaults(o models.GenerateOptions) models.GenerateOptions {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.TopP == 0 {
		o.TopP = DefaultTopP
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return o
}

// ── Wire format ─────────────────────────────────────────────

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// generateOnce makes a single attempt against one model.
func (g *Gemini) generateOnce(ctx context.Context, model, prompt string, opts models.GenerateOptions) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     opts.Temperature,
			TopP:            opts.TopP,
			MaxOutputTokens: opts.MaxOutputTokens,
		},
	}

	// The API key travels in a header, never in the URL.
	header := http.Header{}
	header.Set("x-goog-api-key", g.apiKey)
	url := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, model)

	var resp geminiResponse
	if err := g.postJSON(ctx, GeneralID, model, url, header, req, &resp); err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Status == http.StatusNotFound {
			pe.Message = modelNotFoundHint
		}
		return "", err
	}

	if len(resp.Candidates) == 0 {
		return "", &ProviderError{Provider: GeneralID, Model: model, Message: "empty response"}
	}
	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return "", &ProviderError{Provider: GeneralID, Model: model, Message: "empty response"}
	}
	return text, nil
}
