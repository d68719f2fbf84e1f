package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"quiz-eval-service/internal/app"
	"quiz-eval-service/internal/domain"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the Google Gemini backend.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// GeminiProvider answers questions with Models.GenerateContent.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiProvider{client: client, model: model, timeout: cfg.Timeout}, nil
}

func (p *GeminiProvider) Name() string { return "gemini (" + p.model + ")" }

func (p *GeminiProvider) Answer(ctx context.Context, q domain.Question) (domain.Answer, error) {
	start := time.Now()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		genai.Text(app.BuildPrompt(q)),
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)},
	)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("gemini generate: %w", err)
	}

	return domain.Answer{
		Letter:    app.NormalizeLetter(resp.Text()),
		ElapsedMs: time.Since(start).Milliseconds(),
	}, nil
}
