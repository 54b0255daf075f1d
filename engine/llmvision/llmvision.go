// Package llmvision provides cloud fallback OCR engines backed by vision
// language models through langchaingo. One Engine wraps one provider/model
// pair; the gateway registers them behind the primary local engine so they
// only see pages the primary could not read.
package llmvision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/wudi/ocrkit/engine"
)

// Supported provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderMistral   = "mistral"
	ProviderAnthropic = "anthropic"
)

// DefaultPrompt asks for a faithful transcription rather than a summary.
const DefaultPrompt = "Transcribe every piece of text visible in this image exactly as written. " +
	"Preserve line breaks and reading order. Output only the transcribed text with no commentary."

// DefaultConfidence is reported on successful recognitions. Chat models do
// not score their output, so the confidence is a fixed calibration constant
// tuned against the primary engine rather than a measurement.
const DefaultConfidence = 0.80

// Config selects and parameterizes a vision provider.
type Config struct {
	// Provider is one of the Provider* identifiers.
	Provider string
	// Model names the provider-side model (e.g. "gpt-4o-mini").
	Model string
	// Name overrides the registry identifier; defaults to Provider.
	Name string
	// APIKey authenticates against the provider. Empty falls back to the
	// provider's conventional environment variable.
	APIKey string
	// BaseURL points OpenAI-compatible clients at an alternative endpoint.
	BaseURL string
	// ServerURL overrides the Ollama host.
	ServerURL string
	// Prompt replaces DefaultPrompt.
	Prompt string
	// MaxTokens caps the completion length; zero means provider default.
	MaxTokens int
	// Temperature for the completion. Zero keeps transcription deterministic.
	Temperature float64
	// Confidence replaces DefaultConfidence.
	Confidence float64
}

// Engine implements engine.Engine on top of a vision language model.
type Engine struct {
	name        string
	provider    string
	model       llms.Model
	prompt      string
	maxTokens   int
	temperature float64
	confidence  float64
}

// New constructs a vision engine for the configured provider.
func New(cfg Config) (*Engine, error) {
	var model llms.Model
	var err error
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		model, err = newOpenAI(cfg)
	case ProviderOllama:
		model, err = newOllama(cfg)
	case ProviderMistral:
		model, err = newMistral(cfg)
	case ProviderAnthropic:
		model, err = newAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unsupported vision provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}
	return newWithModel(cfg, model), nil
}

func newWithModel(cfg Config, model llms.Model) *Engine {
	provider := strings.ToLower(cfg.Provider)
	name := cfg.Name
	if name == "" {
		name = provider
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	confidence := cfg.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = DefaultConfidence
	}
	return &Engine{
		name:        name,
		provider:    provider,
		model:       model,
		prompt:      prompt,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		confidence:  confidence,
	}
}

func (e *Engine) Name() string { return e.name }

// Recognize sends the page image and transcription prompt to the vision
// model and normalizes the response to plain text.
func (e *Engine) Recognize(ctx context.Context, in engine.Input) (engine.Result, error) {
	parts := []llms.ContentPart{
		e.imagePart(in.Image),
		llms.TextPart(e.prompt),
	}
	opts := []llms.CallOption{llms.WithTemperature(e.temperature)}
	if e.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(e.maxTokens))
	}

	completion, err := e.model.GenerateContent(ctx, []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	}, opts...)
	if err != nil {
		return engine.Result{}, fmt.Errorf("vision completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return engine.Result{}, errors.New("vision model returned no choices")
	}

	return engine.Result{
		Text:       Normalize(completion.Choices[0].Content),
		Confidence: e.confidence,
	}, nil
}

// imagePart picks the image encoding each provider expects: OpenAI-compatible
// APIs and Mistral take data URLs, the rest accept raw binary parts.
func (e *Engine) imagePart(img []byte) llms.ContentPart {
	switch e.provider {
	case ProviderOpenAI, ProviderMistral:
		return llms.ImageURLPart("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img))
	default:
		return llms.BinaryPart("image/jpeg", img)
	}
}

func newOpenAI(cfg Config) (llms.Model, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func newOllama(cfg Config) (llms.Model, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	return ollama.New(opts...)
}

func newMistral(cfg Config) (llms.Model, error) {
	opts := []mistral.Option{mistral.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, mistral.WithAPIKey(cfg.APIKey))
	}
	return mistral.New(opts...)
}

func newAnthropic(cfg Config) (llms.Model, error) {
	opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, anthropic.WithToken(cfg.APIKey))
	}
	return anthropic.New(opts...)
}
