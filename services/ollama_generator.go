package services

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const DefaultOllamaModel = "llama3.1"

// OllamaGenerator answers single prompts with a local Ollama model.
type OllamaGenerator struct {
	llm   llms.Model
	model string
}

func NewOllamaGenerator(baseURL, model string) (*OllamaGenerator, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("%w: create ollama client: %v", ErrProviderUnavailable, err)
	}
	return &OllamaGenerator{llm: llm, model: model}, nil
}

func (o *OllamaGenerator) Name() string { return "ollama/" + o.model }

func (o *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: ollama generation failed: %v", ErrProviderUnavailable, err)
	}
	return out, nil
}
