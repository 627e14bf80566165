package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider generates embeddings with an OpenAI-compatible embeddings
// API. Inputs are truncated client-side with TruncateText.
type OpenAIProvider struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	maxTokens  int
}

// OpenAIConfig holds the OpenAI embedding provider settings.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	MaxTokens  int
}

// NewOpenAIProvider creates an OpenAI-compatible embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		maxTokens:  maxTokens,
	}
}

// EmbedBatch implements Provider.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if err := validateInputs(texts); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = TruncateText(t, p.maxTokens)
	}

	req := openai.EmbeddingRequest{
		Input:          inputs,
		Model:          p.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if p.dimensions > 0 {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	if err := checkDimensions(vectors, p.dimensions); err != nil {
		return nil, err
	}

	embs := make([]Embedding, len(vectors))
	for i, v := range vectors {
		embs[i] = Embedding{Vector: v}
	}
	return embs, nil
}

// ModelName implements Provider.
func (p *OpenAIProvider) ModelName() string { return string(p.model) }

// Dimensions implements Provider.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Pooling implements Provider.
func (p *OpenAIProvider) Pooling() Pooling { return PoolingProvider }

// MaxTokens implements Provider.
func (p *OpenAIProvider) MaxTokens() int { return p.maxTokens }

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("embedding API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("embedding request failed: %w", err)
}
