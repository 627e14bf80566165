package embedding

import (
	"context"
	"fmt"
	"net/http"
)

const (
	// DefaultHiddenStateModel is the default model served by a hidden-state server.
	DefaultHiddenStateModel = "Qwen/Qwen3-Embedding-0.6B"

	// DefaultHiddenStateURL is the default hidden-state server endpoint.
	DefaultHiddenStateURL = "http://localhost:8080"

	apiPathEncode = "/encode"
)

// HiddenStateClient talks to a model server that returns raw token-level
// hidden states and attention masks, leaving pooling to the caller. Inputs are
// left-padded and truncated to maxTokens by the server.
type HiddenStateClient struct {
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewHiddenStateClient creates a client. maxTokens <= 0 uses DefaultMaxTokens.
func NewHiddenStateClient(baseURL, model string, maxTokens int, client *http.Client) *HiddenStateClient {
	if baseURL == "" {
		baseURL = DefaultHiddenStateURL
	}
	if model == "" {
		model = DefaultHiddenStateModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HiddenStateClient{baseURL: baseURL, model: model, maxTokens: maxTokens, client: client}
}

// EncodeTokens implements TokenEncoder.
func (c *HiddenStateClient) EncodeTokens(ctx context.Context, texts []string) (TokenBatch, error) {
	req := encodeRequest{
		Model:       c.model,
		Inputs:      texts,
		MaxLength:   c.maxTokens,
		Truncation:  true,
		PaddingSide: "left",
	}

	var batch TokenBatch
	if err := postJSON(ctx, c.client, c.baseURL+apiPathEncode, req, &batch); err != nil {
		return TokenBatch{}, fmt.Errorf("encoding tokens: %w", err)
	}
	return batch, nil
}

// ModelName implements TokenEncoder.
func (c *HiddenStateClient) ModelName() string { return c.model }

// MaxTokens implements TokenEncoder.
func (c *HiddenStateClient) MaxTokens() int { return c.maxTokens }

// encodeRequest is the request body for the /encode endpoint.
type encodeRequest struct {
	Model       string   `json:"model"`
	Inputs      []string `json:"inputs"`
	MaxLength   int      `json:"max_length"`
	Truncation  bool     `json:"truncation"`
	PaddingSide string   `json:"padding_side"`
}
