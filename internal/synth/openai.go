package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultMaxOutputTokens bounds the length of a generated query.
const DefaultMaxOutputTokens = 500

// OpenAIConfig holds the chat completion settings.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int
}

// OpenAICompleter calls an OpenAI-compatible chat completions API with
// temperature 0.
type OpenAICompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAICompleter creates a completer.
func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	return &OpenAICompleter{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// Model implements Completer.
func (c *OpenAICompleter) Model() string { return c.model }

// isReasoningModel reports whether model only accepts max_completion_tokens
// and a fixed temperature.
func isReasoningModel(model string) bool {
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// request builds the chat completion request for messages.
func (c *OpenAICompleter) request(messages []Message) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	if isReasoningModel(c.model) {
		req.MaxCompletionTokens = c.maxTokens
	} else {
		req.MaxTokens = c.maxTokens
		// temperature is omitempty; the smallest float32 is sent instead of 0.
		req.Temperature = math.SmallestNonzeroFloat32
	}
	return req
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, messages []Message) (Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages))
	if err != nil {
		return Completion{}, parseAPIError(err)
	}

	out := Completion{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return out, Terminal(ErrNoQuery)
	}
	out.Text = resp.Choices[0].Message.Content
	out.Reasoning = resp.Choices[0].Message.ReasoningContent
	return out, nil
}

// parseAPIError extracts a human-readable error from the API response.
// Client errors other than rate limiting are not retried.
func parseAPIError(err error) error {
	status := 0
	var wrapped error

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		wrapped = fmt.Errorf("chat API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		wrapped = fmt.Errorf("chat API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	default:
		return fmt.Errorf("chat request failed: %w", err)
	}

	if status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
		return Terminal(wrapped)
	}
	return wrapped
}
