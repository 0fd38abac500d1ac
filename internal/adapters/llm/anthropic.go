package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

const (
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	anthropicMaxTokens    = 1024
)

// AnthropicProvider uses the Messages API through the official SDK
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider builds a provider. An empty apiKey lets the SDK fall
// back to ANTHROPIC_API_KEY.
func NewAnthropicProvider(apiKey, baseURL, model string) *AnthropicProvider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	// ModelClient owns retries
	opts = append(opts, option.WithMaxRetries(0))
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: model}
}

// Complete implements domain.LLMProvider
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:         anthropic.Model(p.model),
		MaxTokens:     anthropicMaxTokens,
		Temperature:   anthropic.Float(clampTemperature(temperature)),
		StopSequences: stopSequences,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &domain.ModelError{
				Provider:   "anthropic",
				StatusCode: apiErr.StatusCode,
				Retryable:  apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500,
				Err:        err,
			}
		}
		return "", transportError("anthropic", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// the Messages API accepts temperatures in [0, 1]
func clampTemperature(t float64) float64 {
	if t > 1 {
		return 1
	}
	return t
}
