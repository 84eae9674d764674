package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 2048

// Anthropic implements Client on top of the Messages API.
type Anthropic struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	client      anthropic.Client
}

func NewAnthropicFromSettings(cfg *Settings) (*Anthropic, error) {
	if cfg == nil {
		return nil, errors.New("llm settings are nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key missing; provide llm.api_key or ANTHROPIC_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &Anthropic{
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: cfg.Temperature,
		client:      anthropic.NewClient(opts...),
	}, nil
}

func (a *Anthropic) Complete(ctx context.Context, prompt Prompt) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: a.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	}
	if a.Temperature > 0 {
		params.Temperature = anthropic.Float(a.Temperature)
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", &TransformError{Provider: "anthropic", Err: err}
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &TransformError{Provider: "anthropic", Err: errors.New("no text block in response")}
}
